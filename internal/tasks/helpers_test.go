package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mproc/internal/blobstore"
	"mproc/internal/models"
	"mproc/internal/store"
)

// memMeta is an in-memory MetadataStore with switchable failures.
type memMeta struct {
	mu       sync.Mutex
	tasks    []models.Task
	settings *models.Settings
	loadErr  error
	saveErr  error
	saves    int
}

func (m *memMeta) SaveTasks(_ context.Context, tasks []models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.tasks = cloneTasks(tasks)
	return nil
}

func (m *memMeta) LoadTasks(context.Context) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return cloneTasks(m.tasks), nil
}

func (m *memMeta) SaveSettings(_ context.Context, settings models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.settings = &settings
	return nil
}

func (m *memMeta) LoadSettings(context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return models.DefaultSettings(), m.loadErr
	}
	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *m.settings, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	changes  [][]string
	settings int
}

func (n *recordingNotifier) TasksChanged(ids []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, append([]string(nil), ids...))
}

func (n *recordingNotifier) SettingsChanged(models.Settings) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settings++
}

var errDiskFull = errors.New("disk full")

type testEnv struct {
	repo  *Repository
	meta  *store.Store
	blobs *blobstore.FileStore
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return openTestEnv(t, t.TempDir(), Options{})
}

func openTestEnv(t *testing.T, dir string, opts Options) *testEnv {
	t.Helper()
	meta := store.OpenDir(dir)
	blobs, err := blobstore.OpenDir(filepath.Join(dir, "blobs"), nil)
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	t.Cleanup(func() {
		meta.Close()
		blobs.Close()
	})

	opts.Meta = meta
	opts.Blobs = blobs
	repo, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	return &testEnv{repo: repo, meta: meta, blobs: blobs, dir: dir}
}

func openMemRepo(t *testing.T, meta *memMeta) (*Repository, *blobstore.FileStore) {
	t.Helper()
	blobs, err := blobstore.OpenDir(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })
	repo, err := Open(context.Background(), Options{Meta: meta, Blobs: blobs})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	return repo, blobs
}

func upload(name, mediaType, body string) Upload {
	return Upload{Name: name, Type: mediaType, Body: strings.NewReader(body)}
}

func mustCreate(t *testing.T, repo *Repository, in TaskInput) models.Task {
	t.Helper()
	task, err := repo.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create %q: %v", in.Title, err)
	}
	return task
}

func titles(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return out
}

func blobCount(t *testing.T, blobs blobstore.BlobStore) int {
	t.Helper()
	infos, err := blobs.List(context.Background())
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	return len(infos)
}

// assertReferenceIntegrity checks that every reference resolves and that no
// stored blob is unreferenced.
func assertReferenceIntegrity(t *testing.T, repo *Repository, blobs blobstore.BlobStore) {
	t.Helper()
	ctx := context.Background()
	referenced := map[string]bool{}
	for _, task := range repo.All() {
		for _, id := range task.BlobRefs() {
			referenced[id] = true
			rec, err := blobs.Get(ctx, id)
			if err != nil {
				t.Fatalf("get %s: %v", id, err)
			}
			if rec == nil {
				t.Fatalf("task %s references missing blob %s", task.ID, id)
			}
		}
	}
	infos, err := blobs.List(ctx)
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	for _, info := range infos {
		if !referenced[info.ID] {
			t.Fatalf("blob %s (%s) is not referenced by any task", info.ID, info.Name)
		}
	}
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// Package tasks owns the task collection: creation, edits, ordering, views,
// export and import. Blob cleanup runs after every mutation that drops
// references.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mproc/internal/blobstore"
	"mproc/internal/gc"
	"mproc/internal/migration"
	"mproc/internal/models"
	"mproc/internal/store"
)

// Options configures a Repository.
type Options struct {
	Meta     store.MetadataStore
	Blobs    blobstore.BlobStore
	Logger   *slog.Logger
	Notifier Notifier

	// DefaultColor replaces models.DefaultColor for tasks created without a color.
	DefaultColor string
	// MaxUploadBytes caps a single upload; zero means unlimited.
	MaxUploadBytes int64
	// AllowedMediaTypes restricts uploads; entries may end in "/*". Empty allows all.
	AllowedMediaTypes []string

	now func() time.Time
}

// Repository is the single writer for tasks and settings.
type Repository struct {
	meta     store.MetadataStore
	blobs    blobstore.BlobStore
	logger   *slog.Logger
	notifier Notifier
	policy   uploadPolicy

	defaultColor string
	now          func() time.Time

	mu       sync.Mutex
	tasks    []models.Task
	settings models.Settings
	// loadErr is set when Open could not read the metadata store. Writes are
	// refused for the rest of the session so the stored data is not replaced.
	loadErr error
}

// Open loads settings and tasks, migrates legacy inline payloads and returns
// the repository. A store that cannot be read leaves the repository empty
// rather than failing; later writes then report a PersistError wrapping
// ErrStoreUnavailable.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Meta == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if opts.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	color := strings.TrimSpace(opts.DefaultColor)
	if color == "" {
		color = models.DefaultColor
	}
	now := opts.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	r := &Repository{
		meta:         opts.Meta,
		blobs:        opts.Blobs,
		logger:       logger.With("component", "tasks"),
		notifier:     notifier,
		policy:       newUploadPolicy(opts.MaxUploadBytes, opts.AllowedMediaTypes),
		defaultColor: color,
		now:          now,
		tasks:        []models.Task{},
		settings:     models.DefaultSettings(),
	}

	settings, err := r.meta.LoadSettings(ctx)
	if err != nil {
		r.logger.Error("load settings failed; using defaults", "error", err)
		r.loadErr = err
	} else {
		r.settings = settings
	}

	loaded, err := r.meta.LoadTasks(ctx)
	if err != nil {
		r.logger.Error("load tasks failed; starting empty and read-only", "error", err)
		r.loadErr = err
		return r, nil
	}

	result, err := migration.NewEngine(r.blobs, logger).Run(ctx, loaded)
	if err != nil {
		return nil, fmt.Errorf("migrate tasks: %w", err)
	}
	r.tasks = result.Tasks
	if result.Changed {
		if err := r.persistTasks(ctx); err != nil {
			r.logger.Warn("persist migrated tasks failed", "error", err)
		} else if len(result.Released) > 0 {
			gc.CollectOrphans(ctx, r.blobs, r.tasks, result.Released, r.logger)
		}
	}
	return r, nil
}

// Get returns a copy of one task.
func (r *Repository) Get(id string) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	return r.tasks[i].Clone(), nil
}

// All returns a copy of the collection in manual order.
func (r *Repository) All() []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneTasks(r.tasks)
}

// Len returns the number of tasks.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Blob returns a stored blob, or nil when the id is dangling.
func (r *Repository) Blob(ctx context.Context, id string) (*models.BlobRecord, error) {
	return r.blobs.Get(ctx, id)
}

// Progress reports how many tasks are completed.
func (r *Repository) Progress() models.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := models.Progress{Total: len(r.tasks)}
	for _, t := range r.tasks {
		if t.Completed {
			p.Done++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Done) * 100 / float64(p.Total)
	}
	return p
}

// Settings returns the current settings.
func (r *Repository) Settings() models.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// UpdateSettings validates and applies a settings patch.
func (r *Repository) UpdateSettings(ctx context.Context, patch SettingsPatch) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.settings
	if patch.Sort != nil {
		mode, err := models.ParseSortMode(*patch.Sort)
		if err != nil {
			return r.settings, fmt.Errorf("%w: %s", ErrInvalidSort, *patch.Sort)
		}
		next.Sort = mode
	}
	if patch.Theme != nil {
		theme, err := models.ParseTheme(*patch.Theme)
		if err != nil {
			return r.settings, fmt.Errorf("%w: %s", ErrInvalidTheme, *patch.Theme)
		}
		next.Theme = theme
	}
	if patch.ParticlesCount != nil {
		if *patch.ParticlesCount < 0 {
			return r.settings, fmt.Errorf("%w: particles_count must be >= 0", ErrInvalidSetting)
		}
		next.ParticlesCount = *patch.ParticlesCount
	}
	if patch.AutosaveAttachments != nil {
		next.AutosaveAttachments = *patch.AutosaveAttachments
	}
	if patch.Particles != nil {
		next.Particles = *patch.Particles
	}

	r.settings = next
	r.notifier.SettingsChanged(next)
	return next, r.persistSettings(ctx)
}

// Flush writes the whole in-memory state. Used at shutdown.
func (r *Repository) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.persistTasks(ctx); err != nil {
		return err
	}
	return r.persistSettings(ctx)
}

// persistTasks writes the collection. The caller holds r.mu.
func (r *Repository) persistTasks(ctx context.Context) error {
	if r.loadErr != nil {
		return &PersistError{Op: "tasks", Err: r.unavailable()}
	}
	if err := r.meta.SaveTasks(ctx, r.tasks); err != nil {
		r.logger.Error("save tasks failed; keeping in-memory state", "count", len(r.tasks), "error", err)
		return &PersistError{Op: "tasks", Err: err}
	}
	return nil
}

// persistSettings writes the settings. The caller holds r.mu.
func (r *Repository) persistSettings(ctx context.Context) error {
	if r.loadErr != nil {
		return &PersistError{Op: "settings", Err: r.unavailable()}
	}
	if err := r.meta.SaveSettings(ctx, r.settings); err != nil {
		r.logger.Error("save settings failed", "error", err)
		return &PersistError{Op: "settings", Err: err}
	}
	return nil
}

func (r *Repository) unavailable() error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, r.loadErr)
}

// commit persists, collects blobs released by the mutation and notifies
// listeners. The caller holds r.mu and has already applied the mutation.
func (r *Repository) commit(ctx context.Context, changed []string, released []string) error {
	err := r.persistTasks(ctx)
	if len(released) > 0 {
		gc.CollectOrphans(ctx, r.blobs, r.tasks, released, r.logger)
	}
	r.notifier.TasksChanged(changed)
	return err
}

func (r *Repository) indexOf(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) newTaskID() (string, error) {
	return store.GenerateTaskID(func(id string) (bool, error) {
		return r.indexOf(id) >= 0, nil
	})
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

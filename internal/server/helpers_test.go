package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"mproc/internal/api"
	"mproc/internal/blobstore"
	"mproc/internal/models"
	"mproc/internal/store"
	"mproc/internal/tasks"
)

type testServerConfig struct {
	repo    tasks.Options
	server  Options
	meta    store.MetadataStore
	withHub bool
}

type testServer struct {
	srv     *Server
	handler http.Handler
	repo    *tasks.Repository
	hub     *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, testServerConfig{})
}

func newTestServerWith(t *testing.T, cfg testServerConfig) *testServer {
	t.Helper()
	dir := t.TempDir()

	meta := cfg.meta
	if meta == nil {
		st := store.OpenDir(dir)
		t.Cleanup(func() { st.Close() })
		meta = st
	}
	blobs, err := blobstore.OpenDir(filepath.Join(dir, "blobs"), nil)
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	var hub *Hub
	if cfg.withHub {
		hub = NewHub(nil)
		ctx, cancel := context.WithCancel(context.Background())
		go hub.Run(ctx)
		t.Cleanup(cancel)
	}

	opts := cfg.repo
	opts.Meta = meta
	opts.Blobs = blobs
	if hub != nil {
		opts.Notifier = hub
	}
	repo, err := tasks.Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}

	serverOpts := cfg.server
	serverOpts.DataDir = dir
	srv := New(repo, hub, serverOpts, nil)
	return &testServer{srv: srv, handler: srv.Handler(), repo: repo, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) upload(t *testing.T, method, path string, fields map[string]string, files ...testFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createTask(t *testing.T, title string) models.Task {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/tasks", api.TaskCreateRequest{Title: title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q: expected 201, got %d (%s)", title, w.Code, w.Body.String())
	}
	return decodeBody[models.Task](t, w)
}

type testFile struct {
	field     string
	name      string
	mediaType string
	content   string
}

func multipartBody(t *testing.T, fields map[string]string, files ...testFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.mediaType != "" {
			header.Set("Content-Type", f.mediaType)
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, status, errCode int) api.ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	errResp := decodeBody[api.ErrorResponse](t, w)
	if errResp.ErrorCode != errCode {
		t.Fatalf("expected error_code %d, got %d (%s)", errCode, errResp.ErrorCode, errResp.Error)
	}
	return errResp
}

// unreadableMeta fails every load and counts attempted saves.
type unreadableMeta struct{ saves *int }

func (u unreadableMeta) SaveTasks(context.Context, []models.Task) error {
	*u.saves++
	return nil
}
func (u unreadableMeta) LoadTasks(context.Context) ([]models.Task, error) {
	return nil, errors.New("task t-bad created_at: bad time")
}
func (u unreadableMeta) SaveSettings(context.Context, models.Settings) error {
	*u.saves++
	return nil
}
func (u unreadableMeta) LoadSettings(context.Context) (models.Settings, error) {
	return models.DefaultSettings(), nil
}

// failingMeta accepts loads and rejects every save.
type failingMeta struct{ err error }

func (f failingMeta) SaveTasks(context.Context, []models.Task) error { return f.err }
func (f failingMeta) LoadTasks(context.Context) ([]models.Task, error) {
	return nil, nil
}
func (f failingMeta) SaveSettings(context.Context, models.Settings) error { return f.err }
func (f failingMeta) LoadSettings(context.Context) (models.Settings, error) {
	return models.DefaultSettings(), nil
}

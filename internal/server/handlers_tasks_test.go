package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"mproc/internal/api"
	"mproc/internal/models"
)

func TestCreateGetListTask(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/tasks", api.TaskCreateRequest{Title: "  Write report ", Due: "2024-05-01", Description: "draft"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeBody[models.Task](t, w)
	if created.ID == "" || created.Title != "Write report" || created.Color != models.DefaultColor {
		t.Fatalf("unexpected task %+v", created)
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeBody[models.Task](t, w); got.ID != created.ID || got.Due != "2024-05-01" {
		t.Fatalf("unexpected task %+v", got)
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	list := decodeBody[api.TaskListResponse](t, w)
	if len(list.Tasks) != 1 || list.Sort != models.SortManual || list.Progress.Total != 1 {
		t.Fatalf("unexpected list %+v", list)
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks/t-missing0", nil)
	assertAPIError(t, w, http.StatusNotFound, ErrCodeTaskNotFound)
}

func TestCreateTaskValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{name: "empty title", body: api.TaskCreateRequest{Title: "  "}, wantCode: ErrCodeMissingRequired},
		{name: "bad due", body: api.TaskCreateRequest{Title: "x", Due: "31/12/2024"}, wantCode: ErrCodeInvalidDue},
		{name: "malformed json", body: `{"title":`, wantCode: ErrCodeInvalidJSON},
		{name: "wrong type", body: `{"title":5}`, wantCode: ErrCodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/v1/tasks", tt.body)
			assertAPIError(t, w, http.StatusBadRequest, tt.wantCode)
		})
	}

	if ts.repo.Len() != 0 {
		t.Fatalf("expected no tasks after rejected creates, got %d", ts.repo.Len())
	}
}

func TestInvalidPathID(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/v1/tasks/bad%20id", nil)
	assertAPIError(t, w, http.StatusBadRequest, ErrCodeInvalidID)
}

func TestUpdateTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.createTask(t, "old")

	title := "new"
	color := "#ff0000"
	w := ts.do(t, http.MethodPatch, "/v1/tasks/"+task.ID, api.TaskUpdateRequest{Title: &title, Color: &color})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeBody[models.Task](t, w)
	if updated.Title != "new" || updated.Color != "#ff0000" || !updated.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("unexpected update %+v", updated)
	}

	w = ts.do(t, http.MethodPatch, "/v1/tasks/"+task.ID, api.TaskUpdateRequest{})
	assertAPIError(t, w, http.StatusBadRequest, ErrCodeMissingRequired)

	empty := ""
	w = ts.do(t, http.MethodPatch, "/v1/tasks/"+task.ID, api.TaskUpdateRequest{Title: &empty})
	assertAPIError(t, w, http.StatusBadRequest, ErrCodeMissingRequired)
}

func TestDuplicateAndDeleteTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.createTask(t, "source")

	w := ts.do(t, http.MethodPost, "/v1/tasks/"+task.ID+"/duplicate", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	dup := decodeBody[models.Task](t, w)
	if dup.ID == task.ID || dup.Title != "source (copy)" {
		t.Fatalf("unexpected duplicate %+v", dup)
	}

	w = ts.do(t, http.MethodDelete, "/v1/tasks/"+task.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodDelete, "/v1/tasks/"+task.ID, nil)
	assertAPIError(t, w, http.StatusNotFound, ErrCodeTaskNotFound)

	if all := ts.repo.All(); len(all) != 1 || all[0].ID != dup.ID {
		t.Fatalf("expected only the duplicate left, got %+v", all)
	}
}

func TestCompleteReorderClear(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createTask(t, "a")
	b := ts.createTask(t, "b")
	c := ts.createTask(t, "c")

	w := ts.do(t, http.MethodPost, "/v1/tasks/"+b.ID+"/complete", api.CompleteRequest{Completed: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if !decodeBody[models.Task](t, w).Completed {
		t.Fatal("expected task completed")
	}

	w = ts.do(t, http.MethodPost, "/v1/tasks/reorder", api.ReorderRequest{IDs: []string{a.ID, c.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks", nil)
	list := decodeBody[api.TaskListResponse](t, w)
	got := make([]string, 0, len(list.Tasks))
	for _, task := range list.Tasks {
		got = append(got, task.Title)
	}
	if want := []string{"a", "c", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if list.Progress.Done != 1 || list.Progress.Total != 3 {
		t.Fatalf("unexpected progress %+v", list.Progress)
	}

	w = ts.do(t, http.MethodPost, "/v1/tasks/reorder", api.ReorderRequest{IDs: []string{"t-unknown1"}})
	assertAPIError(t, w, http.StatusNotFound, ErrCodeTaskNotFound)

	w = ts.do(t, http.MethodPost, "/v1/tasks/clear-completed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if resp := decodeBody[api.ClearCompletedResponse](t, w); resp.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", resp.Removed)
	}
	if ts.repo.Len() != 2 {
		t.Fatalf("expected 2 tasks left, got %d", ts.repo.Len())
	}
}

func TestListTasksQueryParams(t *testing.T) {
	ts := newTestServer(t)
	ts.createTask(t, "Banana")
	ts.createTask(t, "apple")
	ts.createTask(t, "cherry pie")

	w := ts.do(t, http.MethodGet, "/v1/tasks?sort=title&q=A", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	list := decodeBody[api.TaskListResponse](t, w)
	if list.Sort != models.SortTitle || len(list.Tasks) != 2 || list.Tasks[0].Title != "apple" || list.Tasks[1].Title != "Banana" {
		t.Fatalf("unexpected list %+v", list)
	}

	tests := []struct {
		query    string
		wantCode int
	}{
		{query: "sort=random", wantCode: ErrCodeInvalidSort},
		{query: "completed=maybe", wantCode: ErrCodeInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/v1/tasks?"+tt.query, nil)
			assertAPIError(t, w, http.StatusBadRequest, tt.wantCode)
		})
	}
}

func TestPersistFailureIsStoreFailure(t *testing.T) {
	ts := newTestServerWith(t, testServerConfig{meta: failingMeta{err: errors.New("disk full")}})

	w := ts.do(t, http.MethodPost, "/v1/tasks", api.TaskCreateRequest{Title: "kept in memory"})
	errResp := assertAPIError(t, w, http.StatusInternalServerError, ErrCodeStoreFailure)
	if strings.Contains(errResp.Error, "disk full") {
		t.Fatalf("internal error details leaked: %q", errResp.Error)
	}
	if ts.repo.Len() != 1 {
		t.Fatal("expected the task to stay in memory after a failed write")
	}
}

func TestUnreadableStoreRefusesWrites(t *testing.T) {
	saves := 0
	ts := newTestServerWith(t, testServerConfig{meta: unreadableMeta{saves: &saves}})

	w := ts.do(t, http.MethodPost, "/v1/tasks", api.TaskCreateRequest{Title: "not saved"})
	assertAPIError(t, w, http.StatusInternalServerError, ErrCodeStoreFailure)

	w = ts.do(t, http.MethodPost, "/v1/admin/gc", api.BlobGCRequest{}, "X-Confirm", "true")
	assertAPIError(t, w, http.StatusInternalServerError, ErrCodeStoreFailure)

	if saves != 0 {
		t.Fatalf("expected no writes to an unreadable store, got %d", saves)
	}
}

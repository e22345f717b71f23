package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mproc/internal/blobstore"
	"mproc/internal/codec"
	"mproc/internal/sqlitedb"
)

func TestExportInlinesPayloads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	icon := upload("icon.png", "image/png", "png!")
	task := mustCreate(t, env.repo, TaskInput{
		Title:       "Exported",
		Due:         "2024-02-02",
		Icon:        &icon,
		Attachments: []Upload{upload("a.txt", "text/plain", "hi")},
	})

	var buf bytes.Buffer
	if err := env.repo.WriteExport(ctx, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"version\": 1") {
		t.Fatalf("expected indented document, got %s", buf.String())
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, doc["exportedAt"].(string)); err != nil {
		t.Fatalf("exportedAt not RFC3339: %v", err)
	}
	tasks := doc["tasks"].([]any)
	first := tasks[0].(map[string]any)
	if first["id"] != task.ID || first["iconDataURL"] != "data:image/png;base64,cG5nIQ==" || first["iconName"] != "icon.png" {
		t.Fatalf("unexpected exported task %v", first)
	}
	if _, ok := first["createdAt"].(float64); !ok {
		t.Fatalf("expected numeric createdAt, got %T", first["createdAt"])
	}
	att := first["attachments"].([]any)[0].(map[string]any)
	if att["dataURL"] != "data:text/plain;base64,aGk=" || att["name"] != "a.txt" {
		t.Fatalf("unexpected attachment %v", att)
	}
}

func TestExportSurvivesUnencodableMediaType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	icon := upload("icon.png", "image/png", "png!")
	mustCreate(t, env.repo, TaskInput{
		Title:       "Odd types",
		Icon:        &icon,
		Attachments: []Upload{upload("x.bin", "text/plain", "hi")},
	})

	// Rows written by an older build may hold types the codec cannot encode.
	db, err := sqlitedb.OpenRaw(blobstore.IndexPath(filepath.Join(env.dir, "blobs")))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `UPDATE files SET media_type = 'bogus'`); err != nil {
		t.Fatalf("rewrite media types: %v", err)
	}

	doc, err := env.repo.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	exported := doc.Tasks[0]
	if exported.IconType != codec.DefaultMediaType || exported.IconDataURL == "" {
		t.Fatalf("expected icon exported as octet-stream, got %q", exported.IconType)
	}
	if len(exported.Attachments) != 1 {
		t.Fatalf("expected attachment kept, got %+v", exported.Attachments)
	}
	att := exported.Attachments[0]
	payload, mediaType, err := codec.DecodeBlob(att.DataURL)
	if err != nil {
		t.Fatalf("decode exported attachment: %v", err)
	}
	if string(payload) != "hi" || mediaType != codec.DefaultMediaType || att.Type != codec.DefaultMediaType {
		t.Fatalf("unexpected attachment %q %q %q", payload, mediaType, att.Type)
	}
}

func TestExportSkipsDanglingReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := mustCreate(t, env.repo, TaskInput{
		Title:       "Dangling",
		Attachments: []Upload{upload("gone.txt", "text/plain", "gone"), upload("here.txt", "text/plain", "here")},
	})
	if err := env.blobs.Delete(ctx, task.Attachments[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	doc, err := env.repo.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(doc.Tasks[0].Attachments) != 1 || doc.Tasks[0].Attachments[0].Name != "here.txt" {
		t.Fatalf("expected only the live attachment, got %+v", doc.Tasks[0].Attachments)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	icon := upload("i.png", "image/png", "icon-bytes")
	mustCreate(t, src.repo, TaskInput{Title: "second", Attachments: []Upload{upload("b.txt", "text/plain", "b")}})
	first := mustCreate(t, src.repo, TaskInput{Title: "first", Due: "2024-09-09", Description: "notes", Color: "#112233", Icon: &icon})
	if _, err := src.repo.SetCompleted(ctx, first.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var buf bytes.Buffer
	if err := src.repo.WriteExport(ctx, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestEnv(t)
	result, err := dst.repo.Import(ctx, &buf, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 2 || result.Stored != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	want := src.repo.All()
	got := dst.repo.All()
	if len(got) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Title != w.Title || g.Due != w.Due || g.Description != w.Description ||
			g.Color != w.Color || g.Completed != w.Completed || !g.CreatedAt.Equal(w.CreatedAt.Truncate(time.Millisecond)) {
			t.Fatalf("task %d mismatch:\nwant %+v\ngot  %+v", i, w, g)
		}
		if len(g.Attachments) != len(w.Attachments) || (w.IconID == "") != (g.IconID == "") {
			t.Fatalf("task %d references mismatch", i)
		}
	}
	rec, err := dst.repo.Blob(ctx, got[0].IconID)
	if err != nil || rec == nil || string(rec.Payload) != "icon-bytes" || rec.Name != "i.png" {
		t.Fatalf("unexpected imported icon rec=%v err=%v", rec, err)
	}
	assertReferenceIntegrity(t, dst.repo, dst.blobs)
}

func TestImportOverwriteRequiresConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	old := mustCreate(t, env.repo, TaskInput{Title: "old", Attachments: []Upload{upload("old.txt", "text/plain", "old")}})

	doc := `{"version":1,"tasks":[{"title":"new","attachments":[{"name":"n.txt","type":"text/plain","dataURL":"data:text/plain;base64,bmV3"}]}]}`
	if _, err := env.repo.Import(ctx, strings.NewReader(doc), false); !errors.Is(err, ErrImportNeedsConfirm) {
		t.Fatalf("expected ErrImportNeedsConfirm, got %v", err)
	}
	if env.repo.Len() != 1 {
		t.Fatal("collection must be untouched without confirmation")
	}

	result, err := env.repo.Import(ctx, strings.NewReader(doc), true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	all := env.repo.All()
	if len(all) != 1 || all[0].Title != "new" || all[0].ID == "" {
		t.Fatalf("expected collection replaced, got %+v", all)
	}
	if result.Collected.DeletedCount != 1 {
		t.Fatalf("expected old blob collected, got %+v", result.Collected)
	}
	if rec, _ := env.blobs.Get(ctx, old.Attachments[0].ID); rec != nil {
		t.Fatal("expected previous collection's blob deleted")
	}
	assertReferenceIntegrity(t, env.repo, env.blobs)
}

func TestImportIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreate(t, env.repo, TaskInput{Title: "keep me"})
	before := env.repo.All()

	doc := `{"tasks":[
		{"title":"fine","iconDataURL":"data:image/png;base64,AAEC"},
		{"title":"broken","attachments":[{"name":"x","dataURL":"data:text/plain;base64,***"}]}
	]}`
	_, err := env.repo.Import(ctx, strings.NewReader(doc), true)
	var importErr *ImportError
	if !errors.As(err, &importErr) || importErr.Index != 1 {
		t.Fatalf("expected ImportError at index 1, got %v", err)
	}
	if got := env.repo.All(); len(got) != 1 || got[0].ID != before[0].ID {
		t.Fatalf("collection changed after failed import: %+v", got)
	}
	if n := blobCount(t, env.blobs); n != 0 {
		t.Fatalf("expected blobs from failed import deleted, found %d", n)
	}
}

func TestImportRejectsBadDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		doc   string
		index int
	}{
		{name: "not json", doc: `{`, index: -1},
		{name: "missing tasks", doc: `{"version":1}`, index: -1},
		{name: "tasks not array", doc: `{"tasks":{"a":1}}`, index: -1},
		{name: "empty title", doc: `{"tasks":[{"title":"ok"},{"title":" "}]}`, index: 1},
		{name: "bad due", doc: `{"tasks":[{"title":"x","due":"soon"}]}`, index: 0},
		{name: "bad field type", doc: `{"tasks":[{"title":5}]}`, index: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.repo.Import(ctx, strings.NewReader(tt.doc), true)
			var importErr *ImportError
			if !errors.As(err, &importErr) {
				t.Fatalf("expected ImportError, got %v", err)
			}
			if importErr.Index != tt.index {
				t.Fatalf("expected index %d, got %d (%v)", tt.index, importErr.Index, err)
			}
		})
	}
}

func TestImportLegacyDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := `{"tasks":[
		{"id":"t-aaaa0001","title":"numeric","createdAt":1700000000000,"attachments":[{"id":"f-kept","name":"ref.txt","type":"text/plain"},{"name":"nothing"}]},
		{"id":"t-aaaa0001","title":"dup id","createdAt":"2024-01-02T03:04:05Z"},
		{"title":"no id"}
	]}`
	result, err := env.repo.Import(ctx, strings.NewReader(doc), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 3 {
		t.Fatalf("expected 3 imported, got %+v", result)
	}

	all := env.repo.All()
	if all[0].ID != "t-aaaa0001" || all[1].ID == "t-aaaa0001" || all[2].ID == "" {
		t.Fatalf("expected unique ids, got %s %s %s", all[0].ID, all[1].ID, all[2].ID)
	}
	if !all[0].CreatedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("unexpected numeric createdAt %v", all[0].CreatedAt)
	}
	if !all[1].CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected string createdAt %v", all[1].CreatedAt)
	}
	if all[2].CreatedAt.IsZero() {
		t.Fatal("expected missing createdAt to default to now")
	}
	if len(all[0].Attachments) != 1 || all[0].Attachments[0].ID != "f-kept" {
		t.Fatalf("expected id-only attachment kept, got %+v", all[0].Attachments)
	}
	if all[2].Color == "" {
		t.Fatal("expected default color")
	}
}

package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func fileStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "analyses.json"))
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := fileStore(t)
	a := Analysis{
		ID:        "a1",
		Source:    "report.pdf",
		Sector:    "fintech",
		Provider:  "gemini",
		Model:     "gemini-2.0-flash",
		Status:    StatusCompleted,
		Report:    json.RawMessage(`{"overall_score":7.0}`),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Put(a); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get("a1")
	if !ok {
		t.Fatal("Get: not found")
	}
	if got.Sector != "fintech" || got.Status != StatusCompleted {
		t.Fatalf("record: %+v", got)
	}
	if string(got.Report) != `{"overall_score":7.0}` {
		t.Fatalf("report: %s", got.Report)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyses.json")
	s := New(path)
	if err := s.Put(Analysis{ID: "a1", Sector: "fintech", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened := New(path)
	if _, ok := reopened.Get("a1"); !ok {
		t.Fatal("record lost across reopen")
	}
}

func TestStore_UpdateMutatesInPlace(t *testing.T) {
	s := fileStore(t)
	if err := s.Put(Analysis{ID: "a1", Status: StatusPending, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Update("a1", func(a *Analysis) {
		a.Status = StatusFailed
		a.Error = "stage ideas: no ideas"
	})
	if !ok {
		t.Fatal("Update: not found")
	}
	if got.Status != StatusFailed || got.Error == "" {
		t.Fatalf("updated: %+v", got)
	}

	if _, ok := s.Update("missing", func(a *Analysis) {}); ok {
		t.Fatal("Update must miss unknown IDs")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := fileStore(t)
	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Put(Analysis{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	got := s.List()
	if len(got) != 3 {
		t.Fatalf("list: got=%d want=3", len(got))
	}
	if got[0].ID != "new" || got[2].ID != "old" {
		t.Fatalf("order: %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestOpen_EmptyDSNUsesFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyses.json")
	s := Open("  ", path)
	if s.db != nil {
		t.Fatal("empty DSN must not open a database")
	}
	if err := s.Put(Analysis{ID: "a1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := Open("", path).Get("a1"); !ok {
		t.Fatal("record not readable through file backend")
	}
}

func TestStore_EmptyIDIsIgnored(t *testing.T) {
	s := fileStore(t)
	if err := s.Put(Analysis{ID: "  "}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := s.List(); len(got) != 0 {
		t.Fatalf("list: got=%d want=0", len(got))
	}
}

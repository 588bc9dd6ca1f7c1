package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestDiskStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if err := s.Put(ctx, "a1", "source.pdf", []byte("pdf bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "a1", "report.json", []byte(`{}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "a1", "source.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "pdf bytes" {
		t.Fatalf("content: %s", got)
	}

	names, err := s.List(ctx, "a1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "report.json" || names[1] != "source.pdf" {
		t.Fatalf("names: %v", names)
	}
}

func TestDiskStore_MissingDocumentIsErrNotFound(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	if _, err := s.Get(context.Background(), "a1", "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error: got=%v want ErrNotFound", err)
	}
}

func TestDiskStore_RejectsPathEscapes(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	for _, name := range []string{"../escape", "a/b", `a\b`} {
		if err := s.Put(ctx, "a1", name, []byte("x")); err == nil {
			t.Fatalf("name %q must be rejected", name)
		}
		if err := s.Put(ctx, name, "doc", []byte("x")); err == nil {
			t.Fatalf("analysis id %q must be rejected", name)
		}
	}
}

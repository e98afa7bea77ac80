package filestore

import "testing"

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestStore_PutAndGet(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := record{ID: "a", Value: 42}
	if err := s.Put("a", in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var out record
	if err := s.Get("a", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := New(t.TempDir())
	var out record
	if err := s.Get("missing", &out); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s, _ := New(t.TempDir())
	_ = s.Put("a", record{ID: "a"})
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete idempotent: %v", err)
	}
	if s.Exists("a") {
		t.Fatalf("expected key to be gone")
	}
}

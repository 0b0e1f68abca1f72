package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFileSystemRoundTrip(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	if err := fs.Save(ctx, "sessions/abc.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !fs.Exists(ctx, "sessions/abc.json") {
		t.Error("Exists() = false after save")
	}

	data, err := fs.Load(ctx, "sessions/abc.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("Load() = %q", data)
	}

	if err := fs.Delete(ctx, "sessions/abc.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if fs.Exists(ctx, "sessions/abc.json") {
		t.Error("Exists() = true after delete")
	}
}

func TestFileSystemRejectsEscapes(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	paths := []string{
		"../outside.txt",
		"sessions/../../outside.txt",
		"/etc/passwd",
	}
	for _, p := range paths {
		if err := fs.Save(ctx, p, []byte("nope")); err == nil {
			t.Errorf("Save(%q) accepted a path outside the base directory", p)
		}
		if _, err := fs.Load(ctx, p); err == nil {
			t.Errorf("Load(%q) accepted a path outside the base directory", p)
		}
		if fs.Exists(ctx, p) {
			t.Errorf("Exists(%q) = true", p)
		}
	}
}

func TestFileSystemLoadMissing(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	_, err := fs.Load(context.Background(), "sessions/nothing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemList(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	ctx := context.Background()

	for _, p := range []string{"sessions/a.json", "sessions/b.json", "other/c.json"} {
		if err := fs.Save(ctx, p, []byte("{}")); err != nil {
			t.Fatalf("Save(%q) error = %v", p, err)
		}
	}

	matches, err := fs.List(ctx, "sessions/*.json")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("List() = %v, want 2 session files", matches)
	}

	if _, err := fs.List(ctx, "../*"); err == nil {
		t.Error("List() accepted a pattern outside the base directory")
	}
}

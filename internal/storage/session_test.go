package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeState struct {
	Step  string `json:"step"`
	Topic string `json:"topic"`
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(NewFileSystem(t.TempDir()), nil)
	ctx := context.Background()

	saved := fakeState{Step: "planning", Topic: "volcanoes"}
	if err := store.Save(ctx, "session-1", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var loaded fakeState
	savedAt, err := store.Load(ctx, "session-1", &loaded)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != saved {
		t.Errorf("Load() = %+v, want %+v", loaded, saved)
	}
	if time.Since(savedAt) > time.Minute {
		t.Errorf("SavedAt = %v, want recent", savedAt)
	}
}

func TestSessionStoreOverwrites(t *testing.T) {
	store := NewSessionStore(NewFileSystem(t.TempDir()), nil)
	ctx := context.Background()

	if err := store.Save(ctx, "session-1", fakeState{Step: "planning"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "session-1", fakeState{Step: "slide_generation"}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	var loaded fakeState
	if _, err := store.Load(ctx, "session-1", &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Step != "slide_generation" {
		t.Errorf("step = %q, want latest snapshot", loaded.Step)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("List() = %d entries, want 1", len(infos))
	}
}

func TestSessionStoreMissing(t *testing.T) {
	store := NewSessionStore(NewFileSystem(t.TempDir()), nil)

	var loaded fakeState
	_, err := store.Load(context.Background(), "ghost", &loaded)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() error = %v, want ErrSessionNotFound", err)
	}

	if err := store.Delete(context.Background(), "ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Delete() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreRejectsBadIDs(t *testing.T) {
	store := NewSessionStore(NewFileSystem(t.TempDir()), nil)
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", "a b"} {
		if err := store.Save(ctx, id, fakeState{}); err == nil {
			t.Errorf("Save(%q) accepted an unsafe session id", id)
		}
		if store.Exists(ctx, id) {
			t.Errorf("Exists(%q) = true", id)
		}
	}
}

func TestSessionStoreListOrder(t *testing.T) {
	store := NewSessionStore(NewFileSystem(t.TempDir()), nil)
	ctx := context.Background()

	if err := store.Save(ctx, "older", fakeState{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := store.Save(ctx, "newer", fakeState{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(infos))
	}
	if infos[0].SessionID != "newer" {
		t.Errorf("first entry = %s, want newest", infos[0].SessionID)
	}
}

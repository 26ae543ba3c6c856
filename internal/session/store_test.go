package session

import (
	"context"
	"errors"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	sess := New("file-session")
	sess.AddMessage("user", "what is AAPL trading at?")
	sess.AddMessage("assistant", "around $230")
	sess.MergeFacts([]Fact{{Key: "favorite_ticker", Value: "AAPL", Confidence: "high"}})
	sess.Language = "en"

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "file-session")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("loaded %d messages, want 2", len(loaded.Messages))
	}
	if loaded.FactMap()["favorite_ticker"] != "AAPL" {
		t.Fatalf("facts did not survive: %+v", loaded.Facts)
	}
	if loaded.Language != "en" {
		t.Fatalf("Language = %q, want en", loaded.Language)
	}
}

func TestFileStoreMissingSession(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreIsolation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := New("mem-session")
	sess.AddMessage("user", "hello")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "mem-session")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	loaded.AddMessage("user", "mutation after load")

	again, err := store.Load(ctx, "mem-session")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(again.Messages) != 1 {
		t.Fatal("mutating a loaded session leaked into the store")
	}

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

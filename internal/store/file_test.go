package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreSetGetClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := s.Get(ctx, KeyUsername); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, KeyUsername, "alice", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, KeyUsername)
	if err != nil || got != "alice" {
		t.Fatalf("Get = (%q, %v), want (alice, nil)", got, err)
	}

	if err := s.Clear(ctx, KeyUsername); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Get(ctx, KeyUsername); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Clear: err = %v, want ErrNotFound", err)
	}

	// Clearing an absent key is not an error.
	if err := s.Clear(ctx, KeyUsername); err != nil {
		t.Fatalf("Clear absent key: %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(ctx, KeyUsername, "bob", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, KeyUsername)
	if err != nil || got != "bob" {
		t.Fatalf("Get after reopen = (%q, %v), want (bob, nil)", got, err)
	}
}

func TestFileStoreExpiry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if err := s.Set(ctx, KeyShowAd, "1", ShowAdTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.now = func() time.Time { return base.Add(ShowAdTTL - time.Minute) }
	if got, err := s.Get(ctx, KeyShowAd); err != nil || got != "1" {
		t.Fatalf("Get before expiry = (%q, %v), want (1, nil)", got, err)
	}

	s.now = func() time.Time { return base.Add(ShowAdTTL + time.Minute) }
	if _, err := s.Get(ctx, KeyShowAd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry: err = %v, want ErrNotFound", err)
	}
}

package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestExclusiveExcludesSecondExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	a := New(path)
	b := New(path)
	ctx := context.Background()

	if err := a.Exclusive(ctx, time.Second); err != nil {
		t.Fatalf("first Exclusive: %v", err)
	}
	defer a.Unlock()

	if err := b.Exclusive(ctx, 100*time.Millisecond); err != ErrTimeout {
		t.Fatalf("expected ErrTimeout from a contended lock, got %v", err)
	}
}

func TestSharedAllowsConcurrentReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	a := New(path)
	b := New(path)
	ctx := context.Background()

	if err := a.Shared(ctx, time.Second); err != nil {
		t.Fatalf("first Shared: %v", err)
	}
	defer a.Unlock()

	if err := b.Shared(ctx, time.Second); err != nil {
		t.Fatalf("expected a second Shared lock to succeed, got %v", err)
	}
	b.Unlock()
}

func TestUnlockReleasesForNextExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	a := New(path)
	b := New(path)
	ctx := context.Background()

	if err := a.Exclusive(ctx, time.Second); err != nil {
		t.Fatalf("Exclusive: %v", err)
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	if err := b.Exclusive(ctx, time.Second); err != nil {
		t.Fatalf("expected lock to be free after Unlock, got %v", err)
	}
	b.Unlock()
}

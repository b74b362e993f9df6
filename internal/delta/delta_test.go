//go:build cgo

package delta

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/helixidx/helix/internal/embedder"
	"github.com/helixidx/helix/internal/loader"
	"github.com/helixidx/helix/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath, store.Config{EmbeddingDim: 16, EmbedderName: "test"})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func decision(id uint32, hash string, edges ...loader.Edge) loader.Decision {
	return loader.Decision{
		ID:          id,
		Title:       "decision",
		Status:      "accepted",
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FilePath:    fmt.Sprintf("/decisions/%04d-x.md", id),
		ContentHash: hash,
		Body:        "body text",
		Edges:       edges,
	}
}

func TestSyncClassifiesAddedChangedRemoved(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(16)
	ctx := context.Background()

	res, err := Sync(ctx, s, emb, []loader.Decision{decision(1, "h1"), decision(2, "h2")}, nil)
	if err != nil {
		t.Fatalf("initial Sync: %v", err)
	}
	if res.Added != 2 || res.Changed != 0 || res.Removed != 0 {
		t.Fatalf("unexpected initial result: %+v", res)
	}

	res, err = Sync(ctx, s, emb, []loader.Decision{decision(1, "h1-changed"), decision(3, "h3")}, nil)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("expected 1 added, got %d", res.Added)
	}
	if res.Changed != 1 {
		t.Errorf("expected 1 changed, got %d", res.Changed)
	}
	if res.Removed != 1 {
		t.Errorf("expected 1 removed (decision 2), got %d", res.Removed)
	}

	ids, err := s.AllDecisionIDs(ctx)
	if err != nil {
		t.Fatalf("AllDecisionIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 decisions indexed, got %d: %v", len(ids), ids)
	}
}

func TestSyncWritesEdges(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(16)
	ctx := context.Background()

	d1 := decision(1, "h1")
	d2 := decision(2, "h2", loader.Edge{Kind: loader.KindSupersedes, To: 1})

	if _, err := Sync(ctx, s, emb, []loader.Decision{d1, d2}, nil); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	out, err := s.Outgoing(ctx, 2)
	if err != nil {
		t.Fatalf("Outgoing: %v", err)
	}
	if len(out) != 1 || out[0].ToDecisionID != 1 || out[0].Kind != loader.KindSupersedes {
		t.Fatalf("expected a SUPERSEDES edge 2->1, got %v", out)
	}
}

func TestSyncCarriesWarningsThrough(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(16)
	ctx := context.Background()

	warnings := []loader.Warning{{File: "bad.md", Reason: "missing title"}}
	res, err := Sync(ctx, s, emb, nil, warnings)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].File != "bad.md" {
		t.Fatalf("expected warnings to pass through unchanged, got %v", res.Warnings)
	}
}

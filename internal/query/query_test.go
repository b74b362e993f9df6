//go:build cgo

package query

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/helixidx/helix/internal/embedder"
	"github.com/helixidx/helix/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath, store.Config{EmbeddingDim: 32, EmbedderName: "test"})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDecision(t *testing.T, ctx context.Context, s *store.Store, emb embedder.Embedder, id uint32, title, status, body string, tags []string) {
	t.Helper()
	vec, err := emb.Embed(ctx, body)
	if err != nil {
		t.Fatalf("embedding seed %d: %v", id, err)
	}
	row := store.Row{
		DecisionID:  id,
		Title:       title,
		Status:      status,
		Date:        "2024-01-01",
		Tags:        tags,
		FilePath:    fmt.Sprintf("/decisions/%04d.md", id),
		ContentHash: fmt.Sprintf("hash-%d", id),
		Body:        body,
	}
	if _, err := s.UpsertDecision(ctx, row, vec); err != nil {
		t.Fatalf("upserting seed %d: %v", id, err)
	}
}

func TestSearchRanksBySimilarityAndFilters(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(32)
	ctx := context.Background()

	seedDecision(t, ctx, s, emb, 1, "Use PostgreSQL", "accepted", "we chose postgresql for jsonb support and maturity", []string{"storage"})
	seedDecision(t, ctx, s, emb, 2, "Adopt esbuild", "proposed", "the frontend build pipeline now uses esbuild instead of webpack", []string{"frontend"})

	hits, err := Search(ctx, s, emb, "postgresql jsonb maturity", SearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].DecisionID != 1 {
		t.Fatalf("expected decision 1 to rank first, got %+v", hits)
	}

	filtered, err := Search(ctx, s, emb, "postgresql jsonb maturity", SearchOptions{Limit: 5, Status: "proposed"})
	if err != nil {
		t.Fatalf("Search with status filter: %v", err)
	}
	for _, h := range filtered {
		if h.Status != "proposed" {
			t.Fatalf("expected only proposed decisions, got %+v", filtered)
		}
	}
}

func TestSearchEnrichmentAttachesOneHopNeighbors(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(32)
	ctx := context.Background()

	seedDecision(t, ctx, s, emb, 1, "Use PostgreSQL", "accepted", "we chose postgresql for jsonb support and maturity", nil)
	seedDecision(t, ctx, s, emb, 2, "Connection pooling", "accepted", "pgbouncer sits in front of postgresql", nil)
	if err := s.ReplaceEdges(ctx, 2, []store.Edge{{FromDecisionID: 2, Kind: "DEPENDS_ON", ToDecisionID: 1}}); err != nil {
		t.Fatalf("ReplaceEdges: %v", err)
	}

	hits, err := Search(ctx, s, emb, "postgresql jsonb maturity", SearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Search without enrichment: %v", err)
	}
	for _, h := range hits {
		if h.Related != nil {
			t.Fatalf("expected no Related without Enrich, got %+v", h)
		}
	}

	hits, err = Search(ctx, s, emb, "postgresql jsonb maturity", SearchOptions{Limit: 5, Enrich: true})
	if err != nil {
		t.Fatalf("Search with enrichment: %v", err)
	}
	var found bool
	for _, h := range hits {
		if h.DecisionID != 1 {
			continue
		}
		found = true
		if len(h.Related) != 1 || h.Related[0].DecisionID != 2 || h.Related[0].Kind != "DEPENDS_ON" {
			t.Fatalf("expected decision 1 to list decision 2 as a DEPENDS_ON neighbor, got %+v", h.Related)
		}
	}
	if !found {
		t.Fatal("expected decision 1 among the results")
	}
}

func TestChainWalksSupersessionForward(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(32)
	ctx := context.Background()

	seedDecision(t, ctx, s, emb, 2, "Original", "superseded", "original decision text", nil)
	seedDecision(t, ctx, s, emb, 5, "Revision", "superseded", "revision decision text", nil)
	seedDecision(t, ctx, s, emb, 8, "Latest", "accepted", "latest decision text", nil)

	if err := s.ReplaceEdges(ctx, 5, []store.Edge{{FromDecisionID: 5, Kind: "SUPERSEDES", ToDecisionID: 2}}); err != nil {
		t.Fatalf("ReplaceEdges 5->2: %v", err)
	}
	if err := s.ReplaceEdges(ctx, 8, []store.Edge{{FromDecisionID: 8, Kind: "SUPERSEDES", ToDecisionID: 5}}); err != nil {
		t.Fatalf("ReplaceEdges 8->5: %v", err)
	}

	chain, err := Chain(ctx, s, 2)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	wantOrder := []uint32{2, 5, 8}
	if len(chain) != len(wantOrder) {
		t.Fatalf("expected chain length %d, got %d (%+v)", len(wantOrder), len(chain), chain)
	}
	for i, id := range wantOrder {
		if chain[i].DecisionID != id {
			t.Fatalf("chain[%d] = %d, want %d", i, chain[i].DecisionID, id)
		}
	}
	if !chain[len(chain)-1].Current {
		t.Fatal("expected the last chain node to be marked Current")
	}
}

func TestRelatedBreadthFirstByDepth(t *testing.T) {
	s := newTestStore(t)
	emb, _ := embedder.NewLocal(32)
	ctx := context.Background()

	for _, id := range []uint32{1, 2, 3, 4} {
		seedDecision(t, ctx, s, emb, id, fmt.Sprintf("decision %d", id), "accepted", "body", nil)
	}
	// 1 -- RELATED_TO --> 2 -- DEPENDS_ON --> 3, and 4 is unconnected.
	if err := s.ReplaceEdges(ctx, 1, []store.Edge{{FromDecisionID: 1, Kind: "RELATED_TO", ToDecisionID: 2}}); err != nil {
		t.Fatalf("ReplaceEdges 1: %v", err)
	}
	if err := s.ReplaceEdges(ctx, 2, []store.Edge{{FromDecisionID: 2, Kind: "DEPENDS_ON", ToDecisionID: 3}}); err != nil {
		t.Fatalf("ReplaceEdges 2: %v", err)
	}

	nodes, err := Related(ctx, s, 1, 1)
	if err != nil {
		t.Fatalf("Related depth 1: %v", err)
	}
	if len(nodes) != 1 || nodes[0].DecisionID != 2 {
		t.Fatalf("expected only decision 2 at depth 1, got %+v", nodes)
	}

	nodes, err = Related(ctx, s, 1, 2)
	if err != nil {
		t.Fatalf("Related depth 2: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 related decisions within 2 hops, got %+v", nodes)
	}
	for _, n := range nodes {
		if n.DecisionID == 4 {
			t.Fatal("decision 4 is unconnected and should not appear")
		}
	}
}

// Package query implements the three read operations over an indexed
// decision graph: semantic search, supersession-chain traversal, and
// k-hop related-decision lookup. Each is grounded on a row/vector read
// from internal/store; none of them mutate the index.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/helixidx/helix/internal/embedder"
	"github.com/helixidx/helix/internal/loader"
	"github.com/helixidx/helix/internal/store"
)

// NeighborRef is one 1-hop neighbor attached to a Hit when enrichment is
// requested: the neighbor's id, title, and the kind of edge connecting
// it to the result (from either direction).
type NeighborRef struct {
	DecisionID uint32
	Title      string
	Kind       string
}

// Hit is one ranked result of a Search.
type Hit struct {
	DecisionID uint32
	Title      string
	Status     string
	Score      float64
	Related    []NeighborRef // populated only when SearchOptions.Enrich is set
}

// SearchOptions filters and bounds a Search call.
type SearchOptions struct {
	Limit  int
	Status string   // optional exact-match filter, e.g. "accepted"
	Tags   []string // optional: result's tag set must be a superset of Tags
	Enrich bool     // if set, attach each result's 1-hop neighbors
}

// Search embeds query and returns the top-matching decisions by cosine
// similarity, optionally filtered by status or tag. Filtering happens
// after the vector scan (sqlite-vec's MATCH clause can't express it), so
// the scan requests more candidates than Limit when a filter is set.
func Search(ctx context.Context, st *store.Store, emb embedder.Embedder, queryText string, opts SearchOptions) ([]Hit, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	vec, err := emb.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	k := opts.Limit
	if opts.Status != "" || len(opts.Tags) > 0 {
		k = opts.Limit * 8
		if k < 64 {
			k = 64
		}
	}

	vecHits, err := st.VectorSearch(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var hits []Hit
	for _, vh := range vecHits {
		row, err := st.DecisionByID(ctx, vh.DecisionID)
		if err != nil {
			continue // row deleted between the scan and this lookup
		}
		if opts.Status != "" && row.Status != opts.Status {
			continue
		}
		if !containsAll(row.Tags, opts.Tags) {
			continue
		}
		hits = append(hits, Hit{
			DecisionID: row.DecisionID,
			Title:      row.Title,
			Status:     row.Status,
			Score:      1.0 - vh.Distance,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DecisionID < hits[j].DecisionID
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	if opts.Enrich {
		for i := range hits {
			neighbors, err := neighborsOf(ctx, st, hits[i].DecisionID)
			if err != nil {
				return nil, fmt.Errorf("fetching neighbors of %d: %w", hits[i].DecisionID, err)
			}
			hits[i].Related = neighbors
		}
	}

	return hits, nil
}

// neighborsOf fetches the 1-hop neighbors of id across both edge
// directions, resolving each endpoint to its title.
func neighborsOf(ctx context.Context, st *store.Store, id uint32) ([]NeighborRef, error) {
	out, err := st.Outgoing(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := st.Incoming(ctx, id)
	if err != nil {
		return nil, err
	}

	var refs []NeighborRef
	for _, e := range out {
		row, err := st.DecisionByID(ctx, e.ToDecisionID)
		if err != nil {
			continue // dangling edge target never indexed
		}
		refs = append(refs, NeighborRef{DecisionID: row.DecisionID, Title: row.Title, Kind: e.Kind})
	}
	for _, e := range in {
		row, err := st.DecisionByID(ctx, e.FromDecisionID)
		if err != nil {
			continue
		}
		refs = append(refs, NeighborRef{DecisionID: row.DecisionID, Title: row.Title, Kind: e.Kind})
	}
	return refs, nil
}

// containsAll reports whether have is a superset of want (the decision's
// tag set must contain every requested tag).
func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ChainNode is one step of a supersession chain.
type ChainNode struct {
	DecisionID uint32
	Title      string
	Status     string
	Current    bool // true for the final, non-superseded node
}

// Chain walks the supersession history of a decision forward in time:
// starting at startID, it repeatedly follows the incoming SUPERSEDES
// edge (the decision that superseded the current one) until no further
// successor exists. The final node is marked Current.
func Chain(ctx context.Context, st *store.Store, startID uint32) ([]ChainNode, error) {
	visited := map[uint32]bool{}
	var chain []ChainNode

	id := startID
	for {
		if visited[id] {
			break // cycle guard; a well-formed history never loops
		}
		visited[id] = true

		row, err := st.DecisionByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("decision %d not found: %w", id, err)
		}
		chain = append(chain, ChainNode{DecisionID: row.DecisionID, Title: row.Title, Status: row.Status})

		incoming, err := st.Incoming(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reading incoming edges for %d: %w", id, err)
		}

		next, found := firstOfKind(incoming, loader.KindSupersedes)
		if !found {
			break
		}
		id = next
	}

	if len(chain) > 0 {
		chain[len(chain)-1].Current = true
	}
	return chain, nil
}

func firstOfKind(edges []store.Edge, kind string) (uint32, bool) {
	for _, e := range edges {
		if e.Kind == kind {
			return e.FromDecisionID, true
		}
	}
	return 0, false
}

// RelatedNode is one decision reached while walking outward from a seed
// decision, along with the hop distance and the edge kind that
// connected it to the frontier.
type RelatedNode struct {
	DecisionID uint32
	Title      string
	Status     string
	Depth      int
	Kind       string
}

// Related performs a breadth-first walk over the full edge graph
// (direction-agnostic) starting at seedID, up to maxDepth hops, and
// returns every decision reached. Results are ordered by depth, then by
// KindPriority, then by decision id, so ties resolve deterministically.
func Related(ctx context.Context, st *store.Store, seedID uint32, maxDepth int) ([]RelatedNode, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}

	allEdges, err := st.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading edge graph: %w", err)
	}

	type neighbor struct {
		id   uint32
		kind string
	}
	adjacency := make(map[uint32][]neighbor)
	for _, e := range allEdges {
		adjacency[e.FromDecisionID] = append(adjacency[e.FromDecisionID], neighbor{id: e.ToDecisionID, kind: e.Kind})
		adjacency[e.ToDecisionID] = append(adjacency[e.ToDecisionID], neighbor{id: e.FromDecisionID, kind: e.Kind})
	}

	visited := map[uint32]bool{seedID: true}
	type frontierEntry struct {
		id    uint32
		kind  string
		depth int
	}
	queue := []frontierEntry{}
	for _, n := range adjacency[seedID] {
		if !visited[n.id] {
			visited[n.id] = true
			queue = append(queue, frontierEntry{id: n.id, kind: n.kind, depth: 1})
		}
	}

	var found []frontierEntry
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		found = append(found, cur)

		if cur.depth >= maxDepth {
			continue
		}
		for _, n := range adjacency[cur.id] {
			if !visited[n.id] {
				visited[n.id] = true
				queue = append(queue, frontierEntry{id: n.id, kind: n.kind, depth: cur.depth + 1})
			}
		}
	}

	kindRank := make(map[string]int, len(loader.KindPriority))
	for i, k := range loader.KindPriority {
		kindRank[k] = i
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].depth != found[j].depth {
			return found[i].depth < found[j].depth
		}
		if kindRank[found[i].kind] != kindRank[found[j].kind] {
			return kindRank[found[i].kind] < kindRank[found[j].kind]
		}
		return found[i].id < found[j].id
	})

	nodes := make([]RelatedNode, 0, len(found))
	for _, f := range found {
		row, err := st.DecisionByID(ctx, f.id)
		if err != nil {
			continue // dangling edge target never indexed
		}
		nodes = append(nodes, RelatedNode{
			DecisionID: row.DecisionID,
			Title:      row.Title,
			Status:     row.Status,
			Depth:      f.depth,
			Kind:       f.kind,
		})
	}

	return nodes, nil
}

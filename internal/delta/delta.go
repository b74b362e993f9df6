// Package delta reconciles the decisions directory on disk against the
// persisted index: it classifies each decision as added, changed, or
// removed by content hash, embeds and upserts whatever changed, deletes
// whatever disappeared, and rewrites the edge table for anything it
// touched.
package delta

import (
	"context"
	"fmt"

	"github.com/helixidx/helix/internal/embedder"
	"github.com/helixidx/helix/internal/loader"
	"github.com/helixidx/helix/internal/store"
)

// Result summarizes one Sync run.
type Result struct {
	Added    int
	Changed  int
	Removed  int
	Warnings []loader.Warning
}

// batchSize bounds how many decision bodies are embedded per EmbedBatch
// call, mirroring the teacher's chunk-embedding batching.
const batchSize = 32

// Sync reconciles decisions (the current state of the decisions
// directory, as returned by loader.Load) against st. It embeds only the
// decisions whose content hash changed or that are new, deletes any
// indexed decision whose id no longer appears on disk, and rewrites the
// outgoing edges of every decision on disk, changed or not.
func Sync(ctx context.Context, st *store.Store, emb embedder.Embedder, decisions []loader.Decision, warnings []loader.Warning) (Result, error) {
	res := Result{Warnings: warnings}

	existing, err := st.AllContentHashes(ctx)
	if err != nil {
		return res, fmt.Errorf("reading existing index state: %w", err)
	}

	onDisk := make(map[uint32]bool, len(decisions))
	var toEmbed []loader.Decision

	for _, d := range decisions {
		onDisk[d.ID] = true
		prevHash, known := existing[d.ID]
		switch {
		case !known:
			res.Added++
			toEmbed = append(toEmbed, d)
		case prevHash != d.ContentHash:
			res.Changed++
			toEmbed = append(toEmbed, d)
		default:
			// unchanged: body and embedding stay as indexed, but edges are
			// still rewritten below in case a target this decision declares
			// was only indexed in this run -- Sync always re-derives edges
			// for everything on disk.
		}
	}

	for id := range existing {
		if !onDisk[id] {
			if err := st.DeleteDecision(ctx, id); err != nil {
				return res, fmt.Errorf("deleting decision %d: %w", id, err)
			}
			res.Removed++
		}
	}

	if err := embedAndUpsert(ctx, st, emb, toEmbed); err != nil {
		return res, err
	}

	for _, d := range decisions {
		edges := make([]store.Edge, len(d.Edges))
		for i, e := range d.Edges {
			edges[i] = store.Edge{FromDecisionID: d.ID, Kind: e.Kind, ToDecisionID: e.To}
		}
		if err := st.ReplaceEdges(ctx, d.ID, edges); err != nil {
			return res, fmt.Errorf("writing edges for decision %d: %w", d.ID, err)
		}
	}

	return res, nil
}

// embedAndUpsert embeds decision bodies in batches and upserts each
// resulting row. A batch-level embedding failure falls back to
// embedding each decision in the batch individually, so one bad text
// doesn't cost the whole batch.
func embedAndUpsert(ctx context.Context, st *store.Store, emb embedder.Embedder, decisions []loader.Decision) error {
	for i := 0; i < len(decisions); i += batchSize {
		end := i + batchSize
		if end > len(decisions) {
			end = len(decisions)
		}
		batch := decisions[i:end]

		texts := make([]string, len(batch))
		for j, d := range batch {
			texts[j] = d.Title + "\n\n" + d.Body
		}

		vectors, err := emb.EmbedBatch(ctx, texts)
		if err != nil {
			vectors = make([][]float32, len(batch))
			for j, d := range batch {
				v, ferr := emb.Embed(ctx, texts[j])
				if ferr != nil {
					return fmt.Errorf("embedding decision %d: %w", d.ID, ferr)
				}
				vectors[j] = v
			}
		}

		for j, d := range batch {
			row := store.Row{
				DecisionID:  d.ID,
				UUID:        d.UUID,
				Title:       d.Title,
				Status:      d.Status,
				Date:        d.Date.Format("2006-01-02"),
				Deciders:    d.Deciders,
				Tags:        d.Tags,
				FilePath:    d.FilePath,
				ContentHash: d.ContentHash,
				GitCommit:   d.GitCommit,
				Body:        d.Body,
			}
			if _, err := st.UpsertDecision(ctx, row, vectors[j]); err != nil {
				return fmt.Errorf("upserting decision %d: %w", d.ID, err)
			}
		}
	}
	return nil
}

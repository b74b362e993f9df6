// Package helix indexes a directory of markdown decision records into a
// persistent vector + graph index and answers semantic search,
// supersession-chain, and related-decision queries against it.
package helix

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixidx/helix/internal/delta"
	"github.com/helixidx/helix/internal/embedder"
	"github.com/helixidx/helix/internal/loader"
	"github.com/helixidx/helix/internal/lock"
	"github.com/helixidx/helix/internal/query"
	"github.com/helixidx/helix/internal/store"
)

// Engine is the main entry point for the decision index.
type Engine interface {
	// Sync reconciles the configured decisions directory against the
	// index: embedding new or changed decisions, deleting removed ones,
	// and rewriting the edge table. Returns a summary plus any per-file
	// parse warnings (malformed frontmatter does not abort the sync).
	Sync(ctx context.Context) (SyncResult, error)

	// Search returns the decisions whose body is most semantically
	// similar to queryText, optionally filtered by status or tag.
	Search(ctx context.Context, queryText string, opts ...SearchOption) ([]Hit, error)

	// Chain walks the supersession history of decisionID forward in
	// time, from decisionID itself to whichever decision currently
	// supersedes the chain. Decisions that decisionID superseded are not
	// included.
	Chain(ctx context.Context, decisionID uint32) ([]ChainNode, error)

	// Related returns decisions reachable from decisionID within
	// maxDepth hops over the full (direction-agnostic) edge graph.
	Related(ctx context.Context, decisionID uint32, maxDepth int) ([]RelatedNode, error)

	// Close releases the index file and database handle.
	Close() error
}

// SyncResult summarizes one Sync call.
type SyncResult struct {
	Added    int
	Changed  int
	Removed  int
	Warnings []loader.Warning
}

// ParseDecisionID parses a decision id from a command-line argument.
func ParseDecisionID(s string) (uint32, error) {
	return loader.ParseID(s)
}

// Hit is one ranked Search result.
type Hit = query.Hit

// ChainNode is one step of a supersession Chain.
type ChainNode = query.ChainNode

// RelatedNode is one decision reached while walking Related.
type RelatedNode = query.RelatedNode

// NeighborRef is one 1-hop neighbor attached to a Hit by WithRelated.
type NeighborRef = query.NeighborRef

// SearchOption configures a single Search call.
type SearchOption func(*query.SearchOptions)

// WithLimit bounds the number of results Search returns. Default 10.
func WithLimit(n int) SearchOption {
	return func(o *query.SearchOptions) { o.Limit = n }
}

// WithStatus restricts Search to decisions with an exact status match.
func WithStatus(status string) SearchOption {
	return func(o *query.SearchOptions) { o.Status = status }
}

// WithTags restricts Search to decisions whose tag set is a superset of
// tags (conjunctive: every requested tag must be present).
func WithTags(tags ...string) SearchOption {
	return func(o *query.SearchOptions) { o.Tags = tags }
}

// WithRelated attaches each result's 1-hop neighbors (id, title, edge
// kind) to its Hit.Related field.
func WithRelated() SearchOption {
	return func(o *query.SearchOptions) { o.Enrich = true }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg   Config
	store *store.Store
	emb   embedder.Embedder
	lk    *lock.Lock
}

// New opens (or creates) the index described by cfg and returns a ready
// Engine. If cfg.EmbedderName/EmbeddingDim don't match what's already on
// disk, New returns ErrModelMismatch.
func New(cfg Config) (Engine, error) {
	if cfg.DecisionsDir == "" {
		return nil, fmt.Errorf("%w: DecisionsDir is required", ErrInvalidConfigValue)
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("%w: EmbeddingDim must be positive", ErrInvalidConfigValue)
	}

	emb, err := embedder.NewLocal(cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigValue, err)
	}
	if cfg.EmbedderName == "" {
		cfg.EmbedderName = emb.Name()
	}

	dbPath := cfg.resolveDBPath()
	st, err := store.Open(dbPath, store.Config{
		EmbeddingDim: cfg.EmbeddingDim,
		EmbedderName: cfg.EmbedderName,
	})
	if err != nil {
		if errors.Is(err, store.ErrModelMismatch) {
			return nil, fmt.Errorf("%w: %v", ErrModelMismatch, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	return &engine{
		cfg:   cfg,
		store: st,
		emb:   emb,
		lk:    lock.New(dbPath),
	}, nil
}

func (e *engine) Sync(ctx context.Context) (SyncResult, error) {
	if err := e.lk.Exclusive(ctx, e.cfg.LockTimeout); err != nil {
		return SyncResult{}, translateLockErr(err)
	}
	defer e.lk.Unlock()

	decisions, warnings, err := loader.Load(e.cfg.DecisionsDir)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %v", ErrMissingDirectory, err)
	}

	res, err := delta.Sync(ctx, e.store, e.emb, decisions, warnings)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	return SyncResult{Added: res.Added, Changed: res.Changed, Removed: res.Removed, Warnings: res.Warnings}, nil
}

func (e *engine) Search(ctx context.Context, queryText string, opts ...SearchOption) ([]Hit, error) {
	if err := e.lk.Shared(ctx, e.cfg.LockTimeout); err != nil {
		return nil, translateLockErr(err)
	}
	defer e.lk.Unlock()

	var o query.SearchOptions
	for _, opt := range opts {
		opt(&o)
	}

	hits, err := query.Search(ctx, e.store, e.emb, queryText, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailure, err)
	}
	if len(hits) == 0 {
		return nil, ErrEmptyResult
	}
	return hits, nil
}

func (e *engine) Chain(ctx context.Context, decisionID uint32) ([]ChainNode, error) {
	if err := e.lk.Shared(ctx, e.cfg.LockTimeout); err != nil {
		return nil, translateLockErr(err)
	}
	defer e.lk.Unlock()

	chain, err := query.Chain(ctx, e.store, decisionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return chain, nil
}

func (e *engine) Related(ctx context.Context, decisionID uint32, maxDepth int) ([]RelatedNode, error) {
	if err := e.lk.Shared(ctx, e.cfg.LockTimeout); err != nil {
		return nil, translateLockErr(err)
	}
	defer e.lk.Unlock()

	if maxDepth <= 0 {
		maxDepth = e.cfg.MaxRelatedDepth
	}

	if _, err := e.store.DecisionByID(ctx, decisionID); err != nil {
		return nil, fmt.Errorf("%w: decision %d", ErrNotFound, decisionID)
	}

	nodes, err := query.Related(ctx, e.store, decisionID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if len(nodes) == 0 {
		return nil, ErrEmptyResult
	}
	return nodes, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

func translateLockErr(err error) error {
	if errors.Is(err, lock.ErrTimeout) {
		return ErrLockHeld
	}
	return fmt.Errorf("%w: %v", ErrLockHeld, err)
}

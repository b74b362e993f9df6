// Package embedder turns decision text into fixed-dimension vectors for
// the similarity index. The interface mirrors the teacher's llm.Provider
// embedding method so that a remote-model adapter can be dropped in
// later without touching any caller; Local is the deterministic,
// dependency-free implementation used by default and in tests.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Embedder computes vector representations of text.
type Embedder interface {
	// Embed computes a single vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch computes vectors for several texts at once. Implementations
	// that call a remote model should batch here; Local simply loops.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dim reports the fixed dimensionality of vectors this Embedder produces.
	Dim() int
	// Name identifies the embedder for the store's model fingerprint check.
	Name() string
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Local is a deterministic, offline embedder: it hashes overlapping word
// shingles into buckets of a fixed-dimension vector and normalizes the
// result to unit length. It has no notion of semantics beyond shared
// vocabulary, but it is stable across runs and requires no external
// model, which makes it suitable as the default and for tests that need
// reproducible similarity scores.
type Local struct {
	dim int
}

// NewLocal returns a Local embedder producing vectors of the given
// dimension. dim must be positive.
func NewLocal(dim int) (*Local, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedder: dimension must be positive, got %d", dim)
	}
	return &Local{dim: dim}, nil
}

func (l *Local) Dim() int { return l.dim }

func (l *Local) Name() string { return fmt.Sprintf("local-hash-v1/%d", l.dim) }

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return l.vector(text), nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = l.vector(t)
	}
	return out, nil
}

// vector projects the shingles of text into l.dim buckets via SHA-256 and
// returns the L2-normalized result.
func (l *Local) vector(text string) []float32 {
	v := make([]float64, l.dim)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		tokens = []string{""}
	}

	shingle := func(s string) {
		sum := sha256.Sum256([]byte(s))
		bucket := binary.BigEndian.Uint64(sum[0:8]) % uint64(l.dim)
		sign := 1.0
		if sum[8]&1 == 1 {
			sign = -1.0
		}
		weight := 1.0 + float64(sum[9]%16)/16.0
		v[bucket] += sign * weight
	}

	for i, tok := range tokens {
		shingle(tok)
		if i+1 < len(tokens) {
			shingle(tok + "_" + tokens[i+1])
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, l.dim)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

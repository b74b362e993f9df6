package embedder

import (
	"context"
	"math"
	"testing"
)

func TestNewLocalRejectsNonPositiveDim(t *testing.T) {
	if _, err := NewLocal(0); err == nil {
		t.Fatal("expected an error for dim=0")
	}
}

func TestEmbedIsDeterministic(t *testing.T) {
	e, err := NewLocal(64)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	v1, err := e.Embed(ctx, "use postgres for primary storage")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := e.Embed(ctx, "use postgres for primary storage")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v1) != 64 {
		t.Fatalf("expected dim 64, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("Embed is not deterministic at index %d: %v != %v", i, v1[i], v2[i])
		}
	}
}

func TestEmbedIsUnitNorm(t *testing.T) {
	e, _ := NewLocal(32)
	v, err := e.Embed(context.Background(), "some decision body text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-3 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestSimilarTextsAreCloserThanUnrelatedOnes(t *testing.T) {
	e, _ := NewLocal(128)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "we chose postgresql for its jsonb support and maturity")
	b, _ := e.Embed(ctx, "postgresql was selected due to jsonb support and operational maturity")
	c, _ := e.Embed(ctx, "the frontend build pipeline now uses esbuild instead of webpack")

	simAB := cosine(a, b)
	simAC := cosine(a, c)
	if simAB <= simAC {
		t.Fatalf("expected shared-vocabulary texts to score higher: sim(a,b)=%f sim(a,c)=%f", simAB, simAC)
	}
}

func TestEmbedBatchMatchesEmbed(t *testing.T) {
	e, _ := NewLocal(32)
	ctx := context.Background()
	texts := []string{"first decision body", "second decision body"}

	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("EmbedBatch[%d] diverges from Embed at index %d", i, j)
			}
		}
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

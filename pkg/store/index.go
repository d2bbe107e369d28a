package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/config"
)

// Record pairs a chunk with its embedding.
type Record struct {
	Chunk     models.Chunk
	Embedding []float32
}

// Index is the durable similarity index behind the Manager. Implementations
// are not required to be safe for concurrent mutation; the Manager
// serializes Add and Reset.
type Index interface {
	// Open creates or opens the index for vectors of the given dimension.
	Open(ctx context.Context, dim int) error
	Add(ctx context.Context, records []Record) error
	// Search returns up to k chunks ordered by decreasing cosine similarity.
	Search(ctx context.Context, query []float32, k int) ([]models.Chunk, error)
	// Reset removes every stored record.
	Reset(ctx context.Context) error
	// List returns every stored chunk in insertion order.
	List(ctx context.Context) ([]models.Chunk, error)
	Count(ctx context.Context) (int, error)
	// Location describes where the index lives, for diagnostics.
	Location() string
	Close() error
}

// NewIndex returns the backend selected by cfg.Backend. The index is not
// opened.
func NewIndex(cfg config.IndexConfig) (Index, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return NewSQLiteIndex(cfg.Dir), nil
	case config.BackendPgvector:
		return NewPgvectorIndex(PgvectorConfig{
			ConnString: cfg.DatabaseURL,
			TableName:  cfg.TableName,
			BatchSize:  cfg.BatchSize,
		}), nil
	case config.BackendMemory:
		return NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

func cosineSim(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type scored struct {
	chunk models.Chunk
	score float32
}

// topK ranks candidates by score, keeping insertion order among ties.
func topK(candidates []scored, k int) []models.Chunk {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]models.Chunk, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, c.chunk)
	}
	return out
}

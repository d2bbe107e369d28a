package store

import (
	"context"
	"errors"
	"sync"

	"github.com/xhad/ragbot/internal/models"
)

// MemoryIndex is a process-local index using brute-force cosine similarity.
// Nothing survives a restart.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	records   []Record
}

func NewMemoryIndex() *MemoryIndex { return &MemoryIndex{} }

func (m *MemoryIndex) Open(_ context.Context, dim int) error {
	if dim <= 0 {
		return errors.New("invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension != 0 && m.dimension != dim && len(m.records) > 0 {
		return errors.New("vector dimension mismatch")
	}
	m.dimension = dim
	return nil
}

func (m *MemoryIndex) Add(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if len(r.Embedding) != m.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]scored, 0, len(m.records))
	for _, r := range m.records {
		candidates = append(candidates, scored{chunk: r.Chunk, score: cosineSim(r.Embedding, query)})
	}
	return topK(candidates, k), nil
}

func (m *MemoryIndex) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func (m *MemoryIndex) List(_ context.Context) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Chunk, len(m.records))
	for i, r := range m.records {
		out[i] = r.Chunk
	}
	return out, nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryIndex) Location() string { return "memory" }

func (m *MemoryIndex) Close() error { return nil }

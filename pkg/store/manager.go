package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/llm"
)

// ErrNotReady is reported by operations that need an initialized manager.
var ErrNotReady = errors.New("vector store not initialized")

const (
	probeText       = "test"
	healthProbeText = "health check"
)

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Manager owns the embedding backend handle and the durable index. It keeps
// an in-memory mirror of every indexed chunk, which is the authoritative
// count for the rest of the system.
//
// Search calls share the lock; Add, Clear and Initialize hold it exclusively.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	newEmbedder func(config.EmbeddingConfig) (embeddings.Embedder, error)
	newIndex    func(config.IndexConfig) (Index, error)

	mu        sync.RWMutex
	state     State
	embedder  embeddings.Embedder
	index     Index
	dimension int
	chunks    []models.Chunk
	lastErr   string
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEmbedder makes the manager use e instead of building an Ollama client.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(m *Manager) {
		m.newEmbedder = func(config.EmbeddingConfig) (embeddings.Embedder, error) { return e, nil }
	}
}

// WithIndex makes the manager use idx instead of the configured backend.
func WithIndex(idx Index) Option {
	return func(m *Manager) {
		m.newIndex = func(config.IndexConfig) (Index, error) { return idx, nil }
	}
}

func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		logger:      slog.Default(),
		newEmbedder: llm.NewEmbedder,
		newIndex:    NewIndex,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize builds the embedder, confirms the embedding backend answers a
// probe and only then opens the index. Chunks already in the index are
// loaded into the mirror. Calling it again re-opens everything, which is how
// a failed manager recovers.
func (m *Manager) Initialize(ctx context.Context) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateInitializing
	m.closeIndex()

	embedder, err := m.newEmbedder(m.cfg.Embedding)
	if err != nil {
		return m.initFailed(fmt.Sprintf("Failed to initialize embeddings: %v", err))
	}

	probe, err := embedder.EmbedQuery(ctx, probeText)
	if err == nil && len(probe) == 0 {
		err = errors.New("empty embedding returned")
	}
	if err != nil {
		return m.initFailed(fmt.Sprintf(
			"Ollama Error: %v. Make sure Ollama is running with 'ollama serve' and the model '%s' is pulled",
			err, m.cfg.Embedding.Model))
	}

	index, err := m.newIndex(m.cfg.Index)
	if err == nil {
		err = index.Open(ctx, len(probe))
	}
	if err != nil {
		return m.initFailed(fmt.Sprintf("Failed to open vector index: %v", err))
	}

	existing, err := index.List(ctx)
	if err != nil {
		m.logger.Warn("could not load existing chunks", "location", index.Location(), "error", err)
		existing = nil
	}

	m.embedder = embedder
	m.index = index
	m.dimension = len(probe)
	m.chunks = existing
	m.lastErr = ""
	m.state = StateReady

	m.logger.Info("vector store ready",
		"backend", m.cfg.Index.Backend,
		"location", index.Location(),
		"dimension", m.dimension,
		"chunks", len(existing),
	)
	return true, "Vector store initialized successfully"
}

func (m *Manager) initFailed(msg string) (bool, string) {
	m.state = StateUninitialized
	m.embedder = nil
	m.lastErr = msg
	m.logger.Error("vector store initialization failed", "error", msg)
	return false, msg
}

// Add embeds chunks and appends them to the index and the mirror.
func (m *Manager) Add(ctx context.Context, chunks []models.Chunk) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady {
		return false, "Vector store not initialized"
	}
	if len(chunks) == 0 {
		return false, "No documents provided"
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err == nil && len(vectors) != len(chunks) {
		err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err != nil {
		m.lastErr = err.Error()
		m.logger.Error("embedding chunks failed", "chunks", len(chunks), "error", err)
		return false, fmt.Sprintf("Error adding documents: %v", err)
	}

	records := make([]Record, len(chunks))
	for i := range chunks {
		records[i] = Record{Chunk: chunks[i], Embedding: vectors[i]}
	}

	if err := m.index.Add(ctx, records); err != nil {
		m.state = StateFailed
		m.lastErr = err.Error()
		m.logger.Error("writing chunks to index failed", "chunks", len(chunks), "error", err)
		return false, fmt.Sprintf("Error adding documents: %v", err)
	}

	m.chunks = append(m.chunks, chunks...)
	m.logger.Info("chunks indexed", "added", len(chunks), "total", len(m.chunks))
	return true, fmt.Sprintf("Added %d document chunks to vector store", len(chunks))
}

// Search returns the k chunks most similar to query, or the configured
// default when k <= 0. Any failure yields an empty result.
func (m *Manager) Search(ctx context.Context, query string, k int) []models.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StateReady {
		m.logger.Warn("search skipped", "error", ErrNotReady, "state", m.state)
		return nil
	}
	if k <= 0 {
		k = m.cfg.Retrieval.TopK
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		m.logger.Warn("query embedding failed, continuing without context", "error", err)
		return nil
	}

	results, err := m.index.Search(ctx, vector, k)
	if err != nil {
		m.logger.Warn("index search failed, continuing without context", "error", err)
		return nil
	}
	return results
}

// BuildContext joins chunk texts in order, separated by a blank line.
func (m *Manager) BuildContext(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}

// Clear empties the mirror and the index. A failed reset marks the manager
// failed and leaves the mirror untouched.
func (m *Manager) Clear(ctx context.Context) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index == nil {
		m.chunks = nil
		return true, "Vector store cleared successfully"
	}

	if err := m.index.Reset(ctx); err != nil {
		m.state = StateFailed
		m.lastErr = err.Error()
		m.logger.Error("clearing vector store failed", "error", err)
		return false, fmt.Sprintf("Error clearing vector store: %v", err)
	}

	m.chunks = nil
	if m.embedder != nil {
		m.state = StateReady
	}
	m.logger.Info("vector store cleared")
	return true, "Vector store cleared successfully"
}

// Count returns the number of chunks in the mirror.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Chunks returns a copy of the mirror.
func (m *Manager) Chunks() []models.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Chunk(nil), m.chunks...)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

type Info struct {
	State          string `json:"state"`
	Initialized    bool   `json:"initialized"`
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingURL   string `json:"embedding_url"`
	Backend        string `json:"backend"`
	Location       string `json:"location,omitempty"`
	Dimension      int    `json:"dimension,omitempty"`
	DocumentCount  int    `json:"document_count"`
	LastError      string `json:"last_error,omitempty"`
}

func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := Info{
		State:          m.state.String(),
		Initialized:    m.state == StateReady,
		EmbeddingModel: m.cfg.Embedding.Model,
		EmbeddingURL:   m.cfg.Embedding.BaseURL,
		Backend:        m.cfg.Index.Backend,
		Dimension:      m.dimension,
		DocumentCount:  len(m.chunks),
		LastError:      m.lastErr,
	}
	if m.index != nil {
		info.Location = m.index.Location()
	}
	return info
}

type Health struct {
	Initialized         bool   `json:"initialized"`
	EmbeddingsAvailable bool   `json:"embeddings_available"`
	IndexAvailable      bool   `json:"index_available"`
	ProbeOK             bool   `json:"probe_ok"`
	DocumentCount       int    `json:"document_count"`
	IndexedCount        int    `json:"indexed_count"`
	LastError           string `json:"last_error,omitempty"`
}

// HealthCheck embeds a fresh probe string and counts the records the index
// holds. It never changes the state.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	m.mu.RLock()
	h := Health{
		Initialized:         m.state == StateReady,
		EmbeddingsAvailable: m.embedder != nil,
		DocumentCount:       len(m.chunks),
	}
	var indexErr error
	if m.index != nil {
		h.IndexedCount, indexErr = m.index.Count(ctx)
		h.IndexAvailable = indexErr == nil
	}
	embedder := m.embedder
	m.mu.RUnlock()

	if indexErr != nil {
		m.logger.Warn("index count failed", "error", indexErr)
		m.mu.Lock()
		m.lastErr = indexErr.Error()
		m.mu.Unlock()
	}

	if embedder != nil {
		vec, err := embedder.EmbedQuery(ctx, healthProbeText)
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding returned")
		}
		if err != nil {
			m.mu.Lock()
			m.lastErr = err.Error()
			m.mu.Unlock()
		} else {
			h.ProbeOK = true
		}
	}

	m.mu.RLock()
	h.LastError = m.lastErr
	m.mu.RUnlock()
	return h
}

// Close releases the index. The manager must be initialized again before use.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.closeIndex()
	m.embedder = nil
	m.state = StateUninitialized
	return err
}

func (m *Manager) closeIndex() error {
	if m.index == nil {
		return nil
	}
	err := m.index.Close()
	m.index = nil
	return err
}

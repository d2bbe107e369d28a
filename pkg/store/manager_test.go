package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/ragbot/internal/logging"
	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/internal/testutil"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/store"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Chat.APIKey = "test-key"
	cfg.Index.Backend = backend
	cfg.Index.Dir = t.TempDir()
	return cfg
}

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "a-0", Source: "a.txt", Index: 0, Content: "The river flows past the old mill."},
		{ID: "a-1", Source: "a.txt", Index: 1, Content: "Quarterly revenue grew by nine percent."},
		{ID: "b-0", Source: "b.txt", Index: 0, Content: "The launch code word is zanzibarite."},
		{ID: "b-1", Source: "b.txt", Index: 1, Content: "गंगा नदी हिमालय से निकलती है।"},
	}
}

func newReadyManager(t *testing.T, backend string, emb *testutil.BagOfWords) *store.Manager {
	t.Helper()
	m := store.NewManager(testConfig(t, backend),
		store.WithEmbedder(emb),
		store.WithLogger(logging.Discard()),
	)
	ok, msg := m.Initialize(context.Background())
	require.True(t, ok, msg)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_InitializeProbeFailure(t *testing.T) {
	emb := testutil.NewBagOfWords(64)
	emb.Fail(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"))

	m := store.NewManager(testConfig(t, config.BackendMemory),
		store.WithEmbedder(emb),
		store.WithLogger(logging.Discard()),
	)

	ok, msg := m.Initialize(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "ollama serve")
	assert.Contains(t, msg, "connection refused")
	assert.Equal(t, store.StateUninitialized, m.State())
	assert.Equal(t, msg, m.Info().LastError)
}

func TestManager_InitializeIndexFailure(t *testing.T) {
	cfg := testConfig(t, "cassandra")
	m := store.NewManager(cfg,
		store.WithEmbedder(testutil.NewBagOfWords(64)),
		store.WithLogger(logging.Discard()),
	)

	ok, msg := m.Initialize(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "Failed to open vector index")
	assert.NotEqual(t, store.StateReady, m.State())
}

func TestManager_NotReady(t *testing.T) {
	m := store.NewManager(testConfig(t, config.BackendMemory), store.WithLogger(logging.Discard()))

	ok, msg := m.Add(context.Background(), sampleChunks())
	assert.False(t, ok)
	assert.Equal(t, "Vector store not initialized", msg)

	assert.Empty(t, m.Search(context.Background(), "anything", 3))
	assert.Equal(t, 0, m.Count())

	ok, _ = m.Clear(context.Background())
	assert.True(t, ok)
}

func TestManager_AddAndSearch(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			m := newReadyManager(t, backend, testutil.NewBagOfWords(4096))
			ctx := context.Background()

			ok, msg := m.Add(ctx, nil)
			assert.False(t, ok)
			assert.Equal(t, "No documents provided", msg)

			ok, msg = m.Add(ctx, sampleChunks())
			require.True(t, ok, msg)
			assert.Equal(t, "Added 4 document chunks to vector store", msg)
			assert.Equal(t, 4, m.Count())

			results := m.Search(ctx, "zanzibarite", 3)
			require.NotEmpty(t, results)
			assert.LessOrEqual(t, len(results), 3)
			assert.Equal(t, "b-0", results[0].ID)
			assert.Equal(t, "b.txt", results[0].Source)

			results = m.Search(ctx, "हिमालय", 1)
			require.Len(t, results, 1)
			assert.Equal(t, "b-1", results[0].ID)
		})
	}
}

func TestManager_SearchDefaultsToConfiguredK(t *testing.T) {
	m := newReadyManager(t, config.BackendMemory, testutil.NewBagOfWords(64))
	ctx := context.Background()

	ok, msg := m.Add(ctx, sampleChunks())
	require.True(t, ok, msg)

	assert.Len(t, m.Search(ctx, "river", 0), 3)
}

func TestManager_SearchDegradesToEmpty(t *testing.T) {
	emb := testutil.NewBagOfWords(64)
	m := newReadyManager(t, config.BackendMemory, emb)
	ctx := context.Background()

	ok, msg := m.Add(ctx, sampleChunks())
	require.True(t, ok, msg)

	emb.Fail(errors.New("ollama went away"))
	assert.Empty(t, m.Search(ctx, "zanzibarite", 3))
	assert.Equal(t, store.StateReady, m.State())

	emb.Fail(nil)
	assert.NotEmpty(t, m.Search(ctx, "zanzibarite", 3))
}

func TestManager_AddEmbeddingFailure(t *testing.T) {
	emb := testutil.NewBagOfWords(64)
	m := newReadyManager(t, config.BackendMemory, emb)

	emb.Fail(errors.New("model not found"))
	ok, msg := m.Add(context.Background(), sampleChunks())
	assert.False(t, ok)
	assert.Contains(t, msg, "model not found")
	assert.Equal(t, 0, m.Count())
}

func TestManager_BuildContext(t *testing.T) {
	m := store.NewManager(testConfig(t, config.BackendMemory))

	assert.Equal(t, "", m.BuildContext(nil))

	chunks := sampleChunks()[:2]
	assert.Equal(t,
		"The river flows past the old mill.\n\nQuarterly revenue grew by nine percent.",
		m.BuildContext(chunks))
}

func TestManager_Clear(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			m := newReadyManager(t, backend, testutil.NewBagOfWords(64))
			ctx := context.Background()

			ok, msg := m.Add(ctx, sampleChunks())
			require.True(t, ok, msg)

			for range 2 {
				ok, msg = m.Clear(ctx)
				require.True(t, ok, msg)
				assert.Equal(t, 0, m.Count())
				assert.Empty(t, m.Search(ctx, "zanzibarite", 3))
				assert.Equal(t, store.StateReady, m.State())
			}
		})
	}
}

func TestManager_HydratesFromPersistedIndex(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	emb := testutil.NewBagOfWords(4096)
	ctx := context.Background()

	first := store.NewManager(cfg, store.WithEmbedder(emb), store.WithLogger(logging.Discard()))
	ok, msg := first.Initialize(ctx)
	require.True(t, ok, msg)
	ok, msg = first.Add(ctx, sampleChunks())
	require.True(t, ok, msg)
	require.NoError(t, first.Close())

	second := store.NewManager(cfg, store.WithEmbedder(emb), store.WithLogger(logging.Discard()))
	ok, msg = second.Initialize(ctx)
	require.True(t, ok, msg)
	defer second.Close()

	assert.Equal(t, 4, second.Count())
	assert.Equal(t, sampleChunks(), second.Chunks())

	results := second.Search(ctx, "zanzibarite", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "b-0", results[0].ID)
}

func TestManager_SQLiteRejectsDimensionChange(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	ctx := context.Background()

	first := store.NewManager(cfg, store.WithEmbedder(testutil.NewBagOfWords(32)), store.WithLogger(logging.Discard()))
	ok, msg := first.Initialize(ctx)
	require.True(t, ok, msg)
	ok, msg = first.Add(ctx, sampleChunks())
	require.True(t, ok, msg)
	require.NoError(t, first.Close())

	second := store.NewManager(cfg, store.WithEmbedder(testutil.NewBagOfWords(64)), store.WithLogger(logging.Discard()))
	ok, msg = second.Initialize(ctx)
	assert.False(t, ok)
	assert.Contains(t, msg, "32-dimensional")
}

func TestManager_InfoAndHealth(t *testing.T) {
	emb := testutil.NewBagOfWords(64)
	m := newReadyManager(t, config.BackendMemory, emb)
	ctx := context.Background()

	info := m.Info()
	assert.True(t, info.Initialized)
	assert.Equal(t, "ready", info.State)
	assert.Equal(t, "nomic-embed-text", info.EmbeddingModel)
	assert.Equal(t, "memory", info.Location)
	assert.Equal(t, 64, info.Dimension)

	h := m.HealthCheck(ctx)
	assert.True(t, h.Initialized)
	assert.True(t, h.EmbeddingsAvailable)
	assert.True(t, h.ProbeOK)
	assert.Empty(t, h.LastError)

	emb.Fail(errors.New("ollama down"))
	h = m.HealthCheck(ctx)
	assert.False(t, h.ProbeOK)
	assert.Equal(t, "ollama down", h.LastError)
	assert.Equal(t, store.StateReady, m.State())
}

func TestManager_Reinitialize(t *testing.T) {
	idx := store.NewMemoryIndex()
	emb := testutil.NewBagOfWords(64)
	m := store.NewManager(testConfig(t, config.BackendMemory),
		store.WithEmbedder(emb),
		store.WithIndex(idx),
		store.WithLogger(logging.Discard()),
	)
	ctx := context.Background()

	ok, msg := m.Initialize(ctx)
	require.True(t, ok, msg)
	ok, msg = m.Add(ctx, sampleChunks())
	require.True(t, ok, msg)

	ok, msg = m.Initialize(ctx)
	require.True(t, ok, msg)
	assert.Equal(t, 4, m.Count())
}

type brokenIndex struct {
	*store.MemoryIndex
	resetErr error
	countErr error
	opens    int
	resets   int
}

func (b *brokenIndex) Open(ctx context.Context, dim int) error {
	b.opens++
	return b.MemoryIndex.Open(ctx, dim)
}

func (b *brokenIndex) Reset(ctx context.Context) error {
	b.resets++
	if b.resetErr != nil {
		return b.resetErr
	}
	return b.MemoryIndex.Reset(ctx)
}

func (b *brokenIndex) Count(ctx context.Context) (int, error) {
	if b.countErr != nil {
		return 0, b.countErr
	}
	return b.MemoryIndex.Count(ctx)
}

func TestManager_ClearFailureSurfacesFirstError(t *testing.T) {
	idx := &brokenIndex{MemoryIndex: store.NewMemoryIndex()}
	m := store.NewManager(testConfig(t, config.BackendMemory),
		store.WithEmbedder(testutil.NewBagOfWords(64)),
		store.WithIndex(idx),
		store.WithLogger(logging.Discard()),
	)
	ctx := context.Background()
	ok, msg := m.Initialize(ctx)
	require.True(t, ok, msg)
	ok, msg = m.Add(ctx, sampleChunks())
	require.True(t, ok, msg)

	idx.resetErr = errors.New("disk full")
	ok, msg = m.Clear(ctx)
	assert.False(t, ok)
	assert.Equal(t, "Error clearing vector store: disk full", msg)
	assert.Equal(t, 1, idx.resets)
	assert.Equal(t, 1, idx.opens)
	assert.Equal(t, store.StateFailed, m.State())
	assert.Equal(t, 4, m.Count())
	assert.Equal(t, "disk full", m.Info().LastError)
}

func TestManager_HealthCountsIndex(t *testing.T) {
	idx := &brokenIndex{MemoryIndex: store.NewMemoryIndex()}
	m := store.NewManager(testConfig(t, config.BackendMemory),
		store.WithEmbedder(testutil.NewBagOfWords(64)),
		store.WithIndex(idx),
		store.WithLogger(logging.Discard()),
	)
	ctx := context.Background()
	ok, msg := m.Initialize(ctx)
	require.True(t, ok, msg)
	ok, msg = m.Add(ctx, sampleChunks())
	require.True(t, ok, msg)

	h := m.HealthCheck(ctx)
	assert.True(t, h.IndexAvailable)
	assert.Equal(t, 4, h.IndexedCount)
	assert.Equal(t, 4, h.DocumentCount)

	idx.countErr = errors.New("table missing")
	h = m.HealthCheck(ctx)
	assert.False(t, h.IndexAvailable)
	assert.True(t, h.ProbeOK)
	assert.Equal(t, "table missing", h.LastError)
	assert.Equal(t, store.StateReady, m.State())
}

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/lang"
	"github.com/xhad/ragbot/pkg/llm"
	"github.com/xhad/ragbot/pkg/processor"
	"github.com/xhad/ragbot/pkg/store"
)

// Chatter is the part of the chat client the orchestrator depends on.
type Chatter interface {
	Answer(ctx context.Context, question, docContext string, language lang.Language) string
	TestConnection(ctx context.Context) (bool, string)
	ModelInfo() llm.ModelInfo
}

// System ties the processor, the vector store and the chat client together.
// It is safe for concurrent use; Initialize excludes every other operation.
type System struct {
	cfg       *config.Config
	logger    *slog.Logger
	processor *processor.Processor
	store     *store.Manager
	newChat   func(config.ChatConfig) (Chatter, error)

	mu          sync.RWMutex
	chat        Chatter
	initialized bool
}

type Option func(*System)

func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.logger = l }
}

// WithChatFactory replaces construction of the OpenAI-compatible client.
func WithChatFactory(f func(config.ChatConfig) (Chatter, error)) Option {
	return func(s *System) { s.newChat = f }
}

// WithStore makes the system use an existing vector store manager.
func WithStore(m *store.Manager) Option {
	return func(s *System) { s.store = m }
}

func New(cfg *config.Config, opts ...Option) (*System, error) {
	s := &System{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newChat == nil {
		logger := s.logger
		s.newChat = func(c config.ChatConfig) (Chatter, error) {
			return llm.NewChatClient(c, llm.WithChatLogger(logger))
		}
	}

	p, err := processor.NewWithConfig(cfg.Processor, processor.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("creating document processor: %w", err)
	}
	s.processor = p

	if s.store == nil {
		s.store = store.NewManager(cfg, store.WithLogger(s.logger))
	}
	return s, nil
}

// Initialize checks the chat backend first and only then the embedding
// backend and index.
func (s *System) Initialize(ctx context.Context) (ok bool, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during initialization", "panic", r)
			ok, msg = false, fmt.Sprintf("RAG system initialization error: %v", r)
		}
	}()

	chat, err := s.newChat(s.cfg.Chat)
	if err != nil {
		return false, fmt.Sprintf("Chat client initialization failed: %v", err)
	}
	s.chat = chat

	if ok, msg := chat.TestConnection(ctx); !ok {
		s.logger.Error("chat backend check failed", "model", s.cfg.Chat.Model, "error", msg)
		return false, "Chat client initialization failed: " + msg
	}

	if ok, msg := s.store.Initialize(ctx); !ok {
		return false, "Vector store initialization failed: " + msg
	}

	s.initialized = true
	s.logger.Info("RAG system initialized", "chat_model", s.cfg.Chat.Model, "embedding_model", s.cfg.Embedding.Model)
	return true, "RAG system initialized successfully!"
}

// IsInitialized reports whether Initialize has succeeded.
func (s *System) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Ingest processes paths and indexes the resulting chunks. Files that fail
// to load are reported in the message as long as one file succeeds.
func (s *System) Ingest(ctx context.Context, paths []string) (ok bool, msg string) {
	if !s.IsInitialized() {
		return false, "RAG system not initialized"
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during ingest", "panic", r)
			ok, msg = false, lang.ProcessingError(fmt.Errorf("%v", r), lang.English)
		}
	}()

	ok, msg, chunks := s.processor.Process(ctx, paths)
	if !ok {
		return false, msg
	}
	if len(chunks) == 0 {
		return false, "No documents were processed"
	}

	added, addMsg := s.store.Add(ctx, chunks)
	if !added {
		return false, "Vector store error: " + addMsg
	}

	s.logger.Info("ingested files", "files", len(paths), "chunks", len(chunks))
	return true, fmt.Sprintf("%s. %s", msg, addMsg)
}

// Query answers question in the language it is written in. Every outcome,
// including failures, is an answer string; Sources is never nil.
func (s *System) Query(ctx context.Context, question string) (result models.QueryResult) {
	language := lang.Detect(question, s.cfg.Language.HindiThreshold)
	result = models.QueryResult{Language: string(language), Sources: []models.Chunk{}}

	if s.store.Count() == 0 {
		result.Answer = lang.Message(lang.NoDocsError, language)
		return result
	}

	s.mu.RLock()
	initialized, chat := s.initialized, s.chat
	s.mu.RUnlock()

	if !initialized {
		result.Answer = lang.Message(lang.NotReady, language)
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during query", "panic", r)
			result.Answer = lang.APIError(fmt.Errorf("%v", r), language)
			result.Sources = []models.Chunk{}
		}
	}()

	docs := s.store.Search(ctx, question, s.cfg.Retrieval.TopK)
	docContext := s.store.BuildContext(docs)

	result.Answer = chat.Answer(ctx, question, docContext, language)
	if len(docs) > 0 {
		result.Sources = docs
	}

	s.logger.Debug("answered query", "language", language, "sources", len(docs))
	return result
}

// Clear removes every indexed chunk.
func (s *System) Clear(ctx context.Context) (ok bool, msg string) {
	defer func() {
		if r := recover(); r != nil {
			ok, msg = false, fmt.Sprintf("Error clearing documents: %v", r)
		}
	}()
	return s.store.Clear(ctx)
}

type Status struct {
	Initialized      bool           `json:"is_initialized"`
	DocumentCount    int            `json:"document_count"`
	ChatModel        *llm.ModelInfo `json:"chat_model"`
	VectorStore      store.Info     `json:"vector_store_info"`
	SupportedFormats []string       `json:"supported_formats"`
	Health           *store.Health  `json:"health_check,omitempty"`
}

// Status reports the current state. A fresh health check is only run once
// the system is initialized.
func (s *System) Status(ctx context.Context) Status {
	s.mu.RLock()
	initialized, chat := s.initialized, s.chat
	s.mu.RUnlock()

	st := Status{
		Initialized:      initialized,
		DocumentCount:    s.store.Count(),
		VectorStore:      s.store.Info(),
		SupportedFormats: processor.SupportedFormats(),
	}
	if chat != nil {
		info := chat.ModelInfo()
		st.ChatModel = &info
	}
	if initialized {
		h := s.store.HealthCheck(ctx)
		st.Health = &h
	}
	return st
}

// DocumentStats aggregates the chunks currently indexed.
func (s *System) DocumentStats() processor.Stats {
	return processor.ComputeStats(s.store.Chunks())
}

// ValidateFile reports whether filename can be ingested.
func (s *System) ValidateFile(filename string) bool {
	return s.processor.Validate(filename)
}

func (s *System) SupportedFormats() []string {
	return processor.SupportedFormats()
}

// Close releases the vector index.
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	return s.store.Close()
}

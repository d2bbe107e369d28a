package rag

import (
	"context"
	"fmt"

	"github.com/xhad/ragbot/pkg/store"
)

type Issue struct {
	Key       string   `json:"key"`
	Issue     string   `json:"issue"`
	Solutions []string `json:"solutions"`
}

type ActiveConfig struct {
	ChatModel      string `json:"chat_model"`
	EmbeddingModel string `json:"embedding_model"`
	IndexBackend   string `json:"index_backend"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	TopK           int    `json:"top_k"`
}

type Troubleshooting struct {
	CommonIssues  []Issue       `json:"common_issues"`
	CurrentStatus *store.Health `json:"current_status,omitempty"`
	Configuration ActiveConfig  `json:"configuration"`
}

// Troubleshooting lists known problems with their remedies alongside the
// current health and configuration.
func (s *System) Troubleshooting(ctx context.Context) Troubleshooting {
	t := Troubleshooting{
		CommonIssues: []Issue{
			{
				Key:   "chat_api",
				Issue: "Chat API connection failed",
				Solutions: []string{
					"Check your GROQ_API_KEY",
					"Verify internet connection",
					fmt.Sprintf("Check that the API at %s is reachable", s.cfg.Chat.BaseURL),
					"Check API key permissions",
				},
			},
			{
				Key:   "embeddings",
				Issue: "Ollama embeddings failed",
				Solutions: []string{
					"Make sure Ollama is running: ollama serve",
					fmt.Sprintf("Install required model: ollama pull %s", s.cfg.Embedding.Model),
					fmt.Sprintf("Check Ollama base URL configuration (currently %s)", s.cfg.Embedding.BaseURL),
				},
			},
			{
				Key:   "documents",
				Issue: "Document processing failed",
				Solutions: []string{
					"Check file format (PDF, TXT supported)",
					"Verify file is not corrupted",
					"Check file permissions",
				},
			},
		},
		Configuration: ActiveConfig{
			ChatModel:      s.cfg.Chat.Model,
			EmbeddingModel: s.cfg.Embedding.Model,
			IndexBackend:   s.cfg.Index.Backend,
			ChunkSize:      s.cfg.Processor.ChunkSize,
			ChunkOverlap:   s.cfg.Processor.ChunkOverlap,
			TopK:           s.cfg.Retrieval.TopK,
		},
	}

	if s.IsInitialized() {
		h := s.store.HealthCheck(ctx)
		t.CurrentStatus = &h
	}
	return t
}

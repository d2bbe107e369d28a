package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/ragbot/pkg/config"
)

const embedTimeout = 60 * time.Second

// NewEmbedder returns an embedder backed by a local Ollama server. It does
// not contact the server; callers probe it before trusting it.
func NewEmbedder(cfg config.EmbeddingConfig) (embeddings.Embedder, error) {
	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(strings.TrimSuffix(cfg.BaseURL, "/")),
		ollama.WithHTTPClient(&http.Client{Timeout: embedTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Ollama client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedder, nil
}

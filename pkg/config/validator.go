package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Chat backend
	if c.Chat.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "chat.api_key",
			Message: "chat API key is required",
		})
	}

	if u, err := url.Parse(c.Chat.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "chat.base_url",
			Message: "invalid chat base URL",
		})
	}

	if c.Chat.Timeout < 1 {
		errors = append(errors, ValidationError{
			Field:   "chat.timeout",
			Message: "timeout must be at least 1 second",
		})
	}

	if c.Chat.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "chat.max_tokens",
			Message: "max_tokens must be positive",
		})
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "chat.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Chat.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "chat.rate_limit",
			Message: "rate_limit cannot be negative",
		})
	}

	// Embedding backend
	if c.Embedding.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}

	if u, err := url.Parse(c.Embedding.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	// Index
	switch c.Index.Backend {
	case BackendSQLite:
		if c.Index.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   "index.dir",
				Message: "index directory is required for the sqlite backend",
			})
		}
	case BackendPgvector:
		if c.Index.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.database_url",
				Message: "database URL is required for the pgvector backend",
			})
		}
	case BackendMemory:
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown index backend: %s", c.Index.Backend),
		})
	}

	if c.Index.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Processor
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Language.HindiThreshold < 0 || c.Language.HindiThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "language.hindi_threshold",
			Message: "hindi_threshold must be between 0 and 1",
		})
	}

	return errors
}

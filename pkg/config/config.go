package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Load when no chat API key is configured.
// The process must not start without one.
var ErrMissingAPIKey = errors.New("GROQ_API_KEY environment variable is required")

const (
	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

type ChatConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     int     `yaml:"timeout"` // seconds
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second, 0 disables
}

// RequestTimeout returns the chat timeout as a duration.
func (c ChatConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

type EmbeddingConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type IndexConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	DatabaseURL string `yaml:"database_url"`
	TableName   string `yaml:"table_name"`
	BatchSize   int    `yaml:"batch_size"`
}

type ProcessorConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type LanguageConfig struct {
	HindiThreshold float64 `yaml:"hindi_threshold"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	ScratchDir string `yaml:"scratch_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the immutable snapshot of tunables loaded once at process start
// and passed to every component constructor.
type Config struct {
	Chat      ChatConfig      `yaml:"chat"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Processor ProcessorConfig `yaml:"processor"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Language  LanguageConfig  `yaml:"language"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns a configuration with every documented default applied.
// The API key is left empty.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Model:       "llama-3.3-70b-versatile",
			BaseURL:     "https://api.groq.com/openai/v1",
			Timeout:     30,
			Temperature: 0.1,
			MaxTokens:   1000,
		},
		Embedding: EmbeddingConfig{
			Model:   "nomic-embed-text",
			BaseURL: "http://localhost:11434",
		},
		Index: IndexConfig{
			Backend:   BackendSQLite,
			Dir:       "./index_db",
			TableName: "documents",
			BatchSize: 100,
		},
		Processor: ProcessorConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{TopK: 3},
		Language:  LanguageConfig{HindiThreshold: 0.3},
		Server:    ServerConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the environment, then validates it. A missing API key yields ErrMissingAPIKey.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}

	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}
	config.Index.Backend = strings.ToLower(strings.TrimSpace(config.Index.Backend))

	if config.Chat.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if errs := config.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(joined...))
	}

	return config, nil
}

func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"config.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "ragbot", "config.yaml"))
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func mergeWithEnv(config *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}
	setFloat := func(key string, dst *float64) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", key, v)
		}
		*dst = f
		return nil
	}

	setString("GROQ_API_KEY", &config.Chat.APIKey)
	setString("GROQ_MODEL", &config.Chat.Model)
	setString("GROQ_BASE_URL", &config.Chat.BaseURL)
	setString("OLLAMA_MODEL", &config.Embedding.Model)
	setString("OLLAMA_BASE_URL", &config.Embedding.BaseURL)
	setString("INDEX_BACKEND", &config.Index.Backend)
	setString("INDEX_DIR", &config.Index.Dir)
	setString("DATABASE_URL", &config.Index.DatabaseURL)
	setString("INDEX_TABLE", &config.Index.TableName)
	setString("SERVER_ADDR", &config.Server.Addr)
	setString("SCRATCH_DIR", &config.Server.ScratchDir)
	setString("LOG_LEVEL", &config.Log.Level)
	setString("LOG_FORMAT", &config.Log.Format)

	return errors.Join(
		setInt("GROQ_TIMEOUT", &config.Chat.Timeout),
		setFloat("GROQ_TEMPERATURE", &config.Chat.Temperature),
		setInt("GROQ_MAX_TOKENS", &config.Chat.MaxTokens),
		setFloat("GROQ_RATE_LIMIT", &config.Chat.RateLimit),
		setInt("CHUNK_SIZE", &config.Processor.ChunkSize),
		setInt("CHUNK_OVERLAP", &config.Processor.ChunkOverlap),
		setInt("SIMILARITY_SEARCH_K", &config.Retrieval.TopK),
		setFloat("HINDI_THRESHOLD", &config.Language.HindiThreshold),
	)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/lang"
)

var (
	errTimeout     = errors.New("Request timed out")
	errUnreachable = errors.New("Failed to connect to chat API")
	errNoChoices   = errors.New("chat backend returned no choices")
)

// ChatClient answers questions through an OpenAI-compatible chat completions
// endpoint. Every failure is turned into a localized string.
type ChatClient struct {
	config  config.ChatConfig
	llm     llms.Model
	limiter *rate.Limiter
	logger  *slog.Logger
}

type ChatOption func(*ChatClient)

// WithChatLogger sets the client's logger.
func WithChatLogger(l *slog.Logger) ChatOption {
	return func(c *ChatClient) { c.logger = l }
}

// NewChatClient creates a client for the configured model and endpoint.
func NewChatClient(cfg config.ChatConfig, opts ...ChatOption) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("chat API key is required")
	}

	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout(),
		Transport: newChatTransport(nil),
	}

	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &ChatClient{
		config:  cfg,
		llm:     model,
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Answer asks the model question, grounded on docContext when it is not
// empty, and returns either the model's reply or a localized error message.
func (c *ChatClient) Answer(ctx context.Context, question, docContext string, language lang.Language) string {
	prompt := BuildPrompt(question, docContext, language)

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("chat completion failed", "model", c.config.Model, "error", err)
		return describeError(err, language)
	}
	return reply
}

// TestConnection sends a fixed greeting and reports whether the backend
// answered. Failure is decided by the returned error rather than by
// scanning the reply text.
func (c *ChatClient) TestConnection(ctx context.Context) (bool, string) {
	prompt := BuildPrompt("Hello", "", lang.English)
	if _, err := c.complete(ctx, prompt); err != nil {
		return false, describeError(err, lang.English)
	}
	return true, "Chat API connection successful"
}

type ModelInfo struct {
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func (c *ChatClient) ModelInfo() ModelInfo {
	return ModelInfo{
		Model:       c.config.Model,
		BaseURL:     c.config.BaseURL,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
}

func (c *ChatClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout())
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "", statusErr
		}
		return "", err
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", errNoChoices
	}

	return response.Choices[0].Content, nil
}

// describeError separates timeouts and refused connections from every other
// failure so the user sees a connection-specific message for them.
func describeError(err error, language lang.Language) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return lang.APIError(statusErr, language)
	}
	if connErr := classifyConnection(err); connErr != nil {
		return lang.ConnectionError(connErr, language)
	}
	return lang.APIError(err, language)
}

func classifyConnection(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return errUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return errUnreachable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return errUnreachable
	}

	// Some client layers flatten the transport error into text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return errUnreachable
	case strings.Contains(msg, "Client.Timeout exceeded"), strings.Contains(msg, "deadline exceeded"):
		return errTimeout
	}
	return nil
}

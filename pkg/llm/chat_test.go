package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/ragbot/internal/logging"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/lang"
	"github.com/xhad/ragbot/pkg/llm"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12},
	})
	return string(body)
}

func newClient(t *testing.T, baseURL string) *llm.ChatClient {
	t.Helper()
	client, err := llm.NewChatClient(config.ChatConfig{
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     baseURL,
		Timeout:     1,
		Temperature: 0.1,
		MaxTokens:   100,
	}, llm.WithChatLogger(logging.Discard()))
	require.NoError(t, err)
	return client
}

func TestNewChatClientRequiresKey(t *testing.T) {
	_, err := llm.NewChatClient(config.ChatConfig{Model: "m", BaseURL: "http://localhost", Timeout: 1})
	assert.Error(t, err)
}

func TestAnswerSuccess(t *testing.T) {
	var got chatRequest
	var fields map[string]json.RawMessage
	var path, auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_ = json.Unmarshal(body, &fields)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("Paris is the capital.")))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	answer := client.Answer(context.Background(), "What is the capital of France?", "France's capital is Paris.", lang.English)

	assert.Equal(t, "Paris is the capital.", answer)
	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Context: France's capital is Paris.")
	assert.Contains(t, got.Messages[0].Content, "Question: What is the capital of France?")
	assert.Equal(t, 0.1, got.Temperature)
	assert.Equal(t, 100, got.MaxTokens)
	assert.Contains(t, fields, "max_tokens")
	assert.NotContains(t, fields, "max_completion_tokens")
}

func TestAnswerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)

	english := client.Answer(context.Background(), "hi", "", lang.English)
	assert.Contains(t, english, "Error")
	assert.Contains(t, english, "500")
	assert.True(t, strings.HasPrefix(english, "API Error"), english)
	assert.Contains(t, english, "upstream exploded")

	hindi := client.Answer(context.Background(), "नमस्ते", "", lang.Hindi)
	assert.True(t, strings.HasPrefix(hindi, "API त्रुटि"), hindi)
	assert.Contains(t, hindi, "500")
}

func TestAnswerPlainTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream gateway unavailable\n"))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)

	english := client.Answer(context.Background(), "hi", "", lang.English)
	assert.Equal(t, "API Error: API Error 502: upstream gateway unavailable", english)

	hindi := client.Answer(context.Background(), "नमस्ते", "", lang.Hindi)
	assert.Equal(t, "API त्रुटि: API Error 502: upstream gateway unavailable", hindi)
}

func TestAnswerConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newClient(t, url)

	english := client.Answer(context.Background(), "hi", "", lang.English)
	assert.Equal(t, "Connection Error: Failed to connect to chat API", english)

	hindi := client.Answer(context.Background(), "नमस्ते", "", lang.Hindi)
	assert.Equal(t, "कनेक्शन त्रुटि: Failed to connect to chat API", hindi)
}

func TestAnswerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	answer := client.Answer(context.Background(), "hi", "", lang.English)
	assert.Equal(t, "Connection Error: Request timed out", answer)
}

func TestTestConnection(t *testing.T) {
	var calls atomic.Int32
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// A reply that mentions the word must not count as a failure.
		_, _ = w.Write([]byte(completion("Hello! No Error here.")))
	}))
	defer healthy.Close()

	ok, msg := newClient(t, healthy.URL).TestConnection(context.Background())
	assert.True(t, ok, msg)
	assert.Equal(t, int32(1), calls.Load())

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
	}))
	defer broken.Close()

	ok, msg = newClient(t, broken.URL).TestConnection(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "Error")
	assert.Contains(t, msg, "401")
}

func TestModelInfo(t *testing.T) {
	client := newClient(t, "http://localhost:1")
	info := client.ModelInfo()
	assert.Equal(t, "test-model", info.Model)
	assert.Equal(t, "http://localhost:1", info.BaseURL)
	assert.Equal(t, 0.1, info.Temperature)
	assert.Equal(t, 100, info.MaxTokens)
}

package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 4 << 10

// StatusError is a non-200 reply from the chat backend with its raw body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error %d: %s", e.StatusCode, e.Body)
}

// chatTransport adapts the requests langchaingo builds to the plain chat
// completions body and keeps the body of failed responses.
type chatTransport struct {
	base http.RoundTripper
}

func newChatTransport(base http.RoundTripper) *chatTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &chatTransport{base: base}
}

func (t *chatTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost && req.Body != nil {
		rewritten, err := withMaxTokens(req)
		if err != nil {
			return nil, err
		}
		req = rewritten
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// withMaxTokens renames max_completion_tokens to max_tokens, the field every
// OpenAI-compatible backend reads.
func withMaxTokens(req *http.Request) (*http.Request, error) {
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err == nil {
		if v, ok := fields["max_completion_tokens"]; ok {
			delete(fields, "max_completion_tokens")
			fields["max_tokens"] = v
			if data, err = json.Marshal(fields); err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}
		}
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.ContentLength = int64(len(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

package primary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"jsonrelay/internal/models"
	"jsonrelay/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "jsonrelay/0.1"
	maxBodyBytes    = 4 << 20
)

// HTTPCapability posts the conversation to a keyless hosted chat endpoint.
// Endpoints of this kind answer either with an OpenAI-style JSON envelope or
// with the bare model text.
type HTTPCapability struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPCapability constructs a capability for url.
func NewHTTPCapability(url string, headers map[string]string, client *http.Client) (*HTTPCapability, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("http capability url must not be empty")
	}
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	return &HTTPCapability{url: url, headers: headers, client: client}, nil
}

type httpPayload struct {
	Model       string        `json:"model"`
	Messages    []httpMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type httpMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat returns the decoded envelope as map[string]any when the body carries
// one, otherwise the body text as a string.
func (c *HTTPCapability) Chat(ctx context.Context, messages []models.Message, opts provider.Options) (any, error) {
	payload := httpPayload{Model: opts.Model, Temperature: opts.Temperature}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, httpMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keyless chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read keyless chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("keyless endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var envelope map[string]any
	if json.Unmarshal(data, &envelope) == nil {
		if _, ok := mapContent(envelope); ok {
			return envelope, nil
		}
	}
	return string(data), nil
}

package primary

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"jsonrelay/internal/models"
	"jsonrelay/internal/provider"
)

// OpenAICapability talks to a keyless OpenAI-compatible endpoint such as a
// local Ollama, LM Studio or vLLM server.
type OpenAICapability struct {
	client *openai.Client
}

// NewOpenAICapability constructs a capability for baseURL. Extra headers are
// attached to every request.
func NewOpenAICapability(baseURL string, headers map[string]string, httpClient *http.Client) (*OpenAICapability, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("openai capability base url must not be empty")
	}
	if httpClient == nil {
		return nil, errors.New("http client must not be nil")
	}

	cfg := openai.DefaultConfig("")
	cfg.BaseURL = baseURL
	cfg.HTTPClient = withHeaders(httpClient, headers)

	return &OpenAICapability{client: openai.NewClientWithConfig(cfg)}, nil
}

// Chat returns the openai.ChatCompletionResponse as produced by the endpoint.
func (c *OpenAICapability) Chat(ctx context.Context, messages []models.Message, opts provider.Options) (any, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    msgs,
		Temperature: float32(opts.Temperature),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func withHeaders(client *http.Client, headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return client
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *client
	clone.Transport = headerTransport{base: base, headers: headers}
	return &clone
}

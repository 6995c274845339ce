package primary

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"

	"jsonrelay/internal/models"
	"jsonrelay/internal/provider"
)

// VertexCapability calls Gemini models on Vertex AI. Authentication comes from
// the host's Application Default Credentials, so jsonrelay holds no secret.
type VertexCapability struct {
	models *genai.Models
}

// VertexOption adjusts the genai client configuration.
type VertexOption func(*genai.ClientConfig)

// WithVertexTimeout bounds each request. Non-positive values are ignored.
func WithVertexTimeout(d time.Duration) VertexOption {
	return func(cc *genai.ClientConfig) {
		if d > 0 {
			cc.HTTPOptions.Timeout = &d
		}
	}
}

// WithVertexCredentials replaces Application Default Credentials lookup.
func WithVertexCredentials(creds *auth.Credentials) VertexOption {
	return func(cc *genai.ClientConfig) { cc.Credentials = creds }
}

// WithVertexBaseURL overrides the regional endpoint.
func WithVertexBaseURL(url string) VertexOption {
	return func(cc *genai.ClientConfig) { cc.HTTPOptions.BaseURL = url }
}

// NewVertexCapability constructs a Vertex AI client for project and location.
// The HTTP client is left to genai, which wraps it with the credential transport.
func NewVertexCapability(ctx context.Context, project, location string, opts ...VertexOption) (*VertexCapability, error) {
	if strings.TrimSpace(project) == "" || strings.TrimSpace(location) == "" {
		return nil, errors.New("vertex capability requires project and location")
	}
	cc := &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  project,
		Location: location,
	}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return NewVertexCapabilityFromClient(client)
}

// NewVertexCapabilityFromClient wraps an existing genai client.
func NewVertexCapabilityFromClient(client *genai.Client) (*VertexCapability, error) {
	if client == nil || client.Models == nil {
		return nil, errors.New("genai client must not be nil")
	}
	return &VertexCapability{models: client.Models}, nil
}

// Chat returns the *genai.GenerateContentResponse as produced by the API.
func (c *VertexCapability) Chat(ctx context.Context, messages []models.Message, opts provider.Options) (any, error) {
	contents, cfg := toGenAIRequest(messages, opts)
	return c.models.GenerateContent(ctx, opts.Model, contents, cfg)
}

// toGenAIRequest moves system messages into the system instruction and keeps
// the rest as user turns.
func toGenAIRequest(messages []models.Message, opts provider.Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}

	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, &genai.Part{Text: m.Content})
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	return contents, cfg
}

package secondary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"jsonrelay/internal/config"
	"jsonrelay/internal/models"
	"jsonrelay/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "jsonrelay/0.1"
	maxErrorBody    = 64 * 1024
	maxResponseBody = 4 << 20
)

// Adapter calls a credentialed OpenAI-compatible chat-completion endpoint.
type Adapter struct {
	url         string
	model       string
	temperature float64
	client      *http.Client
}

// New creates a secondary adapter for the configured endpoint.
func New(cfg config.SecondaryConfig, client *http.Client) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("secondary url must not be empty")
	}

	temperature := provider.DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	return &Adapter{
		url:         url,
		model:       cfg.Model,
		temperature: temperature,
		client:      client,
	}, nil
}

// Invoke submits the conversation and returns the assistant message content.
// An empty credential fails with provider.ErrNoCredential before any request is made.
func (a *Adapter) Invoke(ctx context.Context, conv models.Conversation, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", provider.ErrNoCredential
	}

	httpReq, err := a.newRequest(ctx, credential, buildChatPayload(a.model, a.temperature, conv))
	if err != nil {
		return "", &provider.SecondaryError{Message: err.Error(), Cause: err}
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", &provider.SecondaryError{Message: fmt.Sprintf("chat request failed: %v", err), Cause: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", parseAPIError(httpResp)
	}

	var providerResp chatResponse
	if err := decodeJSON(io.LimitReader(httpResp.Body, maxResponseBody), &providerResp); err != nil {
		return "", &provider.SecondaryError{Status: httpResp.StatusCode, Message: err.Error(), Cause: err}
	}

	content, ok := providerResp.content()
	if !ok {
		return "", &provider.SecondaryError{
			Status:  httpResp.StatusCode,
			Message: "response did not include choices[0].message.content",
		}
	}
	return content, nil
}

func (a *Adapter) newRequest(ctx context.Context, credential string, payload chatPayload) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+credential)
	return req, nil
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatPayload(model string, temperature float64, conv models.Conversation) chatPayload {
	msgs := conv.Messages()
	messages := make([]chatMessage, 0, len(msgs))
	for _, msg := range msgs {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return chatPayload{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
}

// chatResponse keeps content raw so a non-string value is detected rather than
// silently decoded as empty.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r chatResponse) content() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	raw := r.Choices[0].Message.Content
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// parseAPIError never fails itself: an unreadable or unexpected body degrades
// to the HTTP status text.
func parseAPIError(resp *http.Response) error {
	message := provider.StatusText(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && strings.TrimSpace(apiErr.Error.Message) != "" {
			message = apiErr.Error.Message
		}
	}

	return &provider.SecondaryError{Status: resp.StatusCode, Message: message}
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

package primary

import (
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Shape tags the form a capability response was recognized as.
type Shape int

const (
	// ShapeEmpty means no text could be derived from the response.
	ShapeEmpty Shape = iota
	// ShapeMessage is an object exposing a nested message content field.
	ShapeMessage
	// ShapeText is a bare string.
	ShapeText
	// ShapeOpaque is any other value, rendered through JSON stringification.
	ShapeOpaque
)

func (s Shape) String() string {
	switch s {
	case ShapeMessage:
		return "message"
	case ShapeText:
		return "text"
	case ShapeOpaque:
		return "opaque"
	default:
		return "empty"
	}
}

// MessageResponse is the content-bearing shape returned by capabilities that
// already hold the assistant text.
type MessageResponse struct {
	Content string
}

// Response is a classified capability result.
type Response struct {
	Shape Shape
	Text  string
}

// Classify resolves raw into exactly one Shape. Content-bearing forms are
// recognized by concrete type, never by probing arbitrary methods.
func Classify(raw any) Response {
	switch v := raw.(type) {
	case nil:
		return Response{Shape: ShapeEmpty}
	case string:
		return textResponse(ShapeText, v)
	case []byte:
		return textResponse(ShapeText, string(v))
	case MessageResponse:
		return textResponse(ShapeMessage, v.Content)
	case *MessageResponse:
		if v == nil {
			return Response{Shape: ShapeEmpty}
		}
		return textResponse(ShapeMessage, v.Content)
	case openai.ChatCompletionResponse:
		return textResponse(ShapeMessage, openAIContent(v))
	case *openai.ChatCompletionResponse:
		if v == nil {
			return Response{Shape: ShapeEmpty}
		}
		return textResponse(ShapeMessage, openAIContent(*v))
	case *genai.GenerateContentResponse:
		return textResponse(ShapeMessage, genAIContent(v))
	case map[string]any:
		if content, ok := mapContent(v); ok {
			return textResponse(ShapeMessage, content)
		}
	}
	return opaque(raw)
}

func textResponse(shape Shape, text string) Response {
	if strings.TrimSpace(text) == "" {
		return Response{Shape: ShapeEmpty}
	}
	return Response{Shape: shape, Text: text}
}

func opaque(raw any) Response {
	b, err := json.Marshal(raw)
	if err != nil {
		return Response{Shape: ShapeEmpty}
	}
	s := string(b)
	if s == "null" || s == `""` {
		return Response{Shape: ShapeEmpty}
	}
	return Response{Shape: ShapeOpaque, Text: s}
}

func openAIContent(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	msg := resp.Choices[0].Message
	if msg.Content != "" {
		return msg.Content
	}
	var b strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func genAIContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// mapContent handles decoded JSON bodies: {"message":{"content":...}} and the
// OpenAI-style {"choices":[{"message":{"content":...}}]}.
func mapContent(m map[string]any) (string, bool) {
	if msg, ok := m["message"].(map[string]any); ok {
		if content, ok := contentValue(msg["content"]); ok {
			return content, true
		}
	}
	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := contentValue(msg["content"]); ok {
					return content, true
				}
			}
		}
	}
	return "", false
}

// contentValue accepts a string or an array of {"type":"text","text":...} parts.
func contentValue(v any) (string, bool) {
	switch c := v.(type) {
	case string:
		return c, true
	case []any:
		var b strings.Builder
		found := false
		for _, item := range c {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := part["type"].(string); t != "" && t != "text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				b.WriteString(text)
				found = true
			}
		}
		return b.String(), found
	}
	return "", false
}

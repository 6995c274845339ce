// Package primary implements the credential-free primary provider. The actual
// chat backend is an injected Capability; the adapter fixes the model
// parameters and normalizes whatever the capability returns into plain text.
package primary

import (
	"context"
	"errors"

	"jsonrelay/internal/models"
	"jsonrelay/internal/provider"
)

// Capability is a chat-completion backend that needs no caller credential.
// The returned value is implementation-defined; see Classify for the shapes
// the adapter understands.
type Capability interface {
	Chat(ctx context.Context, messages []models.Message, opts provider.Options) (any, error)
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, messages []models.Message, opts provider.Options) (any, error)

// Chat calls f.
func (f CapabilityFunc) Chat(ctx context.Context, messages []models.Message, opts provider.Options) (any, error) {
	return f(ctx, messages, opts)
}

// Adapter invokes a Capability with a fixed model and temperature.
type Adapter struct {
	capability Capability
	opts       provider.Options
}

// New constructs a primary adapter.
func New(capability Capability, model string, temperature float64) (*Adapter, error) {
	if capability == nil {
		return nil, errors.New("primary capability must not be nil")
	}
	if model == "" {
		return nil, errors.New("primary model must not be empty")
	}
	return &Adapter{
		capability: capability,
		opts:       provider.Options{Model: model, Temperature: temperature},
	}, nil
}

// Invoke submits the conversation and returns the response text. Every
// failure is reported as *provider.PrimaryError.
func (a *Adapter) Invoke(ctx context.Context, conv models.Conversation) (string, error) {
	raw, err := a.capability.Chat(ctx, conv.Messages(), a.opts)
	if err != nil {
		return "", &provider.PrimaryError{Cause: err}
	}

	resp := Classify(raw)
	if resp.Shape == ShapeEmpty {
		return "", &provider.PrimaryError{Cause: provider.ErrUnexpectedResponseShape}
	}
	return resp.Text, nil
}

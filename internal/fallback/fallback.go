// Package fallback sequences the primary and secondary providers and turns
// their output into validated JSON.
package fallback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"jsonrelay/internal/extract"
	"jsonrelay/internal/models"
	"jsonrelay/internal/prompt"
)

// ErrServiceUnavailable is returned when every provider path has failed. It
// wraps neither underlying cause; both are logged instead.
var ErrServiceUnavailable = errors.New("AI_SERVICE_UNAVAILABLE")

// PrimaryInvoker calls the credential-free primary provider.
type PrimaryInvoker interface {
	Invoke(ctx context.Context, conv models.Conversation) (string, error)
}

// SecondaryInvoker calls the credentialed fallback provider.
type SecondaryInvoker interface {
	Invoke(ctx context.Context, conv models.Conversation, credential string) (string, error)
}

// CredentialSource supplies the secondary provider credential at call time.
type CredentialSource interface {
	Credential() string
}

// StaticCredential is a fixed credential value.
type StaticCredential string

// Credential returns the value itself.
func (s StaticCredential) Credential() string { return string(s) }

// Orchestrator is safe for concurrent use; calls share no mutable state.
type Orchestrator struct {
	primary        PrimaryInvoker
	secondary      SecondaryInvoker
	credentials    CredentialSource
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAttemptTimeout bounds each provider attempt. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.attemptTimeout = d }
}

// WithLogger sets the logger used for failure reporting.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New constructs an Orchestrator. A nil credentials source means no fallback
// is configured.
func New(primary PrimaryInvoker, secondary SecondaryInvoker, credentials CredentialSource, opts ...Option) (*Orchestrator, error) {
	if primary == nil {
		return nil, errors.New("primary provider must not be nil")
	}
	if secondary == nil {
		return nil, errors.New("secondary provider must not be nil")
	}
	if credentials == nil {
		credentials = StaticCredential("")
	}
	o := &Orchestrator{
		primary:     primary,
		secondary:   secondary,
		credentials: credentials,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Call asks the primary provider for JSON conforming to schema, falling back
// to the secondary provider when a credential is available. A nil error
// guarantees the returned string is valid JSON.
//
// Without a credential the primary failure is returned unchanged. When both
// providers fail the result is ErrServiceUnavailable.
func (o *Orchestrator) Call(ctx context.Context, userPrompt string, schema any) (string, error) {
	conv := models.NewConversation(prompt.Compile(schema), userPrompt)

	out, primaryErr := o.tryPrimary(ctx, conv)
	if primaryErr == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		o.logger.Warn("primary provider failed after caller gave up", "err", primaryErr)
		return "", primaryErr
	}

	credential := strings.TrimSpace(o.credentials.Credential())
	if credential == "" {
		o.logger.Warn("primary provider failed, no fallback configured", "err", primaryErr)
		return "", primaryErr
	}
	o.logger.Warn("primary provider failed, trying fallback", "err", primaryErr)

	out, secondaryErr := o.trySecondary(ctx, conv, credential)
	if secondaryErr == nil {
		return out, nil
	}
	o.logger.Error("all AI providers failed",
		"primary_err", primaryErr,
		"secondary_err", secondaryErr,
	)
	return "", ErrServiceUnavailable
}

func (o *Orchestrator) tryPrimary(ctx context.Context, conv models.Conversation) (string, error) {
	ctx, cancel := o.attemptContext(ctx)
	defer cancel()

	text, err := o.primary.Invoke(ctx, conv)
	if err != nil {
		return "", err
	}
	return extract.JSON(text)
}

func (o *Orchestrator) trySecondary(ctx context.Context, conv models.Conversation, credential string) (string, error) {
	ctx, cancel := o.attemptContext(ctx)
	defer cancel()

	text, err := o.secondary.Invoke(ctx, conv, credential)
	if err != nil {
		return "", err
	}
	return extract.JSON(text)
}

func (o *Orchestrator) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.attemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.attemptTimeout)
}

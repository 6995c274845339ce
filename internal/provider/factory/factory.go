package factory

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"jsonrelay/internal/config"
	"jsonrelay/internal/fallback"
	"jsonrelay/internal/provider"
	"jsonrelay/internal/provider/primary"
	"jsonrelay/internal/provider/secondary"
)

const (
	defaultHTTPTimeout     = 120 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// NewOrchestrator builds both provider adapters from configuration and wires
// them into a fallback orchestrator.
func NewOrchestrator(ctx context.Context, cfg config.Config, logger *slog.Logger) (*fallback.Orchestrator, error) {
	capability, err := NewPrimaryCapability(ctx, cfg.Primary, newHTTPClient(defaultHTTPTimeout))
	if err != nil {
		return nil, fmt.Errorf("initialise primary capability: %w", err)
	}

	temperature := provider.DefaultTemperature
	if cfg.Primary.Temperature != nil {
		temperature = *cfg.Primary.Temperature
	}
	primaryAdapter, err := primary.New(capability, cfg.Primary.Model, temperature)
	if err != nil {
		return nil, fmt.Errorf("initialise primary provider: %w", err)
	}

	secondaryAdapter, err := secondary.New(cfg.Secondary, newHTTPClient(defaultHTTPTimeout))
	if err != nil {
		return nil, fmt.Errorf("initialise secondary provider: %w", err)
	}

	var opts []fallback.Option
	if cfg.Fallback.AttemptTimeout != nil {
		opts = append(opts, fallback.WithAttemptTimeout(*cfg.Fallback.AttemptTimeout))
	}
	if logger != nil {
		opts = append(opts, fallback.WithLogger(logger))
	}

	return fallback.New(primaryAdapter, secondaryAdapter, CredentialSource(cfg.Secondary), opts...)
}

// NewPrimaryCapability selects the primary chat backend by kind.
func NewPrimaryCapability(ctx context.Context, cfg config.PrimaryConfig, client *http.Client) (primary.Capability, error) {
	var (
		capability primary.Capability
		err        error
	)
	switch strings.ToLower(cfg.Kind) {
	case config.PrimaryKindOpenAI, "":
		capability, err = primary.NewOpenAICapability(cfg.BaseURL, cfg.Headers, client)
	case config.PrimaryKindHTTP:
		capability, err = primary.NewHTTPCapability(cfg.BaseURL, cfg.Headers, client)
	case config.PrimaryKindVertex:
		capability, err = primary.NewVertexCapability(ctx, cfg.Project, cfg.Location, primary.WithVertexTimeout(client.Timeout))
	default:
		return nil, fmt.Errorf("unsupported primary kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return capability, nil
}

// CredentialSource prefers an inline api_key and otherwise reads the
// configured environment variable on every call.
func CredentialSource(cfg config.SecondaryConfig) fallback.CredentialSource {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return fallback.StaticCredential(key)
	}
	return config.EnvCredential(cfg.APIKeyEnv)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

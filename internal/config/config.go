package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PrimaryKindOpenAI = "openai"
	PrimaryKindHTTP   = "http"
	PrimaryKindVertex = "vertex"
)

const (
	defaultPort                = 8080
	defaultMaxBatchConcurrency = 4
	defaultPrimaryBaseURL      = "http://localhost:11434/v1"
	defaultPrimaryModel        = "llama3.2:3b"
	defaultSecondaryURL        = "https://text.pollinations.ai/openai"
	defaultSecondaryModel      = "openai"
	defaultCredentialEnv       = "JSONRELAY_FALLBACK_KEY"
	defaultTemperature         = 0.7
	defaultAttemptTimeout      = 45 * time.Second
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Primary   PrimaryConfig   `yaml:"primary"`
	Secondary SecondaryConfig `yaml:"secondary"`
	Fallback  FallbackConfig  `yaml:"fallback"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port                int      `yaml:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	MaxBatchConcurrency int      `yaml:"max_batch_concurrency"`
}

// PrimaryConfig selects and parameterises the credential-free primary provider.
type PrimaryConfig struct {
	Kind        string            `yaml:"kind"`
	BaseURL     string            `yaml:"base_url"`
	Model       string            `yaml:"model"`
	Temperature *float64          `yaml:"temperature"`
	Project     string            `yaml:"project"`
	Location    string            `yaml:"location"`
	Headers     map[string]string `yaml:"headers"`
}

// SecondaryConfig describes the credentialed OpenAI-compatible fallback provider.
type SecondaryConfig struct {
	URL         string   `yaml:"url"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	APIKey      string   `yaml:"api_key"`
	APIKeyEnv   string   `yaml:"api_key_env"`
}

// FallbackConfig tunes the orchestrator.
type FallbackConfig struct {
	AttemptTimeout *time.Duration `yaml:"attempt_timeout"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads YAML configuration from disk, applies defaults and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.MaxBatchConcurrency == 0 {
		c.Server.MaxBatchConcurrency = defaultMaxBatchConcurrency
	}

	c.Primary.Kind = strings.ToLower(strings.TrimSpace(c.Primary.Kind))
	if c.Primary.Kind == "" {
		c.Primary.Kind = PrimaryKindOpenAI
	}
	if c.Primary.Kind == PrimaryKindOpenAI && c.Primary.BaseURL == "" {
		c.Primary.BaseURL = defaultPrimaryBaseURL
	}
	if c.Primary.Model == "" {
		c.Primary.Model = defaultPrimaryModel
	}
	if c.Primary.Temperature == nil {
		c.Primary.Temperature = float64Ptr(defaultTemperature)
	}

	if c.Secondary.URL == "" {
		c.Secondary.URL = defaultSecondaryURL
	}
	if c.Secondary.Model == "" {
		c.Secondary.Model = defaultSecondaryModel
	}
	if c.Secondary.Temperature == nil {
		c.Secondary.Temperature = float64Ptr(defaultTemperature)
	}
	if c.Secondary.APIKeyEnv == "" {
		c.Secondary.APIKeyEnv = defaultCredentialEnv
	}

	if c.Fallback.AttemptTimeout == nil {
		d := defaultAttemptTimeout
		c.Fallback.AttemptTimeout = &d
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.MaxBatchConcurrency < 1 {
		return fmt.Errorf("server.max_batch_concurrency must be positive, got %d", c.Server.MaxBatchConcurrency)
	}

	if err := c.Primary.validate(); err != nil {
		return err
	}
	if err := c.Secondary.validate(); err != nil {
		return err
	}

	if c.Fallback.AttemptTimeout != nil && *c.Fallback.AttemptTimeout < 0 {
		return fmt.Errorf("fallback.attempt_timeout must not be negative, got %s", *c.Fallback.AttemptTimeout)
	}
	return nil
}

func (p PrimaryConfig) validate() error {
	switch p.Kind {
	case PrimaryKindOpenAI, PrimaryKindHTTP:
		if err := validateURL("primary.base_url", p.BaseURL); err != nil {
			return err
		}
	case PrimaryKindVertex:
		if strings.TrimSpace(p.Project) == "" || strings.TrimSpace(p.Location) == "" {
			return fmt.Errorf("primary kind %q requires project and location", p.Kind)
		}
	default:
		return fmt.Errorf("primary.kind %q must be one of %q, %q or %q", p.Kind, PrimaryKindOpenAI, PrimaryKindHTTP, PrimaryKindVertex)
	}

	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("primary.model must not be empty")
	}
	if err := validateTemperature("primary.temperature", p.Temperature); err != nil {
		return err
	}
	for headerKey := range p.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("primary: header %q is not a valid canonical HTTP header", headerKey)
		}
	}
	return nil
}

func (s SecondaryConfig) validate() error {
	if err := validateURL("secondary.url", s.URL); err != nil {
		return err
	}
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("secondary.model must not be empty")
	}
	return validateTemperature("secondary.temperature", s.Temperature)
}

func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be provided", field)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", field, raw)
	}
	return nil
}

func validateTemperature(field string, t *float64) error {
	if t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("%s must be between 0 and 2, got %v", field, *t)
	}
	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}

func float64Ptr(v float64) *float64 {
	return &v
}

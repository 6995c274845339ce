package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"jsonrelay/internal/config"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	maxBatchSize        = 32
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 150 * time.Second
	idleTimeout         = 120 * time.Second
)

// Caller produces schema-conforming JSON for a prompt.
type Caller interface {
	Call(ctx context.Context, prompt string, schema any) (string, error)
}

type Server struct {
	cfg     config.Config
	caller  Caller
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, caller Caller) (*Server, error) {
	if caller == nil {
		return nil, errors.New("caller must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		caller:  caller,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/structured", s.handleStructured)
	s.app.POST("/v1/structured/batch", s.handleStructuredBatch)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type structuredRequest struct {
	ID     string          `json:"id,omitempty"`
	Prompt string          `json:"prompt"`
	Schema json.RawMessage `json:"schema"`
}

func (r structuredRequest) validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "prompt must not be empty",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

// schemaValue passes the schema through untouched; an absent schema becomes JSON null.
func (r structuredRequest) schemaValue() any {
	if len(r.Schema) == 0 {
		return nil
	}
	return r.Schema
}

func (s *Server) handleStructured(c echo.Context) error {
	var req structuredRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	out, err := s.caller.Call(c.Request().Context(), req.Prompt, req.schemaValue())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(out))
}

type batchRequest struct {
	Requests []structuredRequest `json:"requests"`
}

type batchResult struct {
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *errorDetail    `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

func (s *Server) handleStructuredBatch(c echo.Context) error {
	var req batchRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if len(req.Requests) == 0 {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "requests must contain at least one item",
			Type:    "invalid_request_error",
		}
	}
	if len(req.Requests) > maxBatchSize {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("requests must contain at most %d items", maxBatchSize),
			Type:    "invalid_request_error",
		}
	}
	for i, item := range req.Requests {
		if err := item.validate(); err != nil {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("requests[%d]: %v", i, err),
				Type:    "invalid_request_error",
			}
		}
	}

	ctx := c.Request().Context()
	results := make([]batchResult, len(req.Requests))

	var g errgroup.Group
	g.SetLimit(s.cfg.Server.MaxBatchConcurrency)
	for i, item := range req.Requests {
		g.Go(func() error {
			results[i].ID = item.ID
			out, err := s.caller.Call(ctx, item.Prompt, item.schemaValue())
			if err != nil {
				reqErr := toHTTPError(err)
				results[i].Error = &errorDetail{Message: reqErr.Message, Type: reqErr.Type, Code: reqErr.Code}
				return nil
			}
			results[i].Data = json.RawMessage(out)
			return nil
		})
	}
	_ = g.Wait()

	return c.JSON(http.StatusOK, batchResponse{Results: results})
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("jsonrelay ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /v1/structured")
	fmt.Println("  POST /v1/structured/batch")
	fmt.Printf("Example:\n  curl http://%s:%d/v1/structured -H 'Content-Type: application/json' -d '{\"prompt\":\"give a name\",\"schema\":{\"type\":\"object\",\"required\":[\"name\"]}}'\n\n", host, port)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"jsonrelay/internal/fallback"
)

const (
	codeServiceUnavailable = "AI_SERVICE_UNAVAILABLE"
	codePrimaryUnavailable = "AI_PRIMARY_UNAVAILABLE"
	codeTimeout            = "AI_TIMEOUT"
	codeCancelled          = "REQUEST_CANCELLED"

	// statusClientClosedRequest is the nginx convention for a client that went away.
	statusClientClosedRequest = 499
)

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	return c.JSON(status, errorBody{Error: errorDetail{Message: message, Type: errType, Code: code}})
}

func openAIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}

// toHTTPError maps orchestrator failures onto client-facing errors. After the
// unified outage and context errors, what remains is a primary failure with no
// fallback configured.
func toHTTPError(err error) requestError {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	if errors.Is(err, fallback.ErrServiceUnavailable) {
		return requestError{
			Status:  http.StatusServiceUnavailable,
			Message: "AI service is temporarily unavailable, please try again later",
			Type:    "service_unavailable",
			Code:    codeServiceUnavailable,
		}
	}

	if errors.Is(err, context.Canceled) {
		return requestError{
			Status:  statusClientClosedRequest,
			Message: "request was cancelled before the AI provider answered",
			Type:    "request_cancelled",
			Code:    codeCancelled,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return requestError{
			Status:  http.StatusGatewayTimeout,
			Message: "AI provider did not answer in time",
			Type:    "timeout_error",
			Code:    codeTimeout,
		}
	}

	return requestError{
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("primary AI provider failed: %v; configure a fallback API key to enable automatic failover", err),
		Type:    "upstream_error",
		Code:    codePrimaryUnavailable,
	}
}

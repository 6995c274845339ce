package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultTemperature is the sampling temperature both providers use. It favours
// stable JSON output over creative variation.
const DefaultTemperature = 0.7

// ErrUnexpectedResponseShape indicates the primary provider returned a response
// from which no text could be derived.
var ErrUnexpectedResponseShape = errors.New("unexpected response shape")

// ErrNoCredential indicates the secondary provider was invoked without a credential.
var ErrNoCredential = errors.New("secondary provider credential is not configured")

// Options carries the fixed model parameters submitted with a conversation.
type Options struct {
	Model       string
	Temperature float64
}

// PrimaryError wraps any failure of the credential-free primary provider.
type PrimaryError struct {
	Cause error
}

func (e *PrimaryError) Error() string {
	return fmt.Sprintf("primary provider: %v", e.Cause)
}

func (e *PrimaryError) Unwrap() error { return e.Cause }

// SecondaryError describes a failed call to the credentialed secondary provider.
// Status is zero when the request never produced an HTTP response.
type SecondaryError struct {
	Status  int
	Message string
	Cause   error
}

func (e *SecondaryError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("secondary provider: %s", e.Message)
	}
	return fmt.Sprintf("secondary provider: status %d: %s", e.Status, e.Message)
}

func (e *SecondaryError) Unwrap() error { return e.Cause }

// StatusText returns the reason phrase for status, or a generic label when the
// code is not registered.
func StatusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

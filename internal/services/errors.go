package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a missing or malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// ConfigurationError reports a server-side credential or setting that is absent.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Setting)
}

// UpstreamError carries a non-2xx or business-error answer from a provider or the backend.
// Status is zero when the upstream reported the failure inside a 2xx body.
type UpstreamError struct {
	Service string
	Status  int
	Message string
	Payload []byte
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s request failed with status %d", e.Service, e.Status)
}

// NetworkError wraps a transport failure while talking to an upstream.
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusCode maps an error from this package to the HTTP status returned to the browser.
func StatusCode(err error) int {
	var validationErr *ValidationError
	var configErr *ConfigurationError
	var upstreamErr *UpstreamError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	case errors.As(err, &upstreamErr):
		if upstreamErr.Status >= 400 && upstreamErr.Status <= 599 {
			return upstreamErr.Status
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field}
	}
	return nil
}

package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// HTTPError describes a non-success response from a remote API.
type HTTPError struct {
	Operation  string
	StatusCode int
	Body       string
	marker     error
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Operation, e.StatusCode, body)
}

// Unwrap exposes the status-derived marker so callers can use errors.Is.
func (e *HTTPError) Unwrap() error {
	return e.marker
}

// CheckResponse returns nil for 2xx responses and an *HTTPError otherwise.
// The body of a failed response is drained and truncated into the error.
func CheckResponse(resp *http.Response, operation string) error {
	if resp == nil {
		return Wrap(ErrExternal, "", operation, "nil response", nil)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       string(snippet),
		marker:     markerForStatus(resp.StatusCode),
	}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func markerForStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrTransient
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrConfiguration
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 400:
		return ErrValidation
	default:
		return ErrExternal
	}
}

// ABOUTME: Error taxonomy for provider transport failures
// ABOUTME: ProviderError carries vendor, HTTP status and retryability

package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownModel is wrapped by Resolve for ids matching no model or alias.
	ErrUnknownModel = errors.New("unknown model")
	// ErrNoProvider is returned when no provider is registered for a vendor.
	ErrNoProvider = errors.New("no provider registered")
)

// ProviderError is a transport-class failure from a vendor API: bad auth,
// rate limits, server errors, malformed responses. It reaches consumers
// inside the terminal error event, never as a panic.
type ProviderError struct {
	Vendor     Vendor
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Vendor, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Vendor, e.Message)
}

// ErrorFromStatus builds a ProviderError from an HTTP status and response
// body snippet. 408, 429 and 5xx are retryable; everything else is not.
func ErrorFromStatus(vendor Vendor, status int, body string) *ProviderError {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = defaultStatusMessage(status)
	}
	return &ProviderError{
		Vendor:     vendor,
		StatusCode: status,
		Message:    msg,
		Retryable:  status == 408 || status == 429 || status >= 500,
	}
}

func defaultStatusMessage(status int) string {
	switch status {
	case 400:
		return "invalid request"
	case 401:
		return "authentication failed"
	case 403:
		return "permission denied"
	case 404:
		return "not found"
	case 408:
		return "request timeout"
	case 413:
		return "request too large"
	case 429:
		return "rate limited"
	default:
		if status >= 500 {
			return "server error"
		}
		return "request failed"
	}
}

// IsRetryable reports whether err (or anything it wraps) is a retryable
// provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

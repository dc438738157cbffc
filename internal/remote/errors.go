package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy of the remote order service. Callers match with errors.Is.
var (
	// ErrTransient covers network failures, timeouts, 5xx and 429 responses.
	// Retrying later may succeed.
	ErrTransient = errors.New("remote: transient failure")

	// ErrMalformed means the response body could not be decoded.
	ErrMalformed = errors.New("remote: malformed response")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("remote: not found")

	// ErrRejected is returned for other 4xx responses (validation, conflicts).
	ErrRejected = errors.New("remote: request rejected")
)

// StatusError describes a non-2xx response.
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (http %d)", e.kind, e.Code)
	}
	return fmt.Sprintf("%v (http %d): %s", e.kind, e.Code, e.Message)
}

// Unwrap exposes the taxonomy sentinel.
func (e *StatusError) Unwrap() error { return e.kind }

func statusError(code int, msg string) *StatusError {
	var kind error
	switch {
	case code == http.StatusNotFound:
		kind = ErrNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		kind = ErrTransient
	default:
		kind = ErrRejected
	}
	return &StatusError{Code: code, Message: msg, kind: kind}
}

// IsTransient reports whether err should be treated as a temporary failure.
// Malformed responses count as transient: the next fetch may be well formed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrMalformed)
}

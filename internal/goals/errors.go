package goals

import "errors"

var (
	// ErrNetwork marks a request that did not complete. Transient.
	ErrNetwork = errors.New("network error")
	// ErrNotFound means the goal reference is stale.
	ErrNotFound = errors.New("goal not found")
	// ErrValidation means the server rejected the payload.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized means the session token was missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

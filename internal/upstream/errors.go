package upstream

import (
	"errors"
	"fmt"
)

// ErrNotFound means the provider has no matching record. It is distinct from
// the provider being unreachable and is never retried.
var ErrNotFound = errors.New("upstream: no matching record")

// UnavailableError means the provider could not serve the request (network
// failure, 5xx, or rate limiting) after retries were exhausted.
type UnavailableError struct {
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable: %v", e.Err)
	}
	return fmt.Sprintf("upstream unavailable: status %d", e.Status)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsNotFound reports whether err means the record does not exist upstream.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

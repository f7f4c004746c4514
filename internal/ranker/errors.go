package ranker

import (
	"errors"
	"strings"

	"github.com/locdb/locdb/internal/source"
)

var (
	// ErrAllAdaptersFailed matches any *AllAdaptersFailedError.
	ErrAllAdaptersFailed = errors.New("all adapters failed")

	// ErrNoStore is returned by Internal when the ranker has no store.
	ErrNoStore = errors.New("ranker has no store configured")
)

// AllAdaptersFailedError is returned when no external provider produced a
// result. Errors holds one entry per failed adapter in dispatch order.
type AllAdaptersFailedError struct {
	Errors []*source.AdapterError
}

func (e *AllAdaptersFailedError) Error() string {
	if len(e.Errors) == 0 {
		return "all adapters failed: no adapters configured"
	}
	msgs := make([]string, len(e.Errors))
	for i, ae := range e.Errors {
		msgs[i] = ae.Error()
	}
	return "all adapters failed: " + strings.Join(msgs, "; ")
}

func (e *AllAdaptersFailedError) Is(target error) bool {
	return target == ErrAllAdaptersFailed
}

// Unwrap exposes the per-adapter errors to errors.Is and errors.As.
func (e *AllAdaptersFailedError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ae := range e.Errors {
		out[i] = ae
	}
	return out
}

// IsAllAdaptersFailed reports whether err is or wraps an
// AllAdaptersFailedError.
func IsAllAdaptersFailed(err error) bool {
	return errors.Is(err, ErrAllAdaptersFailed)
}

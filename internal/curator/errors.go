package curator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrChildWriteFailed is matched by the error returned when the child
// could not be written after its parent was already stored.
var ErrChildWriteFailed = errors.New("child write failed")

// AmbiguousMatchError is returned when a hierarchy member matches more than
// one stored resource.
type AmbiguousMatchError struct {
	Role       string // "parent" or "child"
	Candidates []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous %s match: %d stored resources (%s)", e.Role, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// IsAmbiguous reports whether err is or wraps an AmbiguousMatchError.
func IsAmbiguous(err error) bool {
	var ae *AmbiguousMatchError
	return errors.As(err, &ae)
}

// ChildWriteError reports a child write failure after the parent write
// succeeded. The parent stays in the store; retrying the curation links
// the child against it.
type ChildWriteError struct {
	ParentID string
	Err      error
}

func (e *ChildWriteError) Error() string {
	return fmt.Sprintf("writing child of %s: %v", e.ParentID, e.Err)
}

func (e *ChildWriteError) Unwrap() error {
	return e.Err
}

func (e *ChildWriteError) Is(target error) bool {
	return target == ErrChildWriteFailed
}

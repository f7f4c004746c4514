package resource

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid input")

// ValidationError reports malformed input, rejected before any external
// call or store write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalid) true for validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// doiPattern is the anchored form of the Crossref-recommended DOI pattern.
var doiPattern = regexp.MustCompile(`(?i)^10.\d{4,9}/[-._;()/:A-Z0-9]+$`)

// ValidateIdentifier checks that id has a known scheme and a well-formed value.
func ValidateIdentifier(id Identifier) error {
	if !id.Scheme.Valid() {
		return &ValidationError{Field: "identifier.scheme", Reason: "unknown identifier scheme " + quote(string(id.Scheme))}
	}
	if id.Normalized() == "" {
		return &ValidationError{Field: "identifier.literalValue", Reason: "empty value for " + string(id.Scheme)}
	}
	if id.Scheme == SchemeDOI && !doiPattern.MatchString(id.Normalized()) {
		return &ValidationError{Field: "identifier.literalValue", Reason: "malformed DOI " + quote(id.LiteralValue)}
	}
	return nil
}

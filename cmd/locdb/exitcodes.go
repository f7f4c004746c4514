package main

import (
	"errors"

	"github.com/locdb/locdb/internal/config"
	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/ranker"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid file or environment)
	ExitDataError   = 3 // Data error (malformed input, validation failure)
	ExitNotFound    = 4 // Resource or entry not found
	ExitConflict    = 5 // Ambiguous match or resource already exists
	ExitUpstream    = 6 // Every external catalogue failed
)

// exitCodeFor classifies a service error.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalid):
		return ExitConfigError
	case resource.IsValidation(err), errors.Is(err, intake.ErrNotImplemented):
		return ExitDataError
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, intake.ErrNoMetadata):
		return ExitNotFound
	case curator.IsAmbiguous(err), errors.Is(err, intake.ErrExists):
		return ExitConflict
	case ranker.IsAllAdaptersFailed(err):
		return ExitUpstream
	}
	return ExitError
}

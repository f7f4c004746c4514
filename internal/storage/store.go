package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/locdb/locdb/internal/resource"
)

// ErrNotFound is returned by Update and Delete when the resource does not
// exist.
var ErrNotFound = errors.New("resource not found")

// StoreError wraps a failure of the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapErr returns err as a *StoreError unless it is nil, a validation
// error, ErrNotFound or already a StoreError.
func wrapErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || resource.IsValidation(err) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Scope restricts title lookups to the children of one parent. The zero
// value matches resources regardless of parent.
type Scope struct {
	PartOf string
	Set    bool
}

// Within returns a scope matching children of parentID.
func Within(parentID string) Scope {
	return Scope{PartOf: parentID, Set: true}
}

// ListFilter selects resources for List. Zero fields do not filter.
type ListFilter struct {
	Type   resource.Type
	Status resource.Status
	Query  string // full-text query over titles and authors
	Limit  int
}

// EntryFilter selects embedded entries for ListEntries.
type EntryFilter struct {
	Status resource.Status
	ScanID string
	Limit  int
}

// Store persists bibliographic resources as whole documents. Embedded
// entries and scans are indexed so they can be found without loading every
// resource.
type Store interface {
	// Get returns the resource with id, or nil, nil if there is none.
	Get(ctx context.Context, id string) (*resource.Resource, error)

	// FindByIdentifier returns every resource carrying the identifier.
	FindByIdentifier(ctx context.Context, scheme resource.Scheme, value string) ([]resource.Resource, error)

	// FindByTitle returns every resource whose title equals title exactly,
	// restricted by scope.
	FindByTitle(ctx context.Context, title string, scope Scope) ([]resource.Resource, error)

	// FindEntriesByTitle returns embedded entries whose OCR title equals
	// title exactly and whose status is status.
	FindEntriesByTitle(ctx context.Context, title string, status resource.Status) ([]resource.Entry, error)

	// ListEntries returns embedded entries matching filter.
	ListEntries(ctx context.Context, filter EntryFilter) ([]resource.Entry, error)

	// FindByEntryID returns the resource embedding the entry, or nil, nil.
	FindByEntryID(ctx context.Context, entryID string) (*resource.Resource, error)

	// FindByScanID returns the resource owning the scan, or nil, nil.
	FindByScanID(ctx context.Context, scanID string) (*resource.Resource, error)

	// List returns resources matching filter, ordered by id.
	List(ctx context.Context, filter ListFilter) ([]resource.Resource, error)

	// Insert stores a new resource and returns its id. A uuid is assigned
	// when r.ID is empty.
	Insert(ctx context.Context, r resource.Resource) (string, error)

	// Update replaces the stored document. It returns ErrNotFound if no
	// resource has id.
	Update(ctx context.Context, id string, r resource.Resource) error

	// Delete removes a resource. It returns ErrNotFound if no resource has id.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored resources.
	Count(ctx context.Context) (int, error)
}

// Transactor is implemented by stores that can run a sequence of calls
// atomically. fn receives a Store bound to the transaction; returning an
// error from fn rolls the transaction back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Store) error) error
}

// SuggestionCache stores precalculated external suggestions per entry.
type SuggestionCache interface {
	SaveSuggestions(ctx context.Context, entryID string, suggestions []resource.Scored) error
	LoadSuggestions(ctx context.Context, entryID string) ([]resource.Scored, error)
}

// indexRows are the derived rows written alongside a resource document.
type indexRows struct {
	identifiers []resource.Identifier
	entries     []resource.Entry
	scanIDs     []string
	authorsText string
}

func deriveIndex(r resource.Resource) indexRows {
	var idx indexRows
	seen := make(map[string]bool)
	for _, id := range r.Identifiers {
		if seen[id.Key()] {
			continue
		}
		seen[id.Key()] = true
		idx.identifiers = append(idx.identifiers, resource.Identifier{Scheme: id.Scheme, LiteralValue: id.Normalized()})
	}
	idx.entries = r.Parts
	for _, emb := range r.EmbodiedAs {
		for _, s := range emb.Scans {
			if s.ID != "" {
				idx.scanIDs = append(idx.scanIDs, s.ID)
			}
		}
	}
	idx.authorsText = strings.Join(r.AuthorNames(), ", ")
	return idx
}

// normalizeValue puts an identifier value into the form stored in the
// identifier index.
func normalizeValue(scheme resource.Scheme, value string) string {
	return resource.Identifier{Scheme: scheme, LiteralValue: value}.Normalized()
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.temporal.io/sdk/temporal"

	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

// Activity names, registered from the Activities method names.
const (
	ListPendingEntriesActivityName = "ListPendingEntriesActivity"
	SuggestForEntryActivityName    = "SuggestForEntryActivity"
	LookupContainerActivityName    = "LookupContainerActivity"
	AttachParentActivityName       = "AttachParentActivity"
)

// Error types marked non-retryable; retrying cannot change the outcome.
const (
	errTypeNotFound = "NotFound"
	errTypeInvalid  = "Invalid"
)

// Suggester ranks external candidates for a query.
type Suggester interface {
	ExternalScored(ctx context.Context, query string, k int) ([]resource.Scored, error)
}

// DOILookup fetches the hierarchy registered for a DOI.
type DOILookup interface {
	QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error)
}

// Linker attaches a parent to a stored orphan.
type Linker interface {
	Attach(ctx context.Context, childID string, parent resource.Resource) (resource.Hierarchy, error)
}

// Activities holds the dependencies of the job activities. Suggestions are
// cached on the store, which must implement storage.SuggestionCache.
type Activities struct {
	store     storage.Store
	suggester Suggester
	lookup    DOILookup
	linker    Linker
	defaultK  int
	logger    *slog.Logger
}

// NewActivities wires the activities. lookup may be nil when Crossref is
// not configured; relinking then reports every orphan as skipped.
func NewActivities(store storage.Store, suggester Suggester, lookup DOILookup, linker Linker, defaultK int, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultK < 1 {
		defaultK = 10
	}
	return &Activities{
		store:     store,
		suggester: suggester,
		lookup:    lookup,
		linker:    linker,
		defaultK:  defaultK,
		logger:    logger,
	}
}

// ListPendingEntriesActivity returns the entries of a resource that are
// still OCR_PROCESSED, with their query text.
func (a *Activities) ListPendingEntriesActivity(ctx context.Context, in ListPendingInput) (ListPendingOutput, error) {
	r, err := a.load(ctx, in.ResourceID)
	if err != nil {
		return ListPendingOutput{}, err
	}

	out := ListPendingOutput{Entries: []PendingEntry{}}
	for _, e := range r.Parts {
		if e.Status != resource.StatusOCRProcessed || e.ID == "" {
			continue
		}
		q := EntryQuery(e)
		if q == "" {
			continue
		}
		out.Entries = append(out.Entries, PendingEntry{EntryID: e.ID, Query: q})
	}
	return out, nil
}

// SuggestForEntryActivity ranks external candidates for one entry and
// caches them.
func (a *Activities) SuggestForEntryActivity(ctx context.Context, in SuggestInput) (SuggestOutput, error) {
	cache, ok := a.store.(storage.SuggestionCache)
	if !ok {
		return SuggestOutput{}, temporal.NewNonRetryableApplicationError("store cannot cache suggestions", errTypeInvalid, nil)
	}
	k := in.K
	if k < 1 {
		k = a.defaultK
	}

	scored, err := a.suggester.ExternalScored(ctx, in.Query, k)
	if err != nil {
		return SuggestOutput{}, fmt.Errorf("ranking entry %s: %w", in.EntryID, err)
	}
	if err := cache.SaveSuggestions(ctx, in.EntryID, scored); err != nil {
		return SuggestOutput{}, fmt.Errorf("saving suggestions for %s: %w", in.EntryID, err)
	}
	a.logger.Debug("precalculated suggestions",
		slog.String("entry", in.EntryID),
		slog.Int("count", len(scored)))
	return SuggestOutput{Suggestions: len(scored)}, nil
}

// LookupContainerActivity asks Crossref for the container of an orphan.
func (a *Activities) LookupContainerActivity(ctx context.Context, in LookupContainerInput) (LookupContainerOutput, error) {
	r, err := a.load(ctx, in.ResourceID)
	if err != nil {
		return LookupContainerOutput{}, err
	}
	switch {
	case r.PartOf != "":
		return LookupContainerOutput{Reason: "already linked"}, nil
	case !r.Type.CanHaveParent():
		return LookupContainerOutput{Reason: "type has no parent"}, nil
	case a.lookup == nil:
		return LookupContainerOutput{Reason: "crossref not configured"}, nil
	}
	doi, ok := r.IdentifierValue(resource.SchemeDOI)
	if !ok {
		return LookupContainerOutput{Reason: "no DOI"}, nil
	}

	h, err := a.lookup.QueryByDOI(ctx, doi)
	if err != nil {
		return LookupContainerOutput{}, fmt.Errorf("looking up %s: %w", doi, err)
	}
	if h == nil || h.Parent == nil {
		return LookupContainerOutput{Reason: "no container registered"}, nil
	}
	return LookupContainerOutput{Parent: h.Parent}, nil
}

// AttachParentActivity curates the parent and links the orphan to it.
func (a *Activities) AttachParentActivity(ctx context.Context, in AttachInput) (AttachOutput, error) {
	h, err := a.linker.Attach(ctx, in.ResourceID, in.Parent)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return AttachOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
		case resource.IsValidation(err):
			return AttachOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalid, err)
		}
		return AttachOutput{}, err
	}
	return AttachOutput{ParentID: h.Child.PartOf}, nil
}

func (a *Activities) load(ctx context.Context, id string) (*resource.Resource, error) {
	r, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("resource %s not found", id), errTypeNotFound, storage.ErrNotFound)
	}
	return r, nil
}

// EntryQuery returns the text an entry is matched with: the raw citation
// string when present, otherwise its OCR title and authors.
func EntryQuery(e resource.Entry) string {
	if t := strings.TrimSpace(e.BibliographicEntryText); t != "" {
		return t
	}
	parts := append([]string{e.OCRData.Title}, e.OCRData.Authors...)
	return strings.TrimSpace(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

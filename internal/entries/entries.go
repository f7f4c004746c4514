// Package entries manages the citation entries embedded in stored
// resources: listing the ones still to be checked, editing them, and
// replacing a wrongly segmented entry with a corrected one.
package entries

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

var (
	// ErrEntryNotFound is returned when no resource embeds the entry.
	ErrEntryNotFound = fmt.Errorf("entry %w", storage.ErrNotFound)

	// ErrScanNotFound is returned when no resource owns the scan.
	ErrScanNotFound = fmt.Errorf("scan %w", storage.ErrNotFound)
)

// Service edits citation entries in place inside their owning resource.
type Service struct {
	store  storage.Store
	logger *slog.Logger
}

// New creates a Service. A nil logger uses slog.Default().
func New(store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Patch holds the entry fields to change. Nil fields are left alone.
type Patch struct {
	BibliographicEntryText *string                `json:"bibliographicEntryText,omitempty"`
	Title                  *string                `json:"title,omitempty"`
	Date                   *string                `json:"date,omitempty"`
	Authors                *[]string              `json:"authors,omitempty"`
	Journal                *string                `json:"journal,omitempty"`
	Volume                 *string                `json:"volume,omitempty"`
	Comments               *string                `json:"comments,omitempty"`
	Marker                 *string                `json:"marker,omitempty"`
	Coordinates            *string                `json:"coordinates,omitempty"`
	References             *string                `json:"references,omitempty"`
	Identifiers            *[]resource.Identifier `json:"identifiers,omitempty"`
	Status                 *resource.Status       `json:"status,omitempty"`
}

// ToDo returns the entries still awaiting review (status OCR_PROCESSED),
// optionally restricted to one scan.
func (s *Service) ToDo(ctx context.Context, scanID string) ([]resource.Entry, error) {
	if scanID != "" {
		if err := validateID("scanId", scanID); err != nil {
			return nil, err
		}
	}
	out, err := s.store.ListEntries(ctx, storage.EntryFilter{Status: resource.StatusOCRProcessed, ScanID: scanID})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []resource.Entry{}
	}
	return out, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, entryID string) (resource.Entry, error) {
	br, err := s.store.FindByEntryID(ctx, entryID)
	if err != nil {
		return resource.Entry{}, err
	}
	if br == nil {
		return resource.Entry{}, ErrEntryNotFound
	}
	idx := br.EntryIndex(entryID)
	if idx < 0 {
		return resource.Entry{}, ErrEntryNotFound
	}
	return br.Parts[idx], nil
}

// Update applies patch to an entry and stores the owning resource.
func (s *Service) Update(ctx context.Context, entryID string, patch Patch) (resource.Entry, error) {
	if entryID == "" {
		return resource.Entry{}, &resource.ValidationError{Field: "id", Reason: "entry id is required"}
	}

	var updated resource.Entry
	err := s.withStore(ctx, func(st storage.Store) error {
		br, err := st.FindByEntryID(ctx, entryID)
		if err != nil {
			return err
		}
		if br == nil {
			return ErrEntryNotFound
		}
		idx := br.EntryIndex(entryID)
		if idx < 0 {
			return ErrEntryNotFound
		}

		e, err := apply(br.Parts[idx], patch)
		if err != nil {
			return err
		}
		if err := checkSlot(*br, e, idx); err != nil {
			return err
		}
		br.Parts[idx] = e
		if err := st.Update(ctx, br.ID, *br); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return resource.Entry{}, err
	}
	s.logger.Info("updated entry", slog.String("id", entryID), slog.String("status", string(updated.Status)))
	return updated, nil
}

// Correct stores replacement as a new entry of the scan and, when
// oldEntryID is set, retires the entry it replaces by marking it OBSOLETE.
// Both changes are one write of the owning resource.
func (s *Service) Correct(ctx context.Context, scanID, oldEntryID string, replacement resource.Entry) (resource.Entry, error) {
	if err := validateID("scanId", scanID); err != nil {
		return resource.Entry{}, err
	}
	if oldEntryID != "" {
		if err := validateID("bibliographicEntryId", oldEntryID); err != nil {
			return resource.Entry{}, err
		}
	}

	e := resource.CloneEntry(replacement)
	e.ID = uuid.NewString()
	e.ScanID = scanID
	e.Status = resource.StatusOCRProcessed

	err := s.withStore(ctx, func(st storage.Store) error {
		br, err := st.FindByScanID(ctx, scanID)
		if err != nil {
			return err
		}
		if br == nil {
			return ErrScanNotFound
		}
		if oldEntryID != "" {
			idx := br.EntryIndex(oldEntryID)
			if idx < 0 {
				return ErrEntryNotFound
			}
			br.Parts[idx].Status = resource.StatusObsolete
		}
		if err := checkSlot(*br, e, -1); err != nil {
			return err
		}
		br.Parts = append(br.Parts, e)
		return st.Update(ctx, br.ID, *br)
	})
	if err != nil {
		return resource.Entry{}, err
	}
	s.logger.Info("corrected entry",
		slog.String("scan", scanID),
		slog.String("replaced", oldEntryID),
		slog.String("id", e.ID))
	return e, nil
}

func (s *Service) withStore(ctx context.Context, fn func(storage.Store) error) error {
	if tx, ok := s.store.(storage.Transactor); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s.store)
}

// apply returns e with patch applied. OBSOLETE entries cannot change status.
func apply(e resource.Entry, p Patch) (resource.Entry, error) {
	e = resource.CloneEntry(e)
	if p.Status != nil {
		if !p.Status.Valid() {
			return e, &resource.ValidationError{Field: "status", Reason: "unknown status " + string(*p.Status)}
		}
		if e.Status == resource.StatusObsolete && *p.Status != resource.StatusObsolete {
			return e, &resource.ValidationError{Field: "status", Reason: "an obsolete entry cannot be revived"}
		}
		e.Status = *p.Status
	}
	if p.BibliographicEntryText != nil {
		e.BibliographicEntryText = *p.BibliographicEntryText
	}
	if p.Title != nil {
		e.OCRData.Title = *p.Title
	}
	if p.Date != nil {
		e.OCRData.Date = *p.Date
	}
	if p.Authors != nil {
		e.OCRData.Authors = append([]string(nil), (*p.Authors)...)
	}
	if p.Journal != nil {
		e.OCRData.Journal = *p.Journal
	}
	if p.Volume != nil {
		e.OCRData.Volume = *p.Volume
	}
	if p.Comments != nil {
		e.OCRData.Comments = *p.Comments
	}
	if p.Marker != nil {
		e.Marker = *p.Marker
	}
	if p.Coordinates != nil {
		e.Coordinates = *p.Coordinates
	}
	if p.References != nil {
		e.References = *p.References
	}
	if p.Identifiers != nil {
		for _, id := range *p.Identifiers {
			if err := resource.ValidateIdentifier(id); err != nil {
				return e, err
			}
		}
		e.Identifiers = append([]resource.Identifier(nil), (*p.Identifiers)...)
	}
	return e, nil
}

// checkSlot rejects e when another live entry already holds its
// (scan, marker) slot. skip is the index of e itself, or -1.
func checkSlot(br resource.Resource, e resource.Entry, skip int) error {
	if e.Marker == "" || e.ScanID == "" || !e.Status.Live() {
		return nil
	}
	for i, other := range br.Parts {
		if i == skip || !other.Status.Live() {
			continue
		}
		if other.ScanID == e.ScanID && other.Marker == e.Marker {
			return &resource.ValidationError{
				Field:  "marker",
				Reason: fmt.Sprintf("entry %s already holds marker %q on scan %s", other.ID, e.Marker, e.ScanID),
			}
		}
	}
	return nil
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &resource.ValidationError{Field: field, Reason: "invalid id " + id}
	}
	return nil
}

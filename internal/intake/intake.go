// Package intake adds a resource to the store from a single identifier:
// metadata is fetched from Crossref or the SWB catalogue depending on the
// resource type, then curated together with its container.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/jobs"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

var (
	// ErrExists is returned when a resource with the identifier is already stored.
	ErrExists = errors.New("the resource already exists")
	// ErrNotImplemented is returned for type and scheme combinations that
	// cannot be fetched.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNoMetadata is returned when the catalogue has no record for the identifier.
	ErrNoMetadata = errors.New("no metadata found")
	// ErrNoCatalogue is returned when the adapter a request needs is not configured.
	ErrNoCatalogue = errors.New("catalogue not configured")
)

// Crossref is the subset of the Crossref client intake uses.
type Crossref interface {
	QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error)
	QueryReferences(ctx context.Context, doi string) ([]resource.Entry, error)
	QueryChapterMetadata(ctx context.Context, containerTitle, firstPage, lastPage string) ([]resource.Resource, error)
}

// Catalogue looks records up by PPN.
type Catalogue interface {
	QueryByPPN(ctx context.Context, ppn string) (*resource.Hierarchy, error)
}

// Request names the resource to add.
type Request struct {
	Identifier resource.Identifier `json:"identifier"`
	Type       resource.Type       `json:"resourceType"`
	FirstPage  string              `json:"firstPage,omitempty"`
	LastPage   string              `json:"lastPage,omitempty"`
}

// Service adds resources.
type Service struct {
	store     storage.Store
	curator   *curator.Curator
	crossref  Crossref
	catalogue Catalogue
	jobs      jobs.Scheduler
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCrossref enables DOI lookups.
func WithCrossref(c Crossref) Option {
	return func(s *Service) { s.crossref = c }
}

// WithCatalogue enables PPN lookups.
func WithCatalogue(c Catalogue) Option {
	return func(s *Service) { s.catalogue = c }
}

// WithScheduler schedules suggestion precalculation and orphan relinking
// for added resources.
func WithScheduler(j jobs.Scheduler) Option {
	return func(s *Service) {
		if j != nil {
			s.jobs = j
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service writing through c into store.
func New(store storage.Store, c *curator.Curator, opts ...Option) *Service {
	s := &Service{store: store, curator: c, jobs: jobs.Noop{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.jobs = withLogger(s.jobs, s.logger)
	return s
}

func withLogger(j jobs.Scheduler, l *slog.Logger) jobs.Scheduler {
	if n, ok := j.(jobs.Noop); ok && n.Logger == nil {
		n.Logger = l
		return n
	}
	return j
}

// Save fetches and stores the resource req identifies. The returned result
// carries the stored child and, when known, its parent.
func (s *Service) Save(ctx context.Context, req Request) (curator.Result, error) {
	if err := resource.ValidateIdentifier(req.Identifier); err != nil {
		return curator.Result{}, err
	}
	if !req.Type.Valid() {
		return curator.Result{}, &resource.ValidationError{Field: "resourceType", Reason: fmt.Sprintf("unknown resource type %q", req.Type)}
	}

	exists, err := s.exists(ctx, req)
	if err != nil {
		return curator.Result{}, err
	}
	if exists {
		return curator.Result{}, ErrExists
	}

	var res curator.Result
	switch req.Type {
	case resource.TypeJournal:
		res, err = s.saveJournal(ctx, req)
	case resource.TypeJournalArticle:
		res, err = s.saveArticle(ctx, req)
	case resource.TypeBookChapter, resource.TypeProceedingsArticle:
		res, err = s.saveChapter(ctx, req)
	case resource.TypeMonograph, resource.TypeBook:
		res, err = s.saveBook(ctx, req)
	default:
		return curator.Result{}, fmt.Errorf("resource type %s: %w", req.Type, ErrNotImplemented)
	}
	if err != nil {
		return curator.Result{}, err
	}

	s.schedule(ctx, res)
	return res, nil
}

// exists reports whether a resource of the requested type already carries
// the identifier. Chapters also have to match the page range.
func (s *Service) exists(ctx context.Context, req Request) (bool, error) {
	found, err := s.store.FindByIdentifier(ctx, req.Identifier.Scheme, req.Identifier.LiteralValue)
	if err != nil {
		return false, err
	}
	for _, r := range found {
		if r.Type != req.Type {
			continue
		}
		if req.FirstPage == "" && req.LastPage == "" {
			return true, nil
		}
		for _, e := range r.EmbodiedAs {
			if e.FirstPage == req.FirstPage && e.LastPage == req.LastPage {
				return true, nil
			}
		}
	}
	return false, nil
}

// saveJournal stores a journal fetched by ZDB PPN. Journals have no
// parent, so the record is inserted as is.
func (s *Service) saveJournal(ctx context.Context, req Request) (curator.Result, error) {
	if req.Identifier.Scheme != resource.SchemeZDBPPN || req.FirstPage != "" || req.LastPage != "" {
		return curator.Result{}, &resource.ValidationError{Field: "identifier.scheme", Reason: "a journal is created from its ZDB PPN only"}
	}
	h, err := s.byPPN(ctx, req.Identifier.LiteralValue)
	if err != nil {
		return curator.Result{}, err
	}

	journal := resource.Clone(h.Child)
	journal.ID = ""
	journal.Type = resource.TypeJournal
	journal.PartOf = ""
	journal.Source = ""
	journal.Status = resource.StatusValid
	id, err := s.store.Insert(ctx, journal)
	if err != nil {
		return curator.Result{}, fmt.Errorf("inserting journal: %w", err)
	}
	journal.ID = id
	return curator.Result{Hierarchy: resource.Hierarchy{Child: journal, Source: h.Source}, ChildCreated: true}, nil
}

func (s *Service) saveArticle(ctx context.Context, req Request) (curator.Result, error) {
	switch req.Identifier.Scheme {
	case resource.SchemeDOI:
		return s.byDOI(ctx, req)
	case resource.SchemeOLCPPN:
		return curator.Result{}, fmt.Errorf("identifier scheme %s: %w", req.Identifier.Scheme, ErrNotImplemented)
	}
	return curator.Result{}, &resource.ValidationError{Field: "identifier.scheme", Reason: "a journal article is created from a DOI"}
}

func (s *Service) saveChapter(ctx context.Context, req Request) (curator.Result, error) {
	switch req.Identifier.Scheme {
	case resource.SchemeDOI:
		return s.byDOI(ctx, req)
	case resource.SchemeSWBPPN:
		return s.chapterInBook(ctx, req)
	}
	return curator.Result{}, fmt.Errorf("identifier scheme %s for %s: %w", req.Identifier.Scheme, req.Type, ErrNotImplemented)
}

// byDOI curates the Crossref hierarchy for a DOI. When Crossref does not
// know the DOI, a bare child is stored under a new, empty container so the
// scan can still be processed.
func (s *Service) byDOI(ctx context.Context, req Request) (curator.Result, error) {
	if s.crossref == nil {
		return curator.Result{}, fmt.Errorf("crossref: %w", ErrNoCatalogue)
	}
	h, err := s.crossref.QueryByDOI(ctx, req.Identifier.LiteralValue)
	if err != nil {
		return curator.Result{}, err
	}
	if h == nil {
		child := resource.Resource{Type: req.Type}
		child.AddIdentifier(req.Identifier)
		parent := resource.Resource{Type: req.Type.ParentType()}
		h = &resource.Hierarchy{Child: child, Parent: &parent}
	}
	h.Child.Type = req.Type
	h.Child.Status = resource.StatusExternal
	setPages(&h.Child, req)
	return s.curator.CurateResult(ctx, *h)
}

// chapterInBook fetches the book by SWB PPN and asks Crossref for the
// chapter at the requested pages.
func (s *Service) chapterInBook(ctx context.Context, req Request) (curator.Result, error) {
	book, err := s.byPPN(ctx, req.Identifier.LiteralValue)
	if err != nil {
		return curator.Result{}, err
	}
	parent := resource.Clone(book.Child)

	child := resource.Resource{Type: req.Type}
	if s.crossref != nil {
		found, err := s.crossref.QueryChapterMetadata(ctx, parent.Title, req.FirstPage, req.LastPage)
		if err != nil {
			s.logger.Warn("chapter lookup failed", slog.String("book", parent.Title), slog.Any("error", err))
		} else if len(found) > 0 {
			child = found[0]
		}
	}
	child.Type = req.Type
	setPages(&child, req)
	return s.curator.CurateResult(ctx, resource.Hierarchy{Child: child, Parent: &parent, Source: book.Source})
}

// saveBook stores a monograph fetched by PPN, with the references Crossref
// lists for its DOI as pending entries.
func (s *Service) saveBook(ctx context.Context, req Request) (curator.Result, error) {
	h, err := s.byPPN(ctx, req.Identifier.LiteralValue)
	if err != nil {
		return curator.Result{}, err
	}
	h.Child.Type = req.Type

	if doi, ok := h.Child.IdentifierValue(resource.SchemeDOI); ok && s.crossref != nil {
		refs, err := s.crossref.QueryReferences(ctx, doi)
		if err != nil {
			s.logger.Warn("reference lookup failed", slog.String("doi", doi), slog.Any("error", err))
		}
		for _, e := range refs {
			e.Status = resource.StatusOCRProcessed
			h.Child.Parts = append(h.Child.Parts, e)
		}
	}
	return s.curator.CurateResult(ctx, *h)
}

func (s *Service) byPPN(ctx context.Context, ppn string) (*resource.Hierarchy, error) {
	if s.catalogue == nil {
		return nil, fmt.Errorf("swb: %w", ErrNoCatalogue)
	}
	h, err := s.catalogue.QueryByPPN(ctx, ppn)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("ppn %s: %w", ppn, ErrNoMetadata)
	}
	return h, nil
}

func (s *Service) schedule(ctx context.Context, res curator.Result) {
	id := res.Hierarchy.Child.ID
	if err := s.jobs.Precalculate(ctx, id); err != nil {
		s.logger.Warn("scheduling precalculation failed", slog.String("id", id), slog.Any("error", err))
	}
	if res.Orphan {
		if err := s.jobs.Relink(ctx, id); err != nil {
			s.logger.Warn("scheduling relink failed", slog.String("id", id), slog.Any("error", err))
		}
	}
}

func setPages(r *resource.Resource, req Request) {
	if req.FirstPage == "" && req.LastPage == "" {
		return
	}
	if len(r.EmbodiedAs) == 0 {
		r.EmbodiedAs = []resource.Embodiment{{}}
	}
	if r.EmbodiedAs[0].FirstPage == "" {
		r.EmbodiedAs[0].FirstPage = req.FirstPage
	}
	if r.EmbodiedAs[0].LastPage == "" {
		r.EmbodiedAs[0].LastPage = req.LastPage
	}
}

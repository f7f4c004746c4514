// Package ranker produces ranked candidate matches for a citation, either
// from the external providers or from resources already in the store.
package ranker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/locdb/locdb/internal/doi"
	"github.com/locdb/locdb/internal/metrics"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/similarity"
	"github.com/locdb/locdb/internal/source"
	"github.com/locdb/locdb/internal/storage"
)

// DefaultTimeout bounds each adapter call.
const DefaultTimeout = 20 * time.Second

// Ranker fans a query out to the configured adapters and ranks the
// combined candidates.
type Ranker struct {
	adapters []source.Adapter
	store    storage.Store
	scorer   similarity.Scorer
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithTimeout sets the per-adapter call timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithScorer replaces the default Levenshtein scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(r *Ranker) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithStore sets the store used for internal suggestions.
func WithStore(s storage.Store) Option {
	return func(r *Ranker) {
		r.store = s
	}
}

// WithLogger sets the logger for adapter failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records adapter calls and ranking latency on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Ranker) {
		r.metrics = m
	}
}

// New creates a Ranker. Adapters are queried in the order SWB, GVI,
// K10PLUS, CROSSREF whatever order they are given in.
func New(adapters []source.Adapter, opts ...Option) *Ranker {
	r := &Ranker{
		adapters: source.SortByDispatchOrder(adapters),
		scorer:   similarity.Levenshtein{},
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// External returns up to k candidate hierarchies for query, best first.
func (r *Ranker) External(ctx context.Context, query string, k int) ([]resource.Hierarchy, error) {
	scored, err := r.ExternalScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]resource.Hierarchy, len(scored))
	for i, s := range scored {
		out[i] = s.Hierarchy
	}
	return out, nil
}

// ExternalScored is External with the score of each candidate.
//
// A query containing a DOI is answered by Crossref alone and returned
// unscored and untruncated. Otherwise every adapter is queried by text
// concurrently; candidates are scored against the query, stably sorted by
// ascending score and truncated to k. Adapter failures are logged and
// skipped unless every adapter fails.
func (r *Ranker) ExternalScored(ctx context.Context, query string, k int) ([]resource.Scored, error) {
	start := time.Now()
	if d, ok := doi.Extract(query); ok {
		out, err := r.byDOI(ctx, d)
		r.metrics.ObserveRanking("doi", time.Since(start), len(out))
		return out, err
	}

	out, err := r.byText(ctx, query, k)
	r.metrics.ObserveRanking("text", time.Since(start), len(out))
	return out, err
}

func (r *Ranker) byDOI(ctx context.Context, d string) ([]resource.Scored, error) {
	a := source.Find(r.adapters, resource.SourceCrossref)
	if a == nil {
		return nil, &AllAdaptersFailedError{Errors: []*source.AdapterError{{
			Source: resource.SourceCrossref,
			Op:     source.OpQueryByDOI,
			Err:    errors.New("adapter not configured"),
		}}}
	}

	h, err := r.call(ctx, a, source.OpQueryByDOI, func(ctx context.Context) ([]resource.Hierarchy, error) {
		h, err := a.QueryByDOI(ctx, d)
		if err != nil || h == nil {
			return nil, err
		}
		return []resource.Hierarchy{*h}, nil
	})
	if err != nil {
		return nil, &AllAdaptersFailedError{Errors: []*source.AdapterError{err}}
	}

	out := make([]resource.Scored, 0, len(h))
	for _, candidate := range h {
		candidate = resource.CloneHierarchy(candidate)
		candidate.Tag(resource.SourceCrossref, resource.StatusExternal)
		out = append(out, resource.Scored{Hierarchy: candidate})
	}
	return out, nil
}

func (r *Ranker) byText(ctx context.Context, query string, k int) ([]resource.Scored, error) {
	branches := make([]Branch[[]resource.Hierarchy], len(r.adapters))
	for i, a := range r.adapters {
		branches[i] = Branch[[]resource.Hierarchy]{
			Name: string(a.Source()),
			Run: func(ctx context.Context) ([]resource.Hierarchy, error) {
				h, err := r.call(ctx, a, source.OpQueryByText, func(ctx context.Context) ([]resource.Hierarchy, error) {
					return a.QueryByText(ctx, query)
				})
				if err != nil {
					return nil, err
				}
				return h, nil
			},
		}
	}

	outcomes := Join(ctx, branches)

	var failed []*source.AdapterError
	var candidates []resource.Scored
	for i, o := range outcomes {
		src := r.adapters[i].Source()
		if o.Err != nil {
			var ae *source.AdapterError
			if !errors.As(o.Err, &ae) {
				ae = &source.AdapterError{Source: src, Op: source.OpQueryByText, Err: o.Err}
			}
			failed = append(failed, ae)
			continue
		}
		for _, h := range o.Value {
			h = resource.CloneHierarchy(h)
			h.Source = src
			candidates = append(candidates, resource.Scored{Hierarchy: h, Score: r.score(query, h)})
		}
	}

	if len(failed) == len(r.adapters) {
		return nil, &AllAdaptersFailedError{Errors: failed}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score < candidates[j].Score
	})

	if k <= 0 {
		return []resource.Scored{}, nil
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	for i := range candidates {
		candidates[i].Tag(candidates[i].Source, resource.StatusExternal)
	}
	return candidates, nil
}

// score is the conservative pair score: the worst score of the present
// members.
func (r *Ranker) score(query string, h resource.Hierarchy) int {
	best := -1
	for _, m := range h.Members() {
		if s := r.scorer.Score(query, m); s > best {
			best = s
		}
	}
	return best
}

// call runs one adapter operation under the per-adapter timeout and
// records it. Failures come back as *source.AdapterError.
func (r *Ranker) call(ctx context.Context, a source.Adapter, op source.Op, fn func(context.Context) ([]resource.Hierarchy, error)) ([]resource.Hierarchy, *source.AdapterError) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	h, err := fn(ctx)
	elapsed := time.Since(start)
	r.metrics.ObserveAdapterCall(string(a.Source()), string(op), elapsed, err)
	if err == nil {
		return h, nil
	}

	ae := &source.AdapterError{Source: a.Source(), Op: op, Err: err}
	var wrapped *source.AdapterError
	if errors.As(err, &wrapped) {
		ae = wrapped
	}
	r.logger.Warn("adapter failed",
		slog.String("source", string(ae.Source)),
		slog.String("op", string(ae.Op)),
		slog.Duration("elapsed", elapsed),
		slog.Any("error", ae.Err))
	return nil, ae
}

// Internal returns stored entries and resources whose title equals title
// exactly: first the VALID citation entries with their provenance cleared,
// then the resources projected to entries.
func (r *Ranker) Internal(ctx context.Context, title string) ([]resource.Entry, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	start := time.Now()
	if strings.TrimSpace(title) == "" {
		return []resource.Entry{}, nil
	}

	outcomes := Join(ctx, []Branch[[]resource.Entry]{
		{
			Name: "entries",
			Run: func(ctx context.Context) ([]resource.Entry, error) {
				entries, err := r.store.FindEntriesByTitle(ctx, title, resource.StatusValid)
				if err != nil {
					return nil, err
				}
				out := make([]resource.Entry, len(entries))
				for i, e := range entries {
					e = resource.CloneEntry(e)
					e.ScanID = ""
					e.Marker = ""
					e.Coordinates = ""
					e.Status = ""
					out[i] = e
				}
				return out, nil
			},
		},
		{
			Name: "resources",
			Run: func(ctx context.Context) ([]resource.Entry, error) {
				resources, err := r.store.FindByTitle(ctx, title, storage.Scope{})
				if err != nil {
					return nil, err
				}
				out := make([]resource.Entry, len(resources))
				for i, br := range resources {
					out[i] = entryFromResource(br)
				}
				return out, nil
			},
		},
	})

	out := []resource.Entry{}
	for _, o := range outcomes {
		if o.Err != nil {
			return nil, o.Err
		}
		out = append(out, o.Value...)
	}
	r.metrics.ObserveRanking("internal", time.Since(start), len(out))
	return out, nil
}

func entryFromResource(br resource.Resource) resource.Entry {
	return resource.Entry{
		OCRData: resource.OCRData{
			Title:   br.Title,
			Date:    resource.YearString(br.PublicationYear),
			Authors: br.AuthorNames(),
		},
		References: br.ID,
	}
}

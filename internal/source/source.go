// Package source defines the contract shared by the external metadata
// providers (Crossref, the SWB SRU catalogue and the GVI and K10plus Solr
// indexes) and the error type used to report their failures.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/locdb/locdb/internal/resource"
)

// ErrUnsupported is returned by adapters that cannot serve an operation,
// for example a catalogue without DOI lookup.
var ErrUnsupported = errors.New("operation not supported by source")

// Adapter is an external metadata provider.
type Adapter interface {
	// Source identifies the provider.
	Source() resource.Source

	// QueryByText searches by free text. The returned hierarchies are in
	// the provider's own relevance order.
	QueryByText(ctx context.Context, text string) ([]resource.Hierarchy, error)

	// QueryByDOI looks up a single work. It returns nil, nil when the DOI
	// is unknown to the provider.
	QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error)
}

// Op names an adapter operation in errors and metrics.
type Op string

const (
	OpQueryByText Op = "query_by_text"
	OpQueryByDOI  Op = "query_by_doi"
	OpQueryByPPN  Op = "query_by_ppn"
)

// AdapterError records the failure of one external provider call. It is
// not fatal to a ranking request on its own.
type AdapterError struct {
	Source resource.Source
	Op     Op
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *AdapterError for src, or nil if err is nil.
// An error that already is an AdapterError is returned unchanged.
func Wrap(src resource.Source, op Op, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	return &AdapterError{Source: src, Op: op, Err: err}
}

// SortByDispatchOrder orders adapters SWB, GVI, K10PLUS, CROSSREF. The sort
// is stable so adapters with an unknown source keep their relative order
// after the known ones.
func SortByDispatchOrder(adapters []Adapter) []Adapter {
	sorted := append([]Adapter(nil), adapters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i]) < rank(sorted[j])
	})
	return sorted
}

func rank(a Adapter) int {
	r := a.Source().Rank()
	if r < 0 {
		return len(resource.Sources)
	}
	return r
}

// Find returns the adapter for src, or nil.
func Find(adapters []Adapter, src resource.Source) Adapter {
	for _, a := range adapters {
		if a.Source() == src {
			return a
		}
	}
	return nil
}

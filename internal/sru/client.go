// Package sru implements the library-catalogue adapter for the SWB union
// catalogue, queried over SRU with MARCXML records.
package sru

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/source"
)

const (
	// BaseURL is the SWB SRU endpoint.
	BaseURL = "https://swb.bsz-bw.de/sru/DB=2.1/username=/password=/"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is the request rate allowed against the catalogue.
	RateLimit = 5.0

	// DefaultRows is the maximumRecords value for text queries.
	DefaultRows = 10
)

// Common errors returned by the SRU client.
var (
	ErrNotFound        = errors.New("not found in SWB")
	ErrRateLimited     = errors.New("SWB rate limit exceeded")
	ErrNetworkError    = errors.New("network error communicating with SWB")
	ErrInvalidResponse = errors.New("invalid response from SWB")
)

// APIError represents an unexpected HTTP status or an SRU diagnostic.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SWB API error (status %d): %s", e.StatusCode, e.Message)
}

// Client is a rate-limited SRU client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	rows       int
}

var _ source.Adapter = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRows sets maximumRecords for text queries.
func WithRows(rows int) ClientOption {
	return func(c *Client) {
		if rows > 0 {
			c.rows = rows
		}
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient creates a new SRU client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		rows:       DefaultRows,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source implements source.Adapter.
func (c *Client) Source() resource.Source {
	return resource.SourceSWB
}

// QueryByText searches all indexed fields.
func (c *Client) QueryByText(ctx context.Context, text string) ([]resource.Hierarchy, error) {
	return c.search(ctx, `pica.all="`+escapeCQL(text)+`"`, c.rows)
}

// QueryByDOI is not offered by the catalogue.
func (c *Client) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	return nil, source.ErrUnsupported
}

// QueryByPPN looks up a single record by its PPN. It returns nil, nil when
// the catalogue has no such record.
func (c *Client) QueryByPPN(ctx context.Context, ppn string) (*resource.Hierarchy, error) {
	ppn = strings.TrimSpace(ppn)
	if ppn == "" {
		return nil, &resource.ValidationError{Field: "ppn", Reason: "empty PPN"}
	}
	hs, err := c.search(ctx, `pica.ppn="`+escapeCQL(ppn)+`"`, 1)
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		return nil, nil
	}
	return &hs[0], nil
}

func (c *Client) search(ctx context.Context, query string, rows int) ([]resource.Hierarchy, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("version", "1.1")
	params.Set("operation", "searchRetrieve")
	params.Set("query", query)
	params.Set("maximumRecords", strconv.Itoa(rows))
	params.Set("recordSchema", "marcxml")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	var sr searchRetrieveResponse
	if err := xml.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(sr.Diagnostics) > 0 {
		d := sr.Diagnostics[0]
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(d.Message + " " + d.Details)}
	}

	hierarchies := make([]resource.Hierarchy, 0, len(sr.Records))
	for _, rec := range sr.Records {
		hierarchies = append(hierarchies, MapRecord(rec.Data.Record))
	}
	return hierarchies, nil
}

// escapeCQL escapes characters that would terminate a quoted CQL term.
func escapeCQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

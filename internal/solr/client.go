// Package solr implements the catalogue adapter for Solr-backed union
// catalogue indexes. The same client serves the GVI and K10plus instances;
// only the base URL and the source tag differ.
package solr

import (
	"context"
	"encoding/json"
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
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is the default request rate per instance.
	RateLimit = 10.0

	// DefaultRows is the number of documents requested per query.
	DefaultRows = 10
)

// Common errors returned by the Solr client.
var (
	ErrNotFound        = errors.New("not found in Solr index")
	ErrRateLimited     = errors.New("Solr rate limit exceeded")
	ErrNetworkError    = errors.New("network error communicating with Solr")
	ErrInvalidResponse = errors.New("invalid response from Solr")
)

// APIError represents an unexpected HTTP status or a Solr error body.
type APIError struct {
	StatusCode int
	Message    string
	Source     resource.Source
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s Solr error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Client queries one Solr core.
type Client struct {
	src        resource.Source
	idScheme   resource.Scheme
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

// WithRows sets the number of documents requested per query.
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

// NewClient creates a client for the Solr core at baseURL (the URL up to
// and including the core name). src must be GVI or K10PLUS.
func NewClient(src resource.Source, baseURL string, opts ...ClientOption) (*Client, error) {
	var scheme resource.Scheme
	switch src {
	case resource.SourceGVI:
		scheme = resource.SchemeGVIID
	case resource.SourceK10plus:
		scheme = resource.SchemeK10plusID
	case resource.SourceSWB, resource.SourceCrossref:
		return nil, fmt.Errorf("solr: %s is not a Solr catalogue", src)
	default:
		return nil, fmt.Errorf("solr: unknown source %q", src)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("solr: base URL for %s not configured", src)
	}

	c := &Client{
		src:        src,
		idScheme:   scheme,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    strings.TrimRight(baseURL, "/"),
		rows:       DefaultRows,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Source implements source.Adapter.
func (c *Client) Source() resource.Source {
	return c.src
}

// QueryByText runs an edismax query over the catalogue's default fields.
func (c *Client) QueryByText(ctx context.Context, text string) ([]resource.Hierarchy, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("defType", "edismax")
	params.Set("rows", strconv.Itoa(c.rows))
	params.Set("wt", "json")

	docs, err := c.selectDocs(ctx, params)
	if err != nil {
		return nil, err
	}

	hierarchies := make([]resource.Hierarchy, 0, len(docs))
	for _, d := range docs {
		hierarchies = append(hierarchies, c.MapDocument(d))
	}
	return hierarchies, nil
}

// QueryByDOI is not offered by the catalogue indexes.
func (c *Client) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	return nil, source.ErrUnsupported
}

func (c *Client) selectDocs(ctx context.Context, params url.Values) ([]Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/select?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var sr selectResponse
		if json.Unmarshal(body, &sr) == nil && sr.Error != nil && sr.Error.Msg != "" {
			msg = sr.Error.Msg
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Source: c.src}
	}

	var sr selectResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return sr.Response.Docs, nil
}

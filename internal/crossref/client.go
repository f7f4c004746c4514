// Package crossref implements the DOI-registry adapter on top of the
// Crossref REST API.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/time/rate"

	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/source"
)

const (
	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is the polite-pool request rate.
	RateLimit = 10.0

	// DefaultRows is the number of works requested per text query.
	DefaultRows = 20

	// containerSimilarity is the minimum similarity between a chapter's
	// container title and the requested one.
	containerSimilarity = 0.95
)

// Client is a rate-limited HTTP client for the Crossref works API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	rows       int
	logger     *slog.Logger
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
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMailto sets the contact address that routes requests to the polite pool.
func WithMailto(mailto string) ClientOption {
	return func(c *Client) {
		c.mailto = mailto
	}
}

// WithRows sets the number of works requested per text query.
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

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new Crossref client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		rows:       DefaultRows,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source implements source.Adapter.
func (c *Client) Source() resource.Source {
	return resource.SourceCrossref
}

// QueryByText searches works by bibliographic free text. Each work becomes
// one hierarchy whose parent is the work's container.
func (c *Client) QueryByText(ctx context.Context, text string) ([]resource.Hierarchy, error) {
	params := url.Values{}
	params.Set("query", RemoveDiacritics(text))
	params.Set("rows", strconv.Itoa(c.rows))

	works, err := c.searchWorks(ctx, params)
	if err != nil {
		return nil, err
	}

	hierarchies := make([]resource.Hierarchy, 0, len(works))
	for _, w := range works {
		hierarchies = append(hierarchies, MapHierarchy(w))
	}
	return hierarchies, nil
}

// QueryByDOI fetches a single work. An unregistered DOI yields nil, nil.
func (c *Client) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	w, err := c.GetWork(ctx, doi)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	h := MapHierarchy(*w)
	return &h, nil
}

// QueryReferences fetches the deposited reference list of a work as
// entries. Works without references yield an empty list.
func (c *Client) QueryReferences(ctx context.Context, doi string) ([]resource.Entry, error) {
	w, err := c.GetWork(ctx, doi)
	if err != nil {
		return nil, err
	}
	return MapReferences(w.Reference), nil
}

// QueryChapterMetadata finds works published in the named container that
// span exactly firstPage to lastPage.
func (c *Client) QueryChapterMetadata(ctx context.Context, containerTitle, firstPage, lastPage string) ([]resource.Resource, error) {
	containerTitle = RemoveDiacritics(containerTitle)

	params := url.Values{}
	params.Set("query.container-title", containerTitle)
	params.Set("rows", strconv.Itoa(c.rows))

	works, err := c.searchWorks(ctx, params)
	if err != nil {
		return nil, err
	}

	var matches []resource.Resource
	for _, w := range works {
		if len(w.ContainerTitle) == 0 {
			continue
		}
		if w.Page != firstPage+"-"+lastPage && w.Page != firstPage+"--"+lastPage {
			continue
		}
		if sim := titleSimilarity(w.ContainerTitle[0], containerTitle); sim > containerSimilarity {
			c.logger.Info("chapter matched on pages and container title",
				slog.String("doi", w.DOI),
				slog.Float64("similarity", sim))
			matches = append(matches, MapWork(w))
		}
	}
	return matches, nil
}

// GetWork fetches the raw Crossref record for doi.
func (c *Client) GetWork(ctx context.Context, doi string) (*Work, error) {
	doi = resource.NormalizeDOI(doi)
	if doi == "" {
		return nil, &resource.ValidationError{Field: "doi", Reason: "empty DOI"}
	}

	body, err := c.get(ctx, "/works/"+url.PathEscape(doi), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.DOI = doi
		}
		return nil, err
	}

	var resp workResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &resp.Message, nil
}

func (c *Client) searchWorks(ctx context.Context, params url.Values) ([]Work, error) {
	body, err := c.get(ctx, "/works", params)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return resp.Message.Items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	return body, nil
}

func checkHTTPErrors(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}

// titleSimilarity returns 1 for identical titles and approaches 0 as the
// edit distance approaches the longer title's length.
func titleSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

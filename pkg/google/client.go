// Package google provides a client for the Google Custom Search JSON API.
package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://customsearch.googleapis.com"

// MaxPageSize is the largest page the API returns.
const MaxPageSize = 10

// Client performs Google Custom Search operations.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest selects one page of results.
type SearchRequest struct {
	Query string
	// Start is the 1-based index of the first result. Zero means 1.
	Start int
	// Num is the page size, capped at MaxPageSize. Zero means MaxPageSize.
	Num int
}

// SearchResponse is one page of Custom Search results.
type SearchResponse struct {
	Items   []Item  `json:"items"`
	Queries Queries `json:"queries"`
}

// Item is a single ranked result.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
}

// Queries carries pagination metadata.
type Queries struct {
	NextPage []PageRef `json:"nextPage"`
}

// PageRef points at a page of results.
type PageRef struct {
	StartIndex int `json:"startIndex"`
}

// NextStart returns the start index of the following page, or 0 when the
// response is the last page.
func (r *SearchResponse) NextStart() int {
	if r == nil || len(r.Queries.NextPage) == 0 {
		return 0
	}
	return r.Queries.NextPage[0].StartIndex
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	cx      string
	baseURL string
	http    *http.Client
}

// NewClient creates a Custom Search client for the search engine cx.
func NewClient(apiKey, cx string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		cx:      cx,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	num := sr.Num
	if num <= 0 || num > MaxPageSize {
		num = MaxPageSize
	}
	start := max(sr.Start, 1)

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.cx)
	q.Set("q", sr.Query)
	q.Set("start", strconv.Itoa(start))
	q.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/customsearch/v1?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}

// Package brandfetch provides a client for the Brandfetch logo CDN.
package brandfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://cdn.brandfetch.io"
	defaultReferer = "https://brandfetch.io/"
	acceptHeader   = "image/webp,image/apng,image/*,*/*;q=0.8"

	// maxLogoBytes bounds a single logo download.
	maxLogoBytes = 10 << 20
)

// Client fetches logos from the CDN. A call is a single attempt; retrying
// is the caller's decision.
type Client interface {
	Logo(ctx context.Context, domain string, opts ...RequestOption) (*Logo, error)
}

// Logo is an image body and the content type the CDN reported for it.
type Logo struct {
	Data        []byte
	ContentType string
}

// StatusError reports a response that was not a 200 image. Logo returns it
// wrapped in a resilience.TransientError.
type StatusError struct {
	StatusCode  int
	ContentType string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("brandfetch: status %d, content type %q", e.StatusCode, e.ContentType)
}

// RequestOption adjusts a single logo request.
type RequestOption func(*http.Request)

// WithUserAgent sets the User-Agent header for one request.
func WithUserAgent(ua string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("User-Agent", ua)
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the CDN base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSize sets the requested logo bounding box in pixels.
func WithSize(width, height int) Option {
	return func(c *httpClient) {
		if width > 0 {
			c.width = width
		}
		if height > 0 {
			c.height = height
		}
	}
}

type httpClient struct {
	clientID string
	baseURL  string
	width    int
	height   int
	http     *http.Client
}

// NewClient creates a CDN client authenticated with clientID.
func NewClient(clientID string, opts ...Option) Client {
	c := &httpClient{
		clientID: clientID,
		baseURL:  defaultBaseURL,
		width:    512,
		height:   94,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LogoURL returns the CDN address for domain's logo.
func (c *httpClient) LogoURL(domain string) string {
	return fmt.Sprintf("%s/%s/w/%d/h/%d/logo?c=%s",
		c.baseURL, url.PathEscape(domain), c.width, c.height, url.QueryEscape(c.clientID))
}

func (c *httpClient) Logo(ctx context.Context, domain string, opts ...RequestOption) (*Logo, error) {
	if domain == "" {
		return nil, eris.New("brandfetch: empty domain")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.LogoURL(domain), nil)
	if err != nil {
		return nil, eris.Wrap(err, "brandfetch: create request")
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Referer", defaultReferer)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	for _, o := range opts {
		o(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "brandfetch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(ct, "image/") {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, resilience.NewTransientError(&StatusError{StatusCode: resp.StatusCode, ContentType: ct}, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, eris.Wrap(err, "brandfetch: read body")
	}

	return &Logo{Data: data, ContentType: ct}, nil
}

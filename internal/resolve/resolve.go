// Package resolve finds a company's official website domain via web search.
package resolve

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/search"
)

// ErrNoDomain means no search result qualified as the company's site.
var ErrNoDomain = eris.New("resolve: no qualifying domain found")

// DefaultBlockedHosts are host substrings that never count as an official site.
var DefaultBlockedHosts = []string{"wikipedia", "linkedin"}

// QuerySuffix is appended to the company name to form the search query.
const QuerySuffix = " official site"

// Resolver maps company names to domains. It does not retry; a failed
// search is reported as ErrNoDomain.
type Resolver struct {
	searcher search.Searcher
	blocked  []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBlockedHosts replaces the blocked host substrings.
func WithBlockedHosts(hosts []string) Option {
	return func(r *Resolver) {
		r.blocked = make([]string, 0, len(hosts))
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				r.blocked = append(r.blocked, h)
			}
		}
	}
}

// New creates a Resolver backed by s.
func New(s search.Searcher, opts ...Option) *Resolver {
	r := &Resolver{searcher: s, blocked: DefaultBlockedHosts}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the domain of the first search result that is not a
// blocked host. The result sequence is consumed only up to that result.
func (r *Resolver) Resolve(ctx context.Context, companyName string) (model.ResolvedDomain, error) {
	query := companyName + QuerySuffix
	log := zap.L().With(zap.String("company", companyName))

	for rawURL, err := range r.searcher.Search(ctx, query) {
		if err != nil {
			log.Warn("search failed", zap.Error(err))
			return model.ResolvedDomain{}, eris.Wrapf(ErrNoDomain, "%s: %v", companyName, err)
		}
		if r.isBlocked(rawURL) {
			continue
		}
		domain, ok := ExtractDomain(rawURL)
		if !ok {
			log.Debug("unparseable search result", zap.String("url", rawURL))
			return model.ResolvedDomain{}, eris.Wrapf(ErrNoDomain, "%s: unparseable result %q", companyName, rawURL)
		}
		log.Debug("resolved domain", zap.String("domain", domain), zap.String("url", rawURL))
		return model.ResolvedDomain{CompanyName: companyName, Domain: domain}, nil
	}

	return model.ResolvedDomain{}, eris.Wrap(ErrNoDomain, companyName)
}

// isBlocked matches the blocked substrings anywhere in the URL, path included.
func (r *Resolver) isBlocked(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, b := range r.blocked {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// ExtractDomain returns the lowercased host of rawURL without a leading
// "www.". It fails for unparseable URLs and URLs without a host.
func ExtractDomain(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", false
	}
	return host, true
}

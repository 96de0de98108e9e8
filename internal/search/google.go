package search

import (
	"context"
	"iter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/pkg/google"
)

// Google searches via the Custom Search JSON API, one page at a time.
type Google struct {
	client google.Client
	opts   options
}

// NewGoogle wraps a Custom Search client.
func NewGoogle(client google.Client, opts ...Option) *Google {
	return &Google{client: client, opts: buildOptions(opts)}
}

// Search yields result links, requesting the next page only after the
// current one has been consumed.
func (g *Google) Search(ctx context.Context, query string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := 1
		for page := 0; page < g.opts.maxPages && start > 0; page++ {
			if err := g.opts.wait(ctx); err != nil {
				yield("", eris.Wrap(err, "search: google rate limit"))
				return
			}

			resp, err := g.client.Search(ctx, google.SearchRequest{Query: query, Start: start})
			if err != nil {
				yield("", eris.Wrap(err, "search: google"))
				return
			}

			for _, item := range resp.Items {
				if !yield(item.Link, nil) {
					return
				}
			}
			start = resp.NextStart()
		}
	}
}

package search

import (
	"context"
	"iter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/pkg/jina"
)

// Jina searches via Jina AI Search, which returns a single page.
type Jina struct {
	client jina.Client
	opts   options
}

// NewJina wraps a Jina search client.
func NewJina(client jina.Client, opts ...Option) *Jina {
	return &Jina{client: client, opts: buildOptions(opts)}
}

// Search yields the result URLs of one Jina search.
func (j *Jina) Search(ctx context.Context, query string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := j.opts.wait(ctx); err != nil {
			yield("", eris.Wrap(err, "search: jina rate limit"))
			return
		}

		resp, err := j.client.Search(ctx, query)
		if err != nil {
			yield("", eris.Wrap(err, "search: jina"))
			return
		}

		for _, r := range resp.Data {
			if !yield(r.URL, nil) {
				return
			}
		}
	}
}

// Package search adapts web search APIs to a lazy sequence of result URLs.
package search

import (
	"context"
	"iter"

	"golang.org/x/time/rate"
)

// Searcher yields result URLs for a query in ranked order. The sequence is
// lazy: backends fetch further pages only while the consumer keeps
// iterating. A non-nil error ends the sequence.
type Searcher interface {
	Search(ctx context.Context, query string) iter.Seq2[string, error]
}

// Func adapts a plain function to Searcher.
type Func func(ctx context.Context, query string) iter.Seq2[string, error]

// Search calls f.
func (f Func) Search(ctx context.Context, query string) iter.Seq2[string, error] {
	return f(ctx, query)
}

// Static returns a Searcher that answers from a fixed table. Unknown
// queries yield nothing.
func Static(results map[string][]string) Searcher {
	return Func(func(_ context.Context, query string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, u := range results[query] {
				if !yield(u, nil) {
					return
				}
			}
		}
	})
}

// Option configures a backend.
type Option func(*options)

type options struct {
	limiter  *rate.Limiter
	maxPages int
}

// WithLimiter throttles requests to the backend. The limiter may be shared.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithMaxPages caps how many result pages a single query may request.
func WithMaxPages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{maxPages: 3}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}

// Package fetch retrieves raw page markup for a source. Two strategies
// share one contract: a plain HTTP GET for static pages and a headless
// browser for pages that only materialize under script execution. The
// orchestrator is agnostic to which one a source needs.
package fetch

import (
	"context"
	"time"

	"crawld/internal/source"
)

// Fetcher retrieves the raw markup for one source.
type Fetcher interface {
	Fetch(ctx context.Context, src *source.Source) (string, error)
}

// Options carries the settings shared by both strategies.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Settle is how long a rendered fetch sleeps after navigation before
	// capturing, to let client-side scripts populate the page.
	Settle time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 30 * time.Second
}

func (o Options) settle() time.Duration {
	if o.Settle > 0 {
		return o.Settle
	}
	return 3 * time.Second
}

// ForSource picks the strategy implied by the source's crawler type.
func ForSource(src *source.Source, opts Options) Fetcher {
	if src.CrawlerType == source.TypeRendered {
		return NewRendered(opts)
	}
	return NewStatic(opts)
}

package fetch

import (
	"context"
	"fmt"
	"time"

	"crawld/internal/browser"
	"crawld/internal/source"
)

// Rendered fetches a page through a headless browser so client-side
// rendered content is present in the captured markup.
type Rendered struct {
	opts Options
}

// NewRendered builds the rendered strategy.
func NewRendered(opts Options) *Rendered {
	return &Rendered{opts: opts}
}

// waitSelectorTimeout bounds the optional ready-selector wait. On
// timeout the fetch proceeds anyway; partial content beats total failure.
const waitSelectorTimeout = 10 * time.Second

// Fetch navigates, waits for the page to settle, surfaces lazily-loaded
// content with one scroll to the bottom, and captures the rendered HTML.
// The browser instance is torn down unconditionally.
func (f *Rendered) Fetch(ctx context.Context, src *source.Source) (string, error) {
	b, err := browser.New(browser.Config{
		UserAgent: f.opts.UserAgent,
		Headless:  true,
	})
	if err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}
	defer b.Close()

	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	page = page.Context(ctx)

	if err := page.Timeout(f.opts.timeout()).Navigate(src.URL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", src.URL, err)
	}
	if err := page.Timeout(f.opts.timeout()).WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for load: %w", err)
	}

	time.Sleep(f.opts.settle())

	if sel := src.Config.WaitSelector; sel != "" {
		// Bounded wait; a missing selector is not fatal.
		_, _ = page.Timeout(waitSelectorTimeout).Element(sel)
	}

	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err == nil {
		time.Sleep(time.Second)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("capture page html: %w", err)
	}
	return html, nil
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"crawld/internal/source"
)

// Static fetches a page with a single HTTP GET.
type Static struct {
	client    *http.Client
	userAgent string
}

// NewStatic builds the static strategy with a bounded request timeout.
func NewStatic(opts Options) *Static {
	return &Static{
		client:    &http.Client{Timeout: opts.timeout()},
		userAgent: opts.UserAgent,
	}
}

// Fetch performs the GET and returns the response body. Non-2xx status
// is an error; upstream notice boards never legitimately answer one for
// a configured listing page.
func (f *Static) Fetch(ctx context.Context, src *source.Source) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", src.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(body), nil
}

// Package pagedump fetches a page and renders it for human inspection.
// Operators use it to probe selector configurations before wiring a new
// source: dump the page, find the container/title selectors, seed the
// source.
package pagedump

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"crawld/internal/fetch"
	"crawld/internal/source"
)

// Output formats.
const (
	FormatHTML     = "html"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Request describes one dump.
type Request struct {
	URL      string
	Selector string // optional CSS fragment to cut the page down to
	Rendered bool   // fetch through the headless browser
	Format   string // html, text or markdown
}

// Dump fetches the page and renders it in the requested format.
func Dump(ctx context.Context, req Request, opts fetch.Options) (string, error) {
	src := &source.Source{
		URL:         req.URL,
		CrawlerType: source.TypeStatic,
	}
	if req.Rendered {
		src.CrawlerType = source.TypeRendered
	}

	html, err := fetch.ForSource(src, opts).Fetch(ctx, src)
	if err != nil {
		return "", err
	}

	if req.Selector != "" {
		html, err = cutFragment(html, req.Selector)
		if err != nil {
			return "", err
		}
	}

	switch req.Format {
	case FormatHTML, "":
		return html, nil
	case FormatMarkdown, FormatText:
		converter := md.NewConverter("", true, nil)
		out, err := converter.ConvertString(html)
		if err != nil {
			return "", fmt.Errorf("convert page to markdown: %w", err)
		}
		return out, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// cutFragment reduces the page to the HTML of every selector match,
// separated by blank lines.
func cutFragment(html, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var parts []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if frag, err := goquery.OuterHtml(sel); err == nil {
			parts = append(parts, frag)
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("selector %q matched nothing", selector)
	}
	return strings.Join(parts, "\n\n"), nil
}

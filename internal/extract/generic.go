package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"crawld/internal/source"
)

// minTitleLen guards against decorative nodes (icons, badges) matching
// the title selector.
const minTitleLen = 3

// Generic is the selector-driven extractor. One configuration schema
// covers most notice-board style pages: a container selector picks the
// item nodes, child selectors pick the fields.
type Generic struct{}

// Extract walks container matches, collecting up to cfg.Limit() records.
// A malformed candidate is skipped; only missing required configuration
// is an error.
func (Generic) Extract(html string, cfg source.Config) ([]Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []Record
	limit := cfg.Limit()

	doc.Find(cfg.Selectors.Container).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(records) >= limit {
			return false
		}

		title := strings.TrimSpace(sel.Find(cfg.Selectors.Title).First().Text())
		if len([]rune(title)) < minTitleLen {
			return true
		}

		url := extractURL(sel, cfg)
		if url == "" {
			return true
		}

		rec := Record{
			Type:     "game_notice",
			Game:     cfg.GameName,
			Title:    title,
			URL:      resolveURL(url, cfg.BaseURL),
			Date:     extractDate(sel, cfg),
			Category: extractCategory(sel, cfg),
		}
		records = append(records, rec)
		return true
	})

	return records, nil
}

// extractURL reads the href from the URL selector, or from the container
// node itself when no URL selector is configured.
func extractURL(sel *goquery.Selection, cfg source.Config) string {
	target := sel
	if cfg.Selectors.URL != "" {
		target = sel.Find(cfg.Selectors.URL).First()
	}
	href, _ := target.Attr("href")
	return strings.TrimSpace(href)
}

// resolveURL makes a relative URL absolute against the configured base:
// a leading slash appends directly, anything else gets a slash inserted.
func resolveURL(url, base string) string {
	if base == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if strings.HasPrefix(url, "/") {
		return base + url
	}
	return base + "/" + url
}

// extractDate reads the date by attribute when DateAttr is configured
// (machine-readable datetime attributes are often distinct from the
// display text), else by text content.
func extractDate(sel *goquery.Selection, cfg source.Config) string {
	if cfg.Selectors.Date == "" {
		return ""
	}
	node := sel.Find(cfg.Selectors.Date).First()
	if cfg.DateAttr != "" {
		if v, ok := node.Attr(cfg.DateAttr); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(node.Text())
}

func extractCategory(sel *goquery.Selection, cfg source.Config) string {
	if cfg.Selectors.Category == "" {
		return ""
	}
	node := sel.Find(cfg.Selectors.Category).First()
	// Category badges are frequently images; prefer the alt text.
	if alt, ok := node.Attr("alt"); ok {
		return strings.Trim(strings.TrimSpace(alt), "[]")
	}
	return strings.TrimSpace(node.Text())
}

// Package source defines the crawl target model and its selector
// configuration. Sources are provisioned externally (seed file or direct
// DB edits); the crawler itself only reads them and stamps
// last_crawled_at after each cycle.
package source

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Crawler types decide the fetch strategy for a source.
const (
	TypeStatic   = "static"
	TypeRendered = "rendered"
)

// ErrMisconfigured marks a source whose configuration cannot produce a
// working crawl cycle. It recurs every cycle until an operator fixes the
// source, so callers must not treat it as transient.
var ErrMisconfigured = errors.New("misconfigured source")

// Source is one configured upstream page to be periodically scraped.
type Source struct {
	ID            int64        `db:"id" yaml:"id"`
	Name          string       `db:"name" yaml:"name"`
	Slug          string       `db:"slug" yaml:"slug"`
	URL           string       `db:"url" yaml:"url"`
	CrawlerType   string       `db:"crawler_type" yaml:"crawler_type"`
	Extractor     string       `db:"extractor" yaml:"extractor"`
	Config        Config       `db:"-" yaml:"config"`
	RawConfig     string       `db:"config" yaml:"-"`
	IntervalMins  int          `db:"crawl_interval" yaml:"crawl_interval"`
	Active        bool         `db:"is_active" yaml:"active"`
	LastCrawledAt sql.NullTime `db:"last_crawled_at" yaml:"-"`
}

// Interval returns the configured crawl interval as a duration.
func (s *Source) Interval() time.Duration {
	return time.Duration(s.IntervalMins) * time.Minute
}

// EncodeConfig serializes Config into RawConfig for storage.
func (s *Source) EncodeConfig() error {
	data, err := json.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("encode source config: %w", err)
	}
	s.RawConfig = string(data)
	return nil
}

// DecodeConfig populates Config from the stored RawConfig blob.
func (s *Source) DecodeConfig() error {
	if s.RawConfig == "" {
		s.Config = Config{}
		return nil
	}
	if err := json.Unmarshal([]byte(s.RawConfig), &s.Config); err != nil {
		return fmt.Errorf("%w: bad config blob: %v", ErrMisconfigured, err)
	}
	return nil
}

// Selectors names the CSS selectors driving generic extraction.
// Container and Title are required; URL and Date are optional.
type Selectors struct {
	Container string `json:"container" yaml:"container"`
	Title     string `json:"title" yaml:"title"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	Date      string `json:"date,omitempty" yaml:"date,omitempty"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Config is the per-source extraction configuration, validated once at
// load time instead of field-by-field during extraction.
type Config struct {
	Selectors    Selectors `json:"selectors" yaml:"selectors"`
	BaseURL      string    `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	WaitSelector string    `json:"wait_selector,omitempty" yaml:"wait_selector,omitempty"`
	GameName     string    `json:"game_name,omitempty" yaml:"game_name,omitempty"`
	DateAttr     string    `json:"date_attr,omitempty" yaml:"date_attr,omitempty"`
	MaxItems     int       `json:"max_items,omitempty" yaml:"max_items,omitempty"`
}

// DefaultMaxItems caps extraction when a source does not set its own.
const DefaultMaxItems = 20

// Limit returns the effective per-cycle item cap.
func (c Config) Limit() int {
	if c.MaxItems > 0 {
		return c.MaxItems
	}
	return DefaultMaxItems
}

// Validate checks the required selectors are present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Selectors.Container) == "" {
		return fmt.Errorf("%w: container selector is required", ErrMisconfigured)
	}
	if strings.TrimSpace(c.Selectors.Title) == "" {
		return fmt.Errorf("%w: title selector is required", ErrMisconfigured)
	}
	return nil
}

// Validate checks the source is complete enough to crawl.
func (s *Source) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: url is required", ErrMisconfigured)
	}
	switch s.CrawlerType {
	case TypeStatic, TypeRendered:
	default:
		return fmt.Errorf("%w: unknown crawler type %q", ErrMisconfigured, s.CrawlerType)
	}
	if s.Extractor == "" {
		// The generic extractor needs a selector config.
		if err := s.Config.Validate(); err != nil {
			return err
		}
	}
	return nil
}

var slugStrip = regexp.MustCompile(`[^\pL\pN\s-]`)
var slugSpaces = regexp.MustCompile(`[\s_]+`)

// Slugify derives a URL-safe slug from a source name. Letters of any
// script are kept; everything else collapses to hyphens.
func Slugify(name string) string {
	s := slugStrip.ReplaceAllString(name, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	return strings.ToLower(strings.Trim(s, "-"))
}

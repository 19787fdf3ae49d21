// Package extract turns raw markup into structured records using a
// source's selector configuration. Extractor implementations form a
// closed, name-keyed registry; the generic selector-driven extractor is
// the fallback when a source names none.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"crawld/internal/source"
)

// Record is one extracted item before persistence.
type Record struct {
	Type     string            `json:"type"`
	Game     string            `json:"game,omitempty"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Date     string            `json:"date,omitempty"`
	Category string            `json:"category,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Valid reports whether the record carries the required fields.
func (r Record) Valid() bool {
	return r.Title != "" && r.URL != ""
}

// Fingerprint is the dedup key: sha256 over title+url, hex encoded.
func (r Record) Fingerprint() string {
	sum := sha256.Sum256([]byte(r.Title + r.URL))
	return hex.EncodeToString(sum[:])
}

// Payload serializes the record to the open-ended JSON document stored
// alongside it.
func (r Record) Payload() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode record payload: %w", err)
	}
	return string(data), nil
}

// Extractor extracts records from raw markup.
type Extractor interface {
	Extract(html string, cfg source.Config) ([]Record, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Extractor{}
)

// Register adds a named extractor. It is the escape hatch for site
// extractors that need more than selector configuration.
func Register(name string, e Extractor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = e
}

// Get looks up a registered extractor by name.
func Get(name string) (Extractor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[strings.ToLower(name)]
	return e, ok
}

// Resolve picks the extractor for a source: an explicitly named one from
// the registry, else the generic selector-driven extractor. An unknown
// name is a configuration error, not a transient one.
func Resolve(src *source.Source) (Extractor, error) {
	if src.Extractor != "" {
		e, ok := Get(src.Extractor)
		if !ok {
			return nil, fmt.Errorf("%w: unknown extractor %q", source.ErrMisconfigured, src.Extractor)
		}
		return e, nil
	}
	return Generic{}, nil
}

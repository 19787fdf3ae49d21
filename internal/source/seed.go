package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML shape of a sources seed file. The daemon upserts
// these into the store at startup so deployments stay declarative.
type SeedFile struct {
	Sources []*Source `yaml:"sources"`
}

// LoadSeed parses a seed file and validates every source in it.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for _, src := range seed.Sources {
		if src.CrawlerType == "" {
			src.CrawlerType = TypeStatic
		}
		if src.Slug == "" {
			src.Slug = Slugify(src.Name)
		}
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Name, err)
		}
		if err := src.EncodeConfig(); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Name, err)
		}
	}
	return &seed, nil
}

package documents

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const catalogFile = "index.yaml"

// Catalog is the optional index.yaml of a search path describing the SCL
// files of a project.
type Catalog struct {
	Project     string         `yaml:"project"`
	Description string         `yaml:"description"`
	Documents   []CatalogEntry `yaml:"documents"`
}

type CatalogEntry struct {
	File        string `yaml:"file"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ReadCatalog reads index.yaml from dir. A missing file yields (nil, nil).
func ReadCatalog(dir string) (*Catalog, error) {
	path := filepath.Join(dir, catalogFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	for i, entry := range catalog.Documents {
		if entry.File == "" {
			return nil, fmt.Errorf("catalog %s: entry %d has no file", path, i)
		}
	}

	return &catalog, nil
}

// Entry returns the catalog entry for file, if any.
func (c *Catalog) Entry(file string) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	for _, entry := range c.Documents {
		if entry.File == file {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

package documents

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/antchfx/xmlquery"
)

type loadedFile struct {
	root *xmlquery.Node
	size int
	path string
}

// FileLoader reads SCL files from a list of search paths and caches the
// parsed trees by relative path.
type FileLoader struct {
	cache       sync.Map
	searchPaths []string
	extensions  map[string]bool
}

func NewFileLoader(searchPaths, extensions []string) *FileLoader {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &FileLoader{
		searchPaths: searchPaths,
		extensions:  exts,
	}
}

// Load parses the file at relPath from the first search path containing it
// and returns the tree, the file size and the path it was read from.
func (l *FileLoader) Load(relPath string) (*xmlquery.Node, int, string, error) {
	if cached, ok := l.cache.Load(relPath); ok {
		f := cached.(*loadedFile)
		return f.root, f.size, f.path, nil
	}

	var data []byte
	var foundPath string
	for _, searchPath := range l.searchPaths {
		fullPath := filepath.Join(searchPath, relPath)
		content, err := os.ReadFile(fullPath)
		if err == nil {
			data = content
			foundPath = fullPath
			break
		}
	}

	if data == nil {
		return nil, 0, "", fmt.Errorf("document not found: %s (searched in: %v)", relPath, l.searchPaths)
	}

	root, err := scl.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to load %s: %w", foundPath, err)
	}

	l.cache.Store(relPath, &loadedFile{root: root, size: len(data), path: foundPath})
	return root, len(data), foundPath, nil
}

// Discover lists the SCL files directly inside every search path, sorted.
// Paths are relative to their search path.
func (l *FileLoader) Discover() ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, searchPath := range l.searchPaths {
		entries, err := os.ReadDir(searchPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", searchPath, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !l.extensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			if !seen[entry.Name()] {
				seen[entry.Name()] = true
				files = append(files, entry.Name())
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// Catalogs returns the catalogs of all search paths that have one.
func (l *FileLoader) Catalogs() ([]*Catalog, error) {
	var catalogs []*Catalog
	for _, searchPath := range l.searchPaths {
		catalog, err := ReadCatalog(searchPath)
		if err != nil {
			return nil, err
		}
		if catalog != nil {
			catalogs = append(catalogs, catalog)
		}
	}
	return catalogs, nil
}

func (l *FileLoader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}

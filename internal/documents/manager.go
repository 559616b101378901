package documents

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager is the registry of parsed SCL documents. Names are unique: adding
// a document under an existing name replaces the older one.
type Manager struct {
	loader *FileLoader
	docs   map[uuid.UUID]*Document
	mu     sync.RWMutex
	logger *zap.Logger
}

func NewManager(searchPaths, extensions []string, logger *zap.Logger) *Manager {
	return &Manager{
		loader: NewFileLoader(searchPaths, extensions),
		docs:   make(map[uuid.UUID]*Document),
		logger: logger,
	}
}

// Add parses content and registers it under a fresh ID.
func (m *Manager) Add(name, description string, source Source, content []byte) (*Document, error) {
	return m.AddWithID(uuid.New(), name, description, source, content)
}

// AddWithID parses content and registers it under id.
func (m *Manager) AddWithID(id uuid.UUID, name, description string, source Source, content []byte) (*Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("document name is required")
	}

	root, err := scl.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:          id,
		Name:        name,
		Description: description,
		Source:      source,
		Size:        len(content),
		LoadedAt:    time.Now(),
		Root:        root,
	}
	m.put(doc)

	m.logger.Info("Document loaded",
		zap.String("id", id.String()),
		zap.String("name", name),
		zap.String("source", string(source)),
		zap.Int("ieds", len(scl.Children(scl.RootElement(root), "IED"))))

	return doc, nil
}

func (m *Manager) put(doc *Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.docs {
		if existing.Name == doc.Name && id != doc.ID {
			delete(m.docs, id)
		}
	}
	m.docs[doc.ID] = doc
}

// putFile registers a search-path document unless an uploaded or stored
// document already holds its name.
func (m *Manager) putFile(doc *Document) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.docs {
		if existing.Name == doc.Name && id != doc.ID && existing.Source != SourceFile {
			return false
		}
	}
	for id, existing := range m.docs {
		if existing.Name == doc.Name && id != doc.ID {
			delete(m.docs, id)
		}
	}
	m.docs[doc.ID] = doc
	return true
}

// dropMissingFiles removes search-path documents not registered by the
// latest scan.
func (m *Manager) dropMissingFiles(seen map[uuid.UUID]bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, doc := range m.docs {
		if doc.Source == SourceFile && !seen[id] {
			delete(m.docs, id)
			removed++
		}
	}
	return removed
}

// LoadSearchPaths registers every SCL file found in the search paths. Files
// that fail to parse are logged and skipped. A file never replaces an
// uploaded or stored document of the same name, and file documents whose
// file is gone are dropped.
func (m *Manager) LoadSearchPaths() (int, error) {
	files, err := m.loader.Discover()
	if err != nil {
		return 0, err
	}

	catalogs, err := m.loader.Catalogs()
	if err != nil {
		return 0, err
	}

	loaded := 0
	seen := make(map[uuid.UUID]bool, len(files))
	for _, file := range files {
		root, size, path, err := m.loader.Load(file)
		if err != nil {
			m.logger.Error("Failed to load document", zap.String("file", file), zap.Error(err))
			continue
		}

		name := strings.TrimSuffix(file, filepath.Ext(file))
		description := ""
		for _, catalog := range catalogs {
			if entry, ok := catalog.Entry(file); ok {
				if entry.Name != "" {
					name = entry.Name
				}
				description = entry.Description
				break
			}
		}

		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file:"+path))
		if !m.putFile(&Document{
			ID:          id,
			Name:        name,
			Description: description,
			Source:      SourceFile,
			Path:        path,
			Size:        size,
			LoadedAt:    time.Now(),
			Root:        root,
		}) {
			m.logger.Warn("Document name already taken by an uploaded document",
				zap.String("file", file),
				zap.String("name", name))
			continue
		}
		seen[id] = true
		loaded++
	}

	removed := m.dropMissingFiles(seen)

	m.logger.Info("Search paths scanned",
		zap.Int("found", len(files)),
		zap.Int("loaded", loaded),
		zap.Int("removed", removed))

	return loaded, nil
}

// Reload drops the parse cache and scans the search paths again.
func (m *Manager) Reload() (int, error) {
	m.loader.ClearCache()
	return m.LoadSearchPaths()
}

func (m *Manager) Get(id uuid.UUID) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	return doc, ok
}

func (m *Manager) GetByName(name string) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, doc := range m.docs {
		if doc.Name == name {
			return doc, true
		}
	}
	return nil, false
}

// List returns all documents sorted by name.
func (m *Manager) List() []*Document {
	m.mu.RLock()
	docs := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs
}

func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return false
	}
	delete(m.docs, id)
	return true
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

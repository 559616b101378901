package documents

import (
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
)

// Source tells where a document was loaded from.
type Source string

const (
	SourceUpload   Source = "upload"
	SourceFile     Source = "file"
	SourceDatabase Source = "database"
)

// Document is a parsed SCL file. The tree is never modified after parsing,
// so it can be queried from several goroutines at once.
type Document struct {
	ID          uuid.UUID
	Name        string
	Description string
	Source      Source
	Path        string
	Size        int
	LoadedAt    time.Time
	Root        *xmlquery.Node
}

// Info is the JSON summary of a document.
type Info struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Source      Source    `json:"source"`
	Path        string    `json:"path,omitempty"`
	Size        int       `json:"size"`
	LoadedAt    time.Time `json:"loaded_at"`
}

func (d *Document) Info() Info {
	return Info{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Source:      d.Source,
		Path:        d.Path,
		Size:        d.Size,
		LoadedAt:    d.LoadedAt,
	}
}

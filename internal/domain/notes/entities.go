package notes

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Account struct {
	Name string `json:"name"`
}

type Folder struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Account string   `json:"account"`
	Path    []string `json:"path"`
}

// PathString renders the folder's ancestor chain the way the app displays
// it, e.g. "Archive > 2024".
func (f Folder) PathString() string {
	return strings.Join(f.Path, " > ")
}

type NoteSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FolderID string `json:"folder_id"`
}

// Body is a tagged variant. Exactly one field is set: Rendered carries HTML
// produced by the automation host, Structured carries the raw body blob from
// the local store.
type Body struct {
	Rendered   string
	Structured []byte
}

func RenderedBody(html string) Body {
	return Body{Rendered: html}
}

func StructuredBody(blob []byte) Body {
	return Body{Structured: blob}
}

func (b Body) IsStructured() bool {
	return b.Structured != nil
}

type Note struct {
	ID         string
	Title      string
	FolderID   string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Body       Body
}

// ExportMetadata is the per-note metadata document written next to the
// note's contents. It carries no wall-clock export field, so re-exports of
// an unchanged note are byte-identical.
type ExportMetadata struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Account    string    `json:"account"`
	FolderPath []string  `json:"folder_path"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// FolderIndex resolves folder ids to their path chains during an export.
type FolderIndex struct {
	byID map[string]Folder
}

func NewFolderIndex(folders []Folder) (*FolderIndex, error) {
	byID := make(map[string]Folder, len(folders))
	for _, f := range folders {
		if _, dup := byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate folder id %q: %w", f.ID, ErrInconsistentData)
		}
		byID[f.ID] = f
	}
	return &FolderIndex{byID: byID}, nil
}

func (x *FolderIndex) Path(folderID string) ([]string, bool) {
	f, ok := x.byID[folderID]
	if !ok {
		return nil, false
	}
	return f.Path, true
}

// Folders returns the indexed folders ordered parents-first, so callers can
// create directories in a single pass.
func (x *FolderIndex) Folders() []Folder {
	out := make([]Folder, 0, len(x.byID))
	for _, f := range x.byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Path) != len(out[j].Path) {
			return len(out[i].Path) < len(out[j].Path)
		}
		return out[i].PathString() < out[j].PathString()
	})
	return out
}

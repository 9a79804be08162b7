package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"notescli/internal/domain/notes"
)

// EnvFixture points the CLI at a JSON fixture instead of the real system,
// for tests and development off the target platform.
const EnvFixture = "NOTESCLI_FIXTURE"

type fixtureNote struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	FolderID   string    `json:"folder_id"`
	BodyHTML   string    `json:"body_html"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

type fixtureFile struct {
	Accounts []notes.Account `json:"accounts"`
	Folders  []notes.Folder  `json:"folders"`
	Notes    []fixtureNote   `json:"notes"`
}

// Fixture is an in-memory Backend seeded from a JSON file. Writes mutate
// the in-memory state only; nothing is persisted.
type Fixture struct {
	mu     sync.Mutex
	data   fixtureFile
	nextID int
}

func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %v: %w", path, err, notes.ErrBackendUnavailable)
	}
	var data fixtureFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &Fixture{data: data, nextID: 1}, nil
}

func NewFixture(accounts []notes.Account, folders []notes.Folder) *Fixture {
	return &Fixture{
		data:   fixtureFile{Accounts: accounts, Folders: folders},
		nextID: 1,
	}
}

func (f *Fixture) Name() string { return "fixture" }

func (f *Fixture) ConcurrentReads() bool { return true }

// SeedNote adds a note directly, for tests building fixtures in code.
func (f *Fixture) SeedNote(id, title, folderID, bodyHTML string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.Notes = append(f.data.Notes, fixtureNote{
		ID: id, Title: title, FolderID: folderID, BodyHTML: bodyHTML,
	})
}

func (f *Fixture) ListAccounts(context.Context) ([]notes.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notes.Account(nil), f.data.Accounts...), nil
}

func (f *Fixture) ListFolders(_ context.Context, account string) ([]notes.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notes.Folder
	for _, folder := range f.data.Folders {
		if folder.Account == account {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *Fixture) resolveFolderLocked(account string, path []string) (notes.Folder, error) {
	want := strings.Join(path, " > ")
	var matches []notes.Folder
	for _, folder := range f.data.Folders {
		if folder.Account == account && folder.PathString() == want {
			matches = append(matches, folder)
		}
	}
	switch len(matches) {
	case 0:
		return notes.Folder{}, fmt.Errorf("folder %q in account %q: %w", want, account, notes.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return notes.Folder{}, fmt.Errorf("folder %q in account %q: %w", want, account, notes.ErrAmbiguousFolder)
	}
}

func (f *Fixture) accountFolderIDsLocked(account string) map[string]bool {
	ids := map[string]bool{}
	for _, folder := range f.data.Folders {
		if folder.Account == account {
			ids[folder.ID] = true
		}
	}
	return ids
}

func (f *Fixture) ListNotes(_ context.Context, account string) ([]notes.NoteSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.accountFolderIDsLocked(account)
	var out []notes.NoteSummary
	for _, n := range f.data.Notes {
		if ids[n.FolderID] {
			out = append(out, notes.NoteSummary{ID: n.ID, Title: n.Title, FolderID: n.FolderID})
		}
	}
	return out, nil
}

func (f *Fixture) ListNotesInFolder(_ context.Context, account string, path []string) ([]notes.NoteSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, err := f.resolveFolderLocked(account, path)
	if err != nil {
		return nil, err
	}
	var out []notes.NoteSummary
	for _, n := range f.data.Notes {
		if n.FolderID == folder.ID {
			out = append(out, notes.NoteSummary{ID: n.ID, Title: n.Title, FolderID: n.FolderID})
		}
	}
	return out, nil
}

func (f *Fixture) StreamNoteSummaries(ctx context.Context, account string, path []string, fn func(notes.NoteSummary)) error {
	var (
		summaries []notes.NoteSummary
		err       error
	)
	if len(path) == 0 {
		summaries, err = f.ListNotes(ctx, account)
	} else {
		summaries, err = f.ListNotesInFolder(ctx, account, path)
	}
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fn(s)
	}
	return nil
}

func (f *Fixture) GetNote(_ context.Context, id string) (notes.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.data.Notes {
		if n.ID == id {
			return notes.Note{
				ID:         n.ID,
				Title:      n.Title,
				FolderID:   n.FolderID,
				CreatedAt:  n.CreatedAt,
				ModifiedAt: n.ModifiedAt,
				Body:       notes.RenderedBody(n.BodyHTML),
			}, nil
		}
	}
	return notes.Note{}, fmt.Errorf("note %s: %w", id, notes.ErrNotFound)
}

func (f *Fixture) CreateNote(_ context.Context, account string, path []string, title, bodyHTML string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, err := f.resolveFolderLocked(account, path)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("fixture://note/%d", f.nextID)
	f.nextID++
	f.data.Notes = append(f.data.Notes, fixtureNote{
		ID: id, Title: title, FolderID: folder.ID, BodyHTML: bodyHTML,
	})
	return id, nil
}

func (f *Fixture) noteLocked(id string) (*fixtureNote, error) {
	for i := range f.data.Notes {
		if f.data.Notes[i].ID == id {
			return &f.data.Notes[i], nil
		}
	}
	return nil, fmt.Errorf("note %s: %w", id, notes.ErrNotFound)
}

func (f *Fixture) SetNoteTitle(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.noteLocked(id)
	if err != nil {
		return err
	}
	n.Title = title
	return nil
}

func (f *Fixture) SetNoteBody(_ context.Context, id, bodyHTML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.noteLocked(id)
	if err != nil {
		return err
	}
	n.BodyHTML = bodyHTML
	return nil
}

func (f *Fixture) AppendNoteBody(_ context.Context, id, bodyHTML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.noteLocked(id)
	if err != nil {
		return err
	}
	n.BodyHTML += bodyHTML
	return nil
}

func (f *Fixture) DeleteNote(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.data.Notes {
		if f.data.Notes[i].ID == id {
			f.data.Notes = append(f.data.Notes[:i], f.data.Notes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("note %s: %w", id, notes.ErrNotFound)
}

func (f *Fixture) MoveNote(_ context.Context, id, account string, path []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, err := f.resolveFolderLocked(account, path)
	if err != nil {
		return err
	}
	n, err := f.noteLocked(id)
	if err != nil {
		return err
	}
	n.FolderID = folder.ID
	return nil
}

func (f *Fixture) CreateFolder(_ context.Context, account string, parentPath []string, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := []string{name}
	if len(parentPath) > 0 {
		parent, err := f.resolveFolderLocked(account, parentPath)
		if err != nil {
			return "", err
		}
		path = append(append([]string(nil), parent.Path...), name)
	}
	id := fmt.Sprintf("fixture://folder/%d", f.nextID)
	f.nextID++
	f.data.Folders = append(f.data.Folders, notes.Folder{
		ID: id, Name: name, Account: account, Path: path,
	})
	return id, nil
}

// RenameFolder renames the folder at path and rewrites the path prefix of
// every folder beneath it.
func (f *Fixture) RenameFolder(_ context.Context, account string, path []string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, err := f.resolveFolderLocked(account, path)
	if err != nil {
		return err
	}
	depth := len(folder.Path) - 1
	for i := range f.data.Folders {
		other := &f.data.Folders[i]
		if other.Account != account || !pathHasPrefix(other.Path, folder.Path) {
			continue
		}
		other.Path[depth] = name
		if other.ID == folder.ID {
			other.Name = name
		}
	}
	return nil
}

func pathHasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if path[i] != p {
			return false
		}
	}
	return true
}

func (f *Fixture) DeleteFolder(_ context.Context, account string, path []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, err := f.resolveFolderLocked(account, path)
	if err != nil {
		return err
	}
	for i := range f.data.Folders {
		if f.data.Folders[i].ID == folder.ID {
			f.data.Folders = append(f.data.Folders[:i], f.data.Folders[i+1:]...)
			break
		}
	}
	return nil
}

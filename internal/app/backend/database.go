package backend

import (
	"context"
	"fmt"

	"notescli/internal/domain/notes"
	"notescli/internal/infra/notesdb"
)

// Database adapts the local store reader to the Backend interface. All
// write operations fail with ErrUnsupportedOperation: the store is only
// ever opened read-only.
type Database struct {
	db *notesdb.DB
}

func NewDatabase(db *notesdb.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Name() string { return "database" }

// ConcurrentReads is true: the store handle pools connections and SQLite
// handles parallel readers fine.
func (d *Database) ConcurrentReads() bool { return true }

func (d *Database) ListAccounts(ctx context.Context) ([]notes.Account, error) {
	return d.db.ListAccounts(ctx)
}

func (d *Database) ListFolders(ctx context.Context, account string) ([]notes.Folder, error) {
	return d.db.ListFolders(ctx, account)
}

func (d *Database) ListNotes(ctx context.Context, account string) ([]notes.NoteSummary, error) {
	return d.db.ListNotes(ctx, account)
}

func (d *Database) ListNotesInFolder(ctx context.Context, account string, path []string) ([]notes.NoteSummary, error) {
	return d.db.ListNotesInFolder(ctx, account, path)
}

func (d *Database) StreamNoteSummaries(ctx context.Context, account string, path []string, fn func(notes.NoteSummary)) error {
	var (
		summaries []notes.NoteSummary
		err       error
	)
	if len(path) == 0 {
		summaries, err = d.db.ListNotes(ctx, account)
	} else {
		summaries, err = d.db.ListNotesInFolder(ctx, account, path)
	}
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(s)
	}
	return nil
}

func (d *Database) GetNote(ctx context.Context, id string) (notes.Note, error) {
	return d.db.GetNote(ctx, id)
}

func errReadOnly(what string) error {
	return fmt.Errorf("%s: the local store backend is read-only: %w", what, notes.ErrUnsupportedOperation)
}

func (d *Database) CreateNote(context.Context, string, []string, string, string) (string, error) {
	return "", errReadOnly("create note")
}

func (d *Database) SetNoteTitle(context.Context, string, string) error {
	return errReadOnly("set note title")
}

func (d *Database) SetNoteBody(context.Context, string, string) error {
	return errReadOnly("set note body")
}

func (d *Database) AppendNoteBody(context.Context, string, string) error {
	return errReadOnly("append to note")
}

func (d *Database) DeleteNote(context.Context, string) error {
	return errReadOnly("delete note")
}

func (d *Database) MoveNote(context.Context, string, string, []string) error {
	return errReadOnly("move note")
}

func (d *Database) CreateFolder(context.Context, string, []string, string) (string, error) {
	return "", errReadOnly("create folder")
}

func (d *Database) RenameFolder(context.Context, string, []string, string) error {
	return errReadOnly("rename folder")
}

func (d *Database) DeleteFolder(context.Context, string, []string) error {
	return errReadOnly("delete folder")
}

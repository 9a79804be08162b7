package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notescli/internal/domain/notes"
)

const fixtureJSON = `{
  "accounts": [{"name": "Personal"}],
  "folders": [
    {"id": "f1", "name": "Archive", "account": "Personal", "path": ["Archive"]},
    {"id": "f2", "name": "2024", "account": "Personal", "path": ["Archive", "2024"]}
  ],
  "notes": [
    {"id": "n1", "title": "Budget", "folder_id": "f1", "body_html": "<div>numbers</div>"},
    {"id": "n2", "title": "Taxes", "folder_id": "f2", "body_html": "<div>forms</div>"}
  ]
}`

func loadTestFixture(t *testing.T) *Fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureJSON), 0o644))
	f, err := LoadFixture(path)
	require.NoError(t, err)
	return f
}

func TestFixtureReads(t *testing.T) {
	f := loadTestFixture(t)
	ctx := context.Background()

	accounts, err := f.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []notes.Account{{Name: "Personal"}}, accounts)

	folders, err := f.ListFolders(ctx, "Personal")
	require.NoError(t, err)
	assert.Len(t, folders, 2)

	summaries, err := f.ListNotesInFolder(ctx, "Personal", []string{"Archive", "2024"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Taxes", summaries[0].Title)

	note, err := f.GetNote(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "<div>numbers</div>", note.Body.Rendered)

	_, err = f.GetNote(ctx, "n99")
	require.ErrorIs(t, err, notes.ErrNotFound)
}

func TestFixtureWrites(t *testing.T) {
	f := loadTestFixture(t)
	ctx := context.Background()

	id, err := f.CreateNote(ctx, "Personal", []string{"Archive"}, "New", "<div>body</div>")
	require.NoError(t, err)

	require.NoError(t, f.SetNoteTitle(ctx, id, "Renamed"))
	require.NoError(t, f.AppendNoteBody(ctx, id, "<div>more</div>"))

	note, err := f.GetNote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", note.Title)
	assert.Equal(t, "<div>body</div><div>more</div>", note.Body.Rendered)

	require.NoError(t, f.MoveNote(ctx, id, "Personal", []string{"Archive", "2024"}))
	summaries, err := f.ListNotesInFolder(ctx, "Personal", []string{"Archive", "2024"})
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	require.NoError(t, f.DeleteNote(ctx, id))
	_, err = f.GetNote(ctx, id)
	require.ErrorIs(t, err, notes.ErrNotFound)
}

func TestFixtureFolderWrites(t *testing.T) {
	f := loadTestFixture(t)
	ctx := context.Background()

	_, err := f.CreateFolder(ctx, "Personal", []string{"Archive"}, "2025")
	require.NoError(t, err)

	folders, err := f.ListFolders(ctx, "Personal")
	require.NoError(t, err)
	require.Len(t, folders, 3)

	require.NoError(t, f.RenameFolder(ctx, "Personal", []string{"Archive", "2025"}, "Next year"))
	_, err = f.ListNotesInFolder(ctx, "Personal", []string{"Archive", "2025"})
	require.ErrorIs(t, err, notes.ErrNotFound)

	require.NoError(t, f.DeleteFolder(ctx, "Personal", []string{"Archive", "Next year"}))
	folders, err = f.ListFolders(ctx, "Personal")
	require.NoError(t, err)
	assert.Len(t, folders, 2)
}

func TestFixtureRenameFolderMovesDescendants(t *testing.T) {
	f := loadTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.RenameFolder(ctx, "Personal", []string{"Archive"}, "Vault"))

	summaries, err := f.ListNotesInFolder(ctx, "Personal", []string{"Vault", "2024"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Taxes", summaries[0].Title)

	_, err = f.ListNotesInFolder(ctx, "Personal", []string{"Archive", "2024"})
	require.ErrorIs(t, err, notes.ErrNotFound)
}

func TestFixtureMissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, notes.ErrBackendUnavailable)
}

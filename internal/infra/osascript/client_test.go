package osascript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notescli/internal/domain/notes"
)

// writeStub installs a shell script standing in for the automation host.
func writeStub(t *testing.T, body string) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "osascript")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return New(path, zerolog.Nop())
}

func countFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "calls")
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestListAccounts(t *testing.T) {
	c := writeStub(t, `echo '[{"name":"Personal"},{"name":"Work"}]'`)
	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []notes.Account{{Name: "Personal"}, {Name: "Work"}}, accounts)
}

func TestListAccountsStderrFallback(t *testing.T) {
	c := writeStub(t, `echo '[{"name":"Personal"}]' >&2`)
	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []notes.Account{{Name: "Personal"}}, accounts)
}

func TestListFolders(t *testing.T) {
	c := writeStub(t, `echo '[{"id":"f1","name":"2024","path":["Archive","2024"]}]'`)
	folders, err := c.ListFolders(context.Background(), "Personal")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Personal", folders[0].Account)
	assert.Equal(t, "Archive > 2024", folders[0].PathString())
}

func TestGetNote(t *testing.T) {
	c := writeStub(t, `echo '{"id":"n1","title":"Budget","body_html":"<div>hi</div>","folder_id":"f1","created_at":"2024-03-05T10:00:00.000Z","modified_at":"2024-03-06T11:30:00.000Z"}'`)
	note, err := c.GetNote(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Budget", note.Title)
	assert.False(t, note.Body.IsStructured())
	assert.Equal(t, "<div>hi</div>", note.Body.Rendered)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), note.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 6, 11, 30, 0, 0, time.UTC), note.ModifiedAt)
}

func TestPermissionDeniedNotRetried(t *testing.T) {
	calls := countFile(t)
	c := writeStub(t, fmt.Sprintf(`echo run >> %q
echo 'execution error: Not authorized to send Apple events to Notes. (-1743)' >&2
exit 1`, calls))

	_, err := c.ListAccounts(context.Background())
	require.ErrorIs(t, err, notes.ErrPermissionDenied)
	assert.Equal(t, 1, countLines(t, calls))
}

func TestTransientFailureRetried(t *testing.T) {
	calls := countFile(t)
	c := writeStub(t, fmt.Sprintf(`echo run >> %q
echo 'execution error: Notes got an error: connection is invalid. (-609)' >&2
exit 1`, calls))

	_, err := c.ListAccounts(context.Background())
	require.ErrorIs(t, err, notes.ErrAutomationFailure)
	assert.Equal(t, 1+maxRetries, countLines(t, calls))
}

func TestHardFailureNotRetried(t *testing.T) {
	calls := countFile(t)
	c := writeStub(t, fmt.Sprintf(`echo run >> %q
echo 'execution error: some script problem (-2700)' >&2
exit 1`, calls))

	_, err := c.ListAccounts(context.Background())
	require.ErrorIs(t, err, notes.ErrAutomationFailure)
	assert.Equal(t, 1, countLines(t, calls))
}

func TestMissingHostBinary(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "does-not-exist"), zerolog.Nop())
	_, err := c.ListAccounts(context.Background())
	require.ErrorIs(t, err, notes.ErrBackendUnavailable)
}

func TestStreamNoteSummariesDedupes(t *testing.T) {
	c := writeStub(t, `printf 'x-coredata://S/ICNote/p1\tx-coredata://S/ICFolder/p9\tFirst note\n' >&2
printf 'not a record line\n' >&2
printf 'x-coredata://S/ICNote/p2\tx-coredata://S/ICFolder/p9\t\n' >&2
printf 'x-coredata://S/ICNote/p1\tx-coredata://S/ICFolder/p9\tFirst note\n' >&2`)

	var got []notes.NoteSummary
	err := c.StreamNoteSummaries(context.Background(), "Personal", nil, func(s notes.NoteSummary) {
		got = append(got, s)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First note", got[0].Title)
	assert.Equal(t, "x-coredata://S/ICFolder/p9", got[0].FolderID)
	assert.Equal(t, "Untitled", got[1].Title)
}

func TestCreateNoteAmbiguousFolder(t *testing.T) {
	c := writeStub(t, `echo '["f1","f2"]'`)
	_, err := c.CreateNote(context.Background(), "Personal", []string{"Archive"}, "t", "<div></div>")
	require.ErrorIs(t, err, notes.ErrAmbiguousFolder)
}

func TestCreateNoteMissingFolder(t *testing.T) {
	c := writeStub(t, `echo '[]'`)
	_, err := c.CreateNote(context.Background(), "Personal", []string{"Nope"}, "t", "<div></div>")
	require.ErrorIs(t, err, notes.ErrNotFound)
}

func TestSetNoteTitleQuoting(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "script")
	c := writeStub(t, fmt.Sprintf(`cat > %q`, captured))

	err := c.SetNoteTitle(context.Background(), "n1", `He said "hi" \o/`)
	require.NoError(t, err)

	script, readErr := os.ReadFile(captured)
	require.NoError(t, readErr)
	assert.Contains(t, string(script), `"He said \"hi\" \\o/"`)
	assert.Contains(t, string(script), `note id "n1"`)
}

func TestJXAPayloadEmbedding(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "script")
	c := writeStub(t, fmt.Sprintf(`cat > %q
echo '[]'`, captured))

	_, err := c.ListFolders(context.Background(), `Per"sonal`)
	require.NoError(t, err)

	script, readErr := os.ReadFile(captured)
	require.NoError(t, readErr)
	assert.Contains(t, string(script), `{"account":"Per\"sonal"}`)
}

package notes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderPathString(t *testing.T) {
	f := Folder{Name: "2024", Path: []string{"Archive", "2024"}}
	assert.Equal(t, "Archive > 2024", f.PathString())
}

func TestBodyVariants(t *testing.T) {
	assert.False(t, RenderedBody("<div>x</div>").IsStructured())
	assert.True(t, StructuredBody([]byte{1, 2}).IsStructured())
	assert.True(t, StructuredBody([]byte{}).IsStructured())
}

func TestFolderIndex(t *testing.T) {
	idx, err := NewFolderIndex([]Folder{
		{ID: "f2", Name: "2024", Path: []string{"Archive", "2024"}},
		{ID: "f1", Name: "Archive", Path: []string{"Archive"}},
	})
	require.NoError(t, err)

	path, ok := idx.Path("f2")
	require.True(t, ok)
	assert.Equal(t, []string{"Archive", "2024"}, path)

	_, ok = idx.Path("f404")
	assert.False(t, ok)

	ordered := idx.Folders()
	require.Len(t, ordered, 2)
	assert.Equal(t, "f1", ordered[0].ID, "parents come before children")
}

func TestFolderIndexDuplicateID(t *testing.T) {
	_, err := NewFolderIndex([]Folder{{ID: "f1"}, {ID: "f1"}})
	require.ErrorIs(t, err, ErrInconsistentData)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(ErrBackendUnavailable))
	assert.True(t, Recoverable(fmt.Errorf("open store: %w", ErrSchemaMismatch)))
	assert.True(t, Recoverable(ErrInconsistentData))
	assert.False(t, Recoverable(ErrPermissionDenied))
	assert.False(t, Recoverable(ErrAutomationFailure))
	assert.False(t, Recoverable(errors.New("anything else")))
}

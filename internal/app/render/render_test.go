package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToMarkdown(t *testing.T) {
	out, err := HTMLToMarkdown(`<div><b>Groceries</b></div><div>milk and <i>eggs</i></div>`)
	require.NoError(t, err)
	assert.Contains(t, out, "**Groceries**")
	assert.Contains(t, out, "_eggs_")
}

func TestNoteDocument(t *testing.T) {
	doc := NoteDocument("Trip plan", "Pack light.\n")
	assert.Equal(t, "# Trip plan\n\nPack light.\n", doc)
}

func TestNoteDocumentEmptyBody(t *testing.T) {
	assert.Equal(t, "# Untitled\n\n", NoteDocument("Untitled", ""))
}

func TestTextToHTMLEscapes(t *testing.T) {
	out := TextToHTML("a < b\n\n\"quoted\" & done")
	assert.Equal(t, `<div>a &lt; b</div><div><br></div><div>&#34;quoted&#34; &amp; done</div>`, out)
}

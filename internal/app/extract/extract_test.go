package extract

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notescli/internal/domain/notes"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBodyPlainText(t *testing.T) {
	res, err := Body([]byte("Shopping list\r\n- milk\r\n- eggs"))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "Shopping list\n- milk\n- eggs", res.Text)
}

func TestBodyGzippedText(t *testing.T) {
	blob := gzipBytes(t, []byte("Meeting notes from Tuesday.\nFollow up with the vendor."))
	res, err := Body(blob)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "Meeting notes from Tuesday.\nFollow up with the vendor.", res.Text)
}

func TestBodyBinaryWithEmbeddedText(t *testing.T) {
	var blob []byte
	blob = append(blob, 0x08, 0x01, 0x12, 0x05)
	blob = append(blob, []byte("This is the actual note body, long enough to keep.")...)
	blob = append(blob, 0x00, 0x04, 0xff, 0xfe)

	res, err := Body(blob)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "This is the actual note body, long enough to keep.", res.Text)
}

func TestBodyPicksBestBlock(t *testing.T) {
	var blob []byte
	blob = append(blob, []byte("x1 2 3 4 5 6 7 8 9 0 1 2 3 4")...)
	blob = append(blob, 0x00)
	blob = append(blob, []byte("A proper paragraph of recovered prose, with words and punctuation.")...)

	res, err := Body(blob)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Text, "proper paragraph")
}

func TestBodyUnreadable(t *testing.T) {
	res, err := Body([]byte{0x00, 0x01, 0x02, 0x03, 0xff})
	require.ErrorIs(t, err, notes.ErrExtractionDegraded)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Text)
}

func TestBodyCorruptGzip(t *testing.T) {
	blob := gzipBytes(t, []byte("payload that will be truncated below"))
	res, err := Body(blob[:len(blob)-6])
	require.ErrorIs(t, err, notes.ErrExtractionDegraded)
	assert.True(t, res.Degraded)
}

func TestBodyDeterministic(t *testing.T) {
	blob := append([]byte{0x01, 0x02}, []byte("Deterministic content, every single run of the tool.")...)
	first, err1 := Body(blob)
	second, err2 := Body(blob)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

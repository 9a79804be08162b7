// Package extract recovers readable text from structured note body blobs.
// The blob format is an application-internal serialization; extraction is
// best effort by design and reports its own fidelity instead of guessing.
package extract

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"notescli/internal/domain/notes"
)

// Result is the outcome of one extraction. Degraded is false only when the
// blob decoded to clean UTF-8 text; any heuristic recovery sets it.
type Result struct {
	Text     string
	Degraded bool
}

// layer is one recognized outer encoding of a body blob. Kept as a table so
// a new store generation's wrapping is one entry, not a rewrite.
type layer struct {
	name   string
	sniff  func([]byte) bool
	decode func([]byte) ([]byte, error)
}

var layers = []layer{
	{name: "gzip", sniff: isGzip, decode: gunzip},
}

// Body extracts text from a structured note body. It never panics on
// malformed input and is deterministic: the same blob always yields the
// same result.
func Body(blob []byte) (Result, error) {
	decoded, err := peel(blob)
	if err != nil {
		return Result{Degraded: true}, fmt.Errorf("decode body blob: %v: %w", err, notes.ErrExtractionDegraded)
	}
	if text, ok := humanText(decoded); ok {
		return Result{Text: text}, nil
	}
	text := bestEffortText(decoded)
	if strings.TrimSpace(text) == "" {
		return Result{Degraded: true}, fmt.Errorf("no readable text in body blob: %w", notes.ErrExtractionDegraded)
	}
	return Result{Text: text, Degraded: true}, nil
}

// peel strips recognized outer layers until none match.
func peel(blob []byte) ([]byte, error) {
	data := blob
	for {
		matched := false
		for _, l := range layers {
			if !l.sniff(data) {
				continue
			}
			decoded, err := l.decode(data)
			if err != nil {
				return nil, fmt.Errorf("%s layer: %w", l.name, err)
			}
			data = decoded
			matched = true
			break
		}
		if !matched {
			return data, nil
		}
	}
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// humanText accepts the blob as plain text when it is valid UTF-8 and the
// density of control characters is low enough for prose.
func humanText(data []byte) (string, bool) {
	if len(data) == 0 || !utf8.Valid(data) {
		return "", false
	}
	s := string(data)
	printable, weird := 0, 0
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			printable++
		case unicode.IsControl(r) || r == utf8.RuneError:
			weird++
		default:
			printable++
		}
	}
	if printable == 0 || weird*20 >= printable {
		return "", false
	}
	return normalizeNewlines(s), true
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// bestEffortText splits the blob on control bytes and returns the block
// that scores best for readability. Blocks shorter than the threshold are
// noise from length prefixes and field tags.
func bestEffortText(data []byte) string {
	const minBlock = 20

	var blocks []string
	var cur []byte
	flush := func() {
		if len(cur) >= minBlock && utf8.Valid(cur) {
			blocks = append(blocks, string(cur))
		}
		cur = nil
	}
	for _, b := range data {
		if b < 0x20 && b != '\n' && b != '\t' {
			flush()
			continue
		}
		cur = append(cur, b)
	}
	flush()

	best, bestScore := "", 0.0
	for _, block := range blocks {
		if score := scoreBlock(block); score > bestScore {
			best, bestScore = block, score
		}
	}
	return normalizeNewlines(strings.TrimSpace(best))
}

// scoreBlock favors long runs of letters, digits and spaces; a block that
// is mostly whitespace or symbol soup scores near zero.
func scoreBlock(s string) float64 {
	if s == "" {
		return 0
	}
	alnum, space, total := 0, 0, 0
	for _, r := range s {
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r):
			alnum++
		case unicode.IsSpace(r):
			space++
		}
	}
	if total == 0 {
		return 0
	}
	density := float64(alnum) / float64(total)
	if density < 0.5 {
		return 0
	}
	if space*2 > total {
		density /= 2
	}
	return density * float64(alnum)
}

// Package rtf extracts plain text from RTF documents.
//
// Conversion runs in three stages: a Tokenizer splits the byte stream into
// tokens, a group state machine decides which groups hold note text and which
// hold metadata (font tables, pictures, unknown \* destinations), and a
// resolver turns the visible tokens into characters. Malformed input never
// fails a conversion; anomalies are counted in Stats instead.
package rtf

import (
	"fmt"
	"io"
)

// Stats describes one conversion pass.
type Stats struct {
	Tokens        int
	Groups        int
	SkippedGroups int
	MaxDepth      int

	UnbalancedCloses int
	UnclosedGroups   int
	// TrailingGroups counts top-level groups opened after the document closed.
	TrailingGroups      int
	BadEscapes          int
	DanglingBackslashes int
	TruncatedBinary     int
}

// Malformed reports whether any anomaly was seen.
func (s Stats) Malformed() bool {
	return s.UnbalancedCloses > 0 || s.UnclosedGroups > 0 || s.TrailingGroups > 0 ||
		s.BadEscapes > 0 ||
		s.DanglingBackslashes > 0 || s.TruncatedBinary > 0
}

// Result is the recovered text of a document and how it was obtained.
type Result struct {
	Text  string
	Runes int
	Stats Stats
}

// Convert extracts the text of an in-memory RTF document.
func Convert(data []byte) Result {
	c := newConversion(data)
	c.run()
	text := c.out.String()
	return Result{Text: text, Runes: c.out.runes, Stats: *c.stats}
}

// ConvertReader reads r to the end and converts it. Only read errors are returned.
func ConvertReader(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read rtf: %w", err)
	}
	return Convert(data), nil
}

// Text is Convert without the statistics.
func Text(data []byte) string {
	return Convert(data).Text
}

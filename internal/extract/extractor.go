// Package extract provides text extraction from note files and note bundles.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/lula/internal/rtf"
)

// Document is the text recovered from one file.
type Document struct {
	Path   string
	Format string
	Text   string
	Runes  int
	// Stats is only populated for RTF input.
	Stats rtf.Stats
}

// Extractor extracts plain text from note files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text content of the file or bundle at path.
func (e *Extractor) Extract(path string) (string, error) {
	doc, err := e.ExtractDocument(path)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// ExtractDocument reads path and extracts its text. A .rtfd bundle directory is
// read through its TXT.rtf. Returns an error only if the file cannot be read or
// a binary format (PDF) cannot be parsed; damaged RTF still yields text.
func (e *Extractor) ExtractDocument(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		if !IsBundle(path) {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		path = BundleText(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	doc, err := e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".rtf"). Unknown extensions are
// sniffed: content starting with {\rtf is RTF, anything else plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Document, error) {
	switch ext {
	case ".rtf":
		return extractRTF(content), nil
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		return textDocument("pdf", text), nil
	case ".txt", ".text", ".md":
		return textDocument("text", extractPlain(content)), nil
	default:
		if looksLikeRTF(content) {
			return extractRTF(content), nil
		}
		return textDocument("text", extractPlain(content)), nil
	}
}

func extractRTF(content []byte) *Document {
	res := rtf.Convert(content)
	return &Document{Format: "rtf", Text: res.Text, Runes: res.Runes, Stats: res.Stats}
}

func textDocument(format, text string) *Document {
	return &Document{Format: format, Text: text, Runes: utf8.RuneCountInString(text)}
}

var rtfMagic = []byte(`{\rtf`)

func looksLikeRTF(content []byte) bool {
	trimmed := bytes.TrimLeft(content, " \t\r\n\xef\xbb\xbf")
	return bytes.HasPrefix(trimmed, rtfMagic)
}

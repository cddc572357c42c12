// Package keyword provides keyword search over recovered notes.
package keyword

import "context"

// Document is what gets indexed for one note.
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
	// Attachments holds text extracted from files stored in the note bundle.
	Attachments string `json:"attachments"`
	Source      string `json:"source"`
}

// Index defines keyword search operations.
type Index interface {
	Index(ctx context.Context, id string, doc *Document) error
	Search(ctx context.Context, query string, limit int, fuzzy bool) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of notes in the index.
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
	// Highlights maps a field name to its best matching fragment.
	Highlights map[string]string
}

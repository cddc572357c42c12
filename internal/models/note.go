// Package models defines core data structures for recovered notes, recovery runs,
// and search results.
package models

import "time"

// NoteStatus is the outcome of recovering one note.
type NoteStatus string

const (
	NoteRecovered NoteStatus = "recovered"
	NoteFailed    NoteStatus = "failed"
)

// Note is one Stickies note as recorded in the manifest.
type Note struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	// Title is the first line of the recovered text.
	Title string `json:"title" db:"title"`
	// SourcePath is the .rtfd bundle the note was recovered from.
	SourcePath    string    `json:"source_path" db:"source_path"`
	SourceSize    int64     `json:"source_size" db:"source_size"`
	SourceModTime time.Time `json:"source_mod_time" db:"source_mod_time"`
	// RTFPath is empty when the raw RTF was not copied.
	RTFPath   string     `json:"rtf_path,omitempty" db:"rtf_path"`
	TextPath  string     `json:"text_path,omitempty" db:"text_path"`
	Text      string     `json:"text,omitempty" db:"text"`
	Runes     int        `json:"runes" db:"runes"`
	Malformed bool       `json:"malformed" db:"malformed"`
	Status    NoteStatus `json:"status" db:"status"`
	Error     string     `json:"error,omitempty" db:"error"`
	RunID     string     `json:"run_id,omitempty" db:"run_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// RunStatus is the state of a recovery run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCanceled  RunStatus = "canceled"
)

// Run is one invocation of the recovery pipeline.
type Run struct {
	ID         string     `json:"id" db:"id"`
	OutputDir  string     `json:"output_dir" db:"output_dir"`
	Status     RunStatus  `json:"status" db:"status"`
	Total      int        `json:"total" db:"total"`
	Recovered  int        `json:"recovered" db:"recovered"`
	Skipped    int        `json:"skipped" db:"skipped"`
	Failed     int        `json:"failed" db:"failed"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Status summarizes the manifest and index for `lula status` and the API.
type Status struct {
	Notes        int    `json:"notes"`
	Recovered    int    `json:"recovered"`
	Failed       int    `json:"failed"`
	IndexedNotes uint64 `json:"indexed_notes"`
	LastRun      *Run   `json:"last_run,omitempty"`

	// DiskUsageBytes covers the manifest, the index and the output directory.
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

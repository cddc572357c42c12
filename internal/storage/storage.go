// Package storage defines the manifest of recovery runs and recovered notes.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/lula/internal/models"
)

// ErrNotFound is returned when a run or note does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines manifest persistence operations.
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)

	// Note operations
	UpsertNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	// ListNotes returns notes without their text, newest first. An empty
	// status lists every note.
	ListNotes(ctx context.Context, status models.NoteStatus, offset, limit int) ([]*models.Note, error)
	CountNotes(ctx context.Context, status models.NoteStatus) (int, error)
	DeleteNote(ctx context.Context, id string) error

	Close() error
}

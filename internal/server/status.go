package server

import (
	"context"
	"fmt"

	"github.com/hyperjump/lula/internal/keyword"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/internal/storage"
)

// BuildStatus summarizes the manifest and index. index may be nil.
func BuildStatus(ctx context.Context, store storage.Storage, index keyword.Index) (*models.Status, error) {
	st := &models.Status{}
	var err error
	if st.Notes, err = store.CountNotes(ctx, ""); err != nil {
		return nil, fmt.Errorf("count notes: %w", err)
	}
	if st.Recovered, err = store.CountNotes(ctx, models.NoteRecovered); err != nil {
		return nil, fmt.Errorf("count recovered notes: %w", err)
	}
	if st.Failed, err = store.CountNotes(ctx, models.NoteFailed); err != nil {
		return nil, fmt.Errorf("count failed notes: %w", err)
	}
	if index != nil {
		if st.IndexedNotes, err = index.DocCount(); err != nil {
			return nil, fmt.Errorf("count indexed notes: %w", err)
		}
	}
	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(runs) > 0 {
		st.LastRun = runs[0]
	}
	return st, nil
}

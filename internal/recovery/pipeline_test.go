package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/lula/internal/discovery"
	"github.com/hyperjump/lula/internal/models"
	"go.uber.org/zap"
)

// TestPipeline_backupToSearch runs discovery, recovery and search over a fake
// Time Machine volume.
func TestPipeline_backupToSearch(t *testing.T) {
	volumes := t.TempDir()
	snap := filepath.Join(volumes, "TM", "2024-05-06-070809.previous")
	if err := os.MkdirAll(snap, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snap, ".com.apple.timemachine.checkpoint"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	stickies := discovery.StickiesDir(filepath.Join(snap, "Macintosh HD - Data", "Users", "ann"))
	makeNote(t, stickies, "4F1A", `{\rtf1\ansi\ansicpg1252{\fonttbl\f0\fswiss Helvetica;}\f0\fs24 Passwords\par wifi: caf\'e9-guest}`)
	makeNote(t, stickies, "9C2B", `{\rtf1\ansi{\*\expandedcolortbl;;}Birthday ideas\par a red bicycle}`)

	f := newFixture(t)
	ctx := context.Background()

	res, err := discovery.NewScanner(volumes, discovery.WithLogger(zap.NewNop())).Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Notes) != 2 {
		t.Fatalf("notes found: %d", len(res.Notes))
	}

	run, err := f.recoverer().Run(ctx, res.Notes)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Recovered != 2 || run.Failed != 0 {
		t.Fatalf("run = %+v", run)
	}
	if got := readFile(t, filepath.Join(f.out, "4F1A.txt")); got != "Passwords\nwifi: café-guest" {
		t.Errorf("4F1A.txt = %q", got)
	}

	hits, err := f.index.Search(ctx, "bicycle", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	note, err := f.store.GetNote(ctx, hits[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if note.Title != "Birthday ideas" || note.Status != models.NoteRecovered {
		t.Errorf("note = %+v", note)
	}

	hits, err = f.index.Search(ctx, "pasword", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("fuzzy hits = %d", len(hits))
	}
}

package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/lula/internal/discovery"
	"github.com/hyperjump/lula/internal/fileid"
	"github.com/hyperjump/lula/internal/keyword"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/internal/storage"
	"go.uber.org/zap"
)

func makeNote(t *testing.T, dir, name, body string) discovery.Note {
	t.Helper()
	bundle := filepath.Join(dir, name+".rtfd")
	if err := os.MkdirAll(bundle, 0755); err != nil {
		t.Fatal(err)
	}
	rtfPath := filepath.Join(bundle, "TXT.rtf")
	if err := os.WriteFile(rtfPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return discovery.Note{Name: name, BundlePath: bundle, RTFPath: rtfPath}
}

type fixture struct {
	out   string
	store *storage.SQLiteStorage
	index *keyword.BleveIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "manifest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	index, err := keyword.NewBleveIndex(filepath.Join(dir, "index"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = index.Close() })
	return &fixture{out: filepath.Join(dir, "recovered"), store: store, index: index}
}

func (f *fixture) recoverer(opts ...Option) *Recoverer {
	opts = append([]Option{WithStorage(f.store), WithIndex(f.index), WithLogger(zap.NewNop())}, opts...)
	return New(f.out, opts...)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRecoverer_Run(t *testing.T) {
	src := t.TempDir()
	f := newFixture(t)
	notes := []discovery.Note{
		makeNote(t, src, "A", `{\rtf1\ansi{\fonttbl\f0 Helvetica;}\f0 Groceries\par milk}`),
		makeNote(t, src, "B", `{\rtf1 Call the dentist}`),
		{Name: "Missing", BundlePath: filepath.Join(src, "Missing.rtfd"), RTFPath: filepath.Join(src, "Missing.rtfd", "TXT.rtf")},
	}

	run, err := f.recoverer(WithWorkers(2)).Run(context.Background(), notes)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != models.RunCompleted || run.Total != 3 || run.Recovered != 2 || run.Failed != 1 || run.Skipped != 0 {
		t.Errorf("run = %+v", run)
	}

	if got := readFile(t, filepath.Join(f.out, "A.txt")); got != "Groceries\nmilk" {
		t.Errorf("A.txt = %q", got)
	}
	if got := readFile(t, filepath.Join(f.out, "A.rtf")); got != readFile(t, notes[0].RTFPath) {
		t.Errorf("A.rtf is not a copy of the source: %q", got)
	}
	if _, err := os.Stat(filepath.Join(f.out, "Missing.txt")); !os.IsNotExist(err) {
		t.Errorf("failed note should leave no output, stat err = %v", err)
	}

	ctx := context.Background()
	a, err := f.store.GetNote(ctx, fileid.NoteID(notes[0].BundlePath))
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != models.NoteRecovered || a.Title != "Groceries" || a.Text != "Groceries\nmilk" || a.RunID != run.ID {
		t.Errorf("manifest note = %+v", a)
	}
	missing, err := f.store.GetNote(ctx, fileid.NoteID(notes[2].BundlePath))
	if err != nil {
		t.Fatal(err)
	}
	if missing.Status != models.NoteFailed || missing.Error == "" {
		t.Errorf("failed note = %+v", missing)
	}

	stored, err := f.store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.RunCompleted || stored.FinishedAt == nil || stored.Recovered != 2 {
		t.Errorf("stored run = %+v", stored)
	}

	hits, err := f.index.Search(ctx, "dentist", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != fileid.NoteID(notes[1].BundlePath) {
		t.Errorf("search hits = %v", hits)
	}
}

func TestRecoverer_Run_skipsUnchanged(t *testing.T) {
	src := t.TempDir()
	f := newFixture(t)
	notes := []discovery.Note{
		makeNote(t, src, "A", `{\rtf1 one}`),
		makeNote(t, src, "B", `{\rtf1 two}`),
	}
	ctx := context.Background()
	if _, err := f.recoverer().Run(ctx, notes); err != nil {
		t.Fatal(err)
	}

	// Edit B; a fresh Recoverer sees only the manifest.
	if err := os.WriteFile(notes[1].RTFPath, []byte(`{\rtf1 two, edited}`), 0644); err != nil {
		t.Fatal(err)
	}
	run, err := f.recoverer().Run(ctx, notes)
	if err != nil {
		t.Fatal(err)
	}
	if run.Skipped != 1 || run.Recovered != 1 {
		t.Errorf("second run = %+v", run)
	}
	if got := readFile(t, filepath.Join(f.out, "B.txt")); got != "two, edited" {
		t.Errorf("B.txt = %q", got)
	}
	if _, err := os.Stat(filepath.Join(f.out, "B-2.txt")); !os.IsNotExist(err) {
		t.Error("re-recovered note should keep its output name")
	}

	runs, err := f.store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestRecoverer_Run_reconvertsWhenOutputDeleted(t *testing.T) {
	src := t.TempDir()
	f := newFixture(t)
	notes := []discovery.Note{makeNote(t, src, "A", `{\rtf1 one}`)}
	ctx := context.Background()
	if _, err := f.recoverer().Run(ctx, notes); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(f.out, "A.txt")); err != nil {
		t.Fatal(err)
	}
	run, err := f.recoverer().Run(ctx, notes)
	if err != nil {
		t.Fatal(err)
	}
	if run.Recovered != 1 {
		t.Errorf("run = %+v", run)
	}
}

func TestRecoverer_Run_duplicateNames(t *testing.T) {
	f := newFixture(t)
	notes := []discovery.Note{
		makeNote(t, t.TempDir(), "Same", `{\rtf1 first}`),
		makeNote(t, t.TempDir(), "Same", `{\rtf1 second}`),
		makeNote(t, t.TempDir(), "Same", `{\rtf1 third}`),
	}
	if _, err := f.recoverer(WithWorkers(3)).Run(context.Background(), notes); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"Same.txt": "first", "Same-2.txt": "second", "Same-3.txt": "third"}
	for name, text := range want {
		if got := readFile(t, filepath.Join(f.out, name)); got != text {
			t.Errorf("%s = %q, want %q", name, got, text)
		}
	}
}

func TestRecoverer_Run_failedNoteKeepsName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := t.TempDir()
	bundle := filepath.Join(first, "Same.rtfd")
	broken := discovery.Note{Name: "Same", BundlePath: bundle, RTFPath: filepath.Join(bundle, "TXT.rtf")}
	if _, err := f.recoverer().Run(ctx, []discovery.Note{broken}); err != nil {
		t.Fatal(err)
	}
	rec, err := f.store.GetNote(ctx, fileid.NoteID(bundle))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != models.NoteFailed || rec.TextPath != filepath.Join(f.out, "Same.txt") {
		t.Fatalf("failed note = %+v", rec)
	}

	// A newcomer with the same name is listed first; the earlier note keeps
	// the name it was given.
	notes := []discovery.Note{
		makeNote(t, t.TempDir(), "Same", `{\rtf1 newcomer}`),
		makeNote(t, first, "Same", `{\rtf1 original}`),
	}
	run, err := f.recoverer().Run(ctx, notes)
	if err != nil {
		t.Fatal(err)
	}
	if run.Recovered != 2 {
		t.Errorf("run = %+v", run)
	}
	want := map[string]string{"Same.txt": "original", "Same-2.txt": "newcomer"}
	for name, text := range want {
		if got := readFile(t, filepath.Join(f.out, name)); got != text {
			t.Errorf("%s = %q, want %q", name, got, text)
		}
	}
}

func TestRecoverer_Run_withoutCopyOrStorage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	notes := []discovery.Note{makeNote(t, t.TempDir(), "A", `{\rtf1 text}`)}
	r := New(out, WithCopyRTF(false))

	for i := 0; i < 2; i++ {
		run, err := r.Run(context.Background(), notes)
		if err != nil {
			t.Fatal(err)
		}
		if run.Recovered != 1 {
			t.Errorf("run %d = %+v", i, run)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "A.rtf")); !os.IsNotExist(err) {
		t.Error("RTF should not be copied when disabled")
	}
	if got := readFile(t, filepath.Join(out, "A.txt")); got != "text" {
		t.Errorf("A.txt = %q", got)
	}
}

func TestRecoverer_Run_indexesAttachments(t *testing.T) {
	f := newFixture(t)
	note := makeNote(t, t.TempDir(), "A", `{\rtf1 see attachment}`)
	if err := os.WriteFile(filepath.Join(note.BundlePath, "pasted.txt"), []byte("invoice 4471"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.recoverer(WithAttachments(true)).Run(context.Background(), []discovery.Note{note}); err != nil {
		t.Fatal(err)
	}
	hits, err := f.index.Search(context.Background(), "invoice", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("attachment text should be searchable, got %d hits", len(hits))
	}
}

func TestRecoverer_Run_canceled(t *testing.T) {
	f := newFixture(t)
	notes := []discovery.Note{makeNote(t, t.TempDir(), "A", `{\rtf1 text}`)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := f.recoverer().Run(ctx, notes)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if run.Status != models.RunCanceled {
		t.Errorf("status = %s", run.Status)
	}
}

func TestRecoverer_Run_unwritableOutput(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	r := New(filepath.Join(blocker, "out"))
	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Error("expected error when output directory cannot be created")
	}
}

func TestRecoverer_RecoverFileAndForget(t *testing.T) {
	f := newFixture(t)
	note := makeNote(t, t.TempDir(), "Live", `{\rtf1 draft}`)
	r := f.recoverer()
	ctx := context.Background()

	rec, err := r.RecoverFile(ctx, note)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "draft" || rec.TextPath != filepath.Join(f.out, "Live.txt") {
		t.Errorf("note = %+v", rec)
	}

	if err := os.WriteFile(note.RTFPath, []byte(`{\rtf1 final}`), 0644); err != nil {
		t.Fatal(err)
	}
	rec, err = r.RecoverFile(ctx, note)
	if err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, rec.TextPath); got != "final" {
		t.Errorf("text after edit = %q", got)
	}

	if err := r.Forget(ctx, note.BundlePath); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.GetNote(ctx, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetNote after Forget: err = %v", err)
	}
	if _, err := os.Stat(rec.TextPath); err != nil {
		t.Errorf("Forget should keep recovered files: %v", err)
	}
}

func TestRecoverer_RecoverFile_failure(t *testing.T) {
	f := newFixture(t)
	bundle := filepath.Join(t.TempDir(), "Gone.rtfd")
	note := discovery.Note{Name: "Gone", BundlePath: bundle, RTFPath: filepath.Join(bundle, "TXT.rtf")}
	rec, err := f.recoverer().RecoverFile(context.Background(), note)
	if err == nil {
		t.Fatal("expected error")
	}
	if rec == nil || rec.Status != models.NoteFailed {
		t.Errorf("note = %+v", rec)
	}
}

func TestTitle(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	tests := []struct {
		name string
		text string
		want string
	}{
		{"first line", "Groceries\nmilk", "Groceries"},
		{"skips blank lines", "\n  \n\tTodo  \nx", "Todo"},
		{"empty", "", ""},
		{"truncates", long, long[:maxTitleRunes]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.text); got != tt.want {
				t.Errorf("Title = %q, want %q", got, tt.want)
			}
		})
	}
}

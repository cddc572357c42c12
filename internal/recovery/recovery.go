// Package recovery copies discovered Stickies notes out of a backup, converts
// them to plain text, and records the result in the manifest and search index.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/lula/internal/convert"
	"github.com/hyperjump/lula/internal/discovery"
	"github.com/hyperjump/lula/internal/extract"
	"github.com/hyperjump/lula/internal/fileid"
	"github.com/hyperjump/lula/internal/keyword"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers = 4
	maxTitleRunes  = 80
)

// Recoverer runs the recovery pipeline. Each worker runs its own conversion;
// the only shared state is the output name registry and the run counters.
type Recoverer struct {
	outputDir        string
	converter        *convert.Converter
	extractor        *extract.Extractor
	store            storage.Storage
	index            keyword.Index
	workers          int
	copyRTF          bool
	indexAttachments bool
	logger           *zap.Logger

	mu     sync.Mutex
	byID   map[string]string // note ID -> output base path (no extension)
	owners map[string]string // output base path -> note ID
}

// Option configures a Recoverer.
type Option func(*Recoverer)

// WithLogger sets the logger. Failed notes are logged at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recoverer) { r.logger = l }
}

// WithStorage records runs and notes in a manifest. Without one, every note is
// converted on every run.
func WithStorage(s storage.Storage) Option {
	return func(r *Recoverer) { r.store = s }
}

// WithIndex indexes recovered text for search.
func WithIndex(idx keyword.Index) Option {
	return func(r *Recoverer) { r.index = idx }
}

// WithConverter replaces the default converter.
func WithConverter(c *convert.Converter) Option {
	return func(r *Recoverer) { r.converter = c }
}

// WithWorkers sets how many notes are converted at once.
func WithWorkers(n int) Option {
	return func(r *Recoverer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithCopyRTF controls whether TXT.rtf is copied next to the text output.
func WithCopyRTF(copyRTF bool) Option {
	return func(r *Recoverer) { r.copyRTF = copyRTF }
}

// WithAttachments indexes the text of PDFs and text files stored in the bundle.
func WithAttachments(enabled bool) Option {
	return func(r *Recoverer) { r.indexAttachments = enabled }
}

// New returns a Recoverer writing into outputDir.
func New(outputDir string, opts ...Option) *Recoverer {
	r := &Recoverer{
		outputDir: outputDir,
		extractor: extract.NewExtractor(),
		workers:   defaultWorkers,
		copyRTF:   true,
		logger:    zap.NewNop(),
		byID:      make(map[string]string),
		owners:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.converter == nil {
		r.converter = convert.New(convert.WithLogger(r.logger), convert.WithExtractor(r.extractor))
	}
	return r
}

// outcome is what happened to one note in a run.
type outcome int

const (
	outcomeRecovered outcome = iota
	outcomeSkipped
	outcomeFailed
)

// job is one note scheduled in a run.
type job struct {
	note discovery.Note
	id   string
	prev *models.Note
	base string
}

// Run recovers notes. A note that cannot be copied or converted is logged by
// name, recorded as failed and does not stop the others. Run only fails when
// the output directory or the manifest is unusable, or ctx is cancelled; the
// returned run is valid in every case.
func (r *Recoverer) Run(ctx context.Context, notes []discovery.Note) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.NewString(),
		OutputDir: r.outputDir,
		Status:    models.RunRunning,
		Total:     len(notes),
		StartedAt: time.Now(),
	}
	if err := ctx.Err(); err != nil {
		run.Status = models.RunCanceled
		return run, err
	}
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return run, fmt.Errorf("create output directory: %w", err)
	}
	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return run, fmt.Errorf("record run: %w", err)
		}
	}
	r.logger.Info("recovery started",
		zap.String("run_id", run.ID),
		zap.Int("notes", len(notes)),
		zap.String("output_dir", r.outputDir),
	)

	jobs, err := r.plan(ctx, notes)
	if err != nil {
		return run, err
	}

	var countMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		j := j
		g.Go(func() error {
			res, err := r.process(gctx, run.ID, j)
			if err != nil {
				return err
			}
			countMu.Lock()
			switch res {
			case outcomeRecovered:
				run.Recovered++
			case outcomeSkipped:
				run.Skipped++
			case outcomeFailed:
				run.Failed++
			}
			countMu.Unlock()
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	run.Status = models.RunCompleted
	if runErr != nil {
		run.Status = models.RunCanceled
	}
	if r.store != nil {
		if err := r.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("record run: %w", err))
		}
	}
	r.logger.Info("recovery finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("recovered", run.Recovered),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed),
	)
	return run, runErr
}

// plan looks up each note's previous manifest entry and assigns output names.
// Names kept from earlier runs are claimed first so a new note can never take
// over an existing note's files.
func (r *Recoverer) plan(ctx context.Context, notes []discovery.Note) ([]job, error) {
	jobs := make([]job, len(notes))
	for i, n := range notes {
		prev, err := r.previous(ctx, fileid.NoteID(n.BundlePath))
		if err != nil {
			return nil, err
		}
		jobs[i] = job{note: n, id: fileid.NoteID(n.BundlePath), prev: prev}
	}
	for i := range jobs {
		if jobs[i].prev != nil && jobs[i].prev.TextPath != "" {
			jobs[i].base = r.reserve(jobs[i].id, jobs[i].note.Name, previousBase(jobs[i].prev))
		}
	}
	for i := range jobs {
		if jobs[i].base == "" {
			jobs[i].base = r.reserve(jobs[i].id, jobs[i].note.Name, "")
		}
	}
	return jobs, nil
}

// RecoverFile recovers a single note outside a run, as the watcher does when
// a live note changes. The note is converted even if it looks unchanged.
func (r *Recoverer) RecoverFile(ctx context.Context, note discovery.Note) (*models.Note, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	id := fileid.NoteID(note.BundlePath)
	prev, err := r.previous(ctx, id)
	if err != nil {
		return nil, err
	}
	j := job{note: note, id: id, base: r.reserve(id, note.Name, previousBase(prev))}
	rec, res, err := r.recoverOne(ctx, "", j)
	if err != nil {
		return nil, err
	}
	if res == outcomeFailed {
		return rec, fmt.Errorf("recover %s: %s", note.Name, rec.Error)
	}
	return rec, nil
}

// Forget removes a note that no longer exists from the manifest and index.
// Recovered files are kept.
func (r *Recoverer) Forget(ctx context.Context, bundlePath string) error {
	id := fileid.NoteID(bundlePath)
	if r.store != nil {
		if err := r.store.DeleteNote(ctx, id); err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
	}
	if r.index != nil {
		if err := r.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete from index: %w", err)
		}
	}
	return nil
}

func (r *Recoverer) previous(ctx context.Context, id string) (*models.Note, error) {
	if r.store == nil {
		return nil, nil
	}
	prev, err := r.store.GetNote(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return prev, nil
}

func previousBase(prev *models.Note) string {
	if prev == nil || prev.TextPath == "" {
		return ""
	}
	return strings.TrimSuffix(prev.TextPath, filepath.Ext(prev.TextPath))
}

// reserve returns the output base path for note id, claiming a free one when
// the note has none yet: preferred first, then name, name-2, name-3...
func (r *Recoverer) reserve(id, name, preferred string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if base, ok := r.byID[id]; ok {
		return base
	}
	if preferred != "" && filepath.Dir(preferred) == filepath.Clean(r.outputDir) {
		if owner, taken := r.owners[preferred]; !taken || owner == id {
			r.claim(id, preferred)
			return preferred
		}
	}
	for i := 1; ; i++ {
		candidate := filepath.Join(r.outputDir, name)
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", candidate, i)
		}
		if _, taken := r.owners[candidate]; !taken {
			r.claim(id, candidate)
			return candidate
		}
	}
}

func (r *Recoverer) claim(id, base string) {
	r.byID[id] = base
	r.owners[base] = id
}

// process handles one job in a run. Only manifest errors are returned.
func (r *Recoverer) process(ctx context.Context, runID string, j job) (outcome, error) {
	if unchanged(j) {
		r.logger.Debug("note unchanged, skipping", zap.String("note", j.note.Name))
		return outcomeSkipped, nil
	}
	_, res, err := r.recoverOne(ctx, runID, j)
	return res, err
}

// unchanged reports whether the note was already recovered from an identical
// source and its output is still there.
func unchanged(j job) bool {
	if j.prev == nil || j.prev.Status != models.NoteRecovered {
		return false
	}
	info, err := os.Stat(j.note.RTFPath)
	if err != nil {
		return false
	}
	if info.Size() != j.prev.SourceSize || !info.ModTime().Equal(j.prev.SourceModTime) {
		return false
	}
	_, err = os.Stat(j.prev.TextPath)
	return err == nil
}

// recoverOne copies and converts one note and records the result.
func (r *Recoverer) recoverOne(ctx context.Context, runID string, j job) (*models.Note, outcome, error) {
	rec := &models.Note{
		ID:         j.id,
		Name:       j.note.Name,
		SourcePath: j.note.BundlePath,
		RunID:      runID,
	}
	if j.prev != nil {
		rec.CreatedAt = j.prev.CreatedAt
	}

	res := outcomeRecovered
	var attachments string
	if err := r.recoverNote(j, rec); err != nil {
		r.logger.Warn("Error converting note from rtf to txt",
			zap.String("note", j.note.Name),
			zap.String("path", j.note.RTFPath),
			zap.Error(err),
		)
		rec.Status = models.NoteFailed
		rec.Error = err.Error()
		// Keep the reserved name so a later run writes to the same file.
		rec.TextPath = j.base + ".txt"
		res = outcomeFailed
	} else {
		rec.Status = models.NoteRecovered
		if r.indexAttachments {
			attachments = r.attachmentText(j.note.BundlePath)
		}
	}

	if r.store != nil {
		if err := r.store.UpsertNote(ctx, rec); err != nil {
			return rec, res, fmt.Errorf("record note %s: %w", j.note.Name, err)
		}
	}
	if r.index != nil && res == outcomeRecovered {
		doc := &keyword.Document{
			Name:        rec.Title,
			Text:        rec.Text,
			Attachments: attachments,
			Source:      rec.SourcePath,
		}
		if err := r.index.Index(ctx, rec.ID, doc); err != nil {
			r.logger.Warn("failed to index note", zap.String("note", j.note.Name), zap.Error(err))
		}
	}
	return rec, res, nil
}

// recoverNote fills rec from the source: stat, optional RTF copy, conversion.
func (r *Recoverer) recoverNote(j job, rec *models.Note) error {
	info, err := os.Stat(j.note.RTFPath)
	if err != nil {
		return fmt.Errorf("%w: %w", convert.ErrInputUnavailable, err)
	}
	rec.SourceSize = info.Size()
	rec.SourceModTime = info.ModTime()

	if r.copyRTF {
		rtfPath := j.base + ".rtf"
		if err := copyFile(j.note.RTFPath, rtfPath); err != nil {
			return err
		}
		rec.RTFPath = rtfPath
		r.logger.Debug("copied note", zap.String("from", j.note.RTFPath), zap.String("to", rtfPath))
	}

	report, err := r.converter.ConvertFile(j.note.RTFPath, j.base+".txt")
	if err != nil {
		return err
	}
	rec.TextPath = report.OutputPath
	rec.Text = report.Text
	rec.Runes = report.Runes
	rec.Malformed = report.Stats.Malformed()
	rec.Title = Title(report.Text)
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: %w", convert.ErrInputUnavailable, err)
	}
	if err := convert.WriteFileAtomic(dst, data); err != nil {
		return fmt.Errorf("%w: %w", convert.ErrOutputUnwritable, err)
	}
	return nil
}

// attachmentText extracts the text of every readable attachment in bundle.
// Attachments that fail are logged and left out.
func (r *Recoverer) attachmentText(bundle string) string {
	paths, err := extract.Attachments(bundle)
	if err != nil {
		r.logger.Debug("cannot list attachments", zap.String("bundle", bundle), zap.Error(err))
		return ""
	}
	var parts []string
	for _, p := range paths {
		if !extract.Extractable(p) {
			continue
		}
		text, err := r.extractor.Extract(p)
		if err != nil {
			r.logger.Debug("cannot extract attachment", zap.String("path", p), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Title returns the first non-blank line of text, shortened for display.
func Title(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > maxTitleRunes {
			return string(runes[:maxTitleRunes])
		}
		return line
	}
	return ""
}

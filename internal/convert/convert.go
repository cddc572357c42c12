// Package convert turns one note file into one plain-text file.
package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/lula/internal/extract"
	"github.com/hyperjump/lula/internal/rtf"
	"go.uber.org/zap"
)

var (
	// ErrInputUnavailable means the input path was missing or could not be read.
	ErrInputUnavailable = errors.New("input unavailable")
	// ErrOutputUnwritable means the output file could not be created or written.
	ErrOutputUnwritable = errors.New("output unwritable")
)

// Report describes a finished conversion.
type Report struct {
	InputPath  string
	OutputPath string
	// Text is what was written to OutputPath.
	Text     string
	Bytes    int
	Runes    int
	Stats    rtf.Stats
	Duration time.Duration
}

// Converter writes the recovered text of a note to a file. It holds no
// per-conversion state, so one Converter may be shared by many goroutines.
type Converter struct {
	extractor *extract.Extractor
	logger    *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets a logger for debug output (anomalies, written files).
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(c *Converter) { c.extractor = e }
}

// New returns a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile reads the note at inputPath and writes its text to outputPath,
// creating or replacing it. Errors wrap ErrInputUnavailable or ErrOutputUnwritable;
// damaged markup is never an error. On failure nothing is left at outputPath.
func (c *Converter) ConvertFile(inputPath, outputPath string) (*Report, error) {
	if inputPath == "" {
		return nil, fmt.Errorf("%w: no input path", ErrInputUnavailable)
	}
	if outputPath == "" {
		return nil, fmt.Errorf("%w: no output path", ErrInputUnavailable)
	}
	start := time.Now()

	doc, err := c.extractor.ExtractDocument(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}
	if err := WriteFileAtomic(outputPath, []byte(doc.Text)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}

	report := &Report{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Text:       doc.Text,
		Bytes:      len(doc.Text),
		Runes:      doc.Runes,
		Stats:      doc.Stats,
		Duration:   time.Since(start),
	}
	if doc.Stats.Malformed() {
		c.logger.Debug("recovered text from damaged markup",
			zap.String("input", inputPath),
			zap.Int("unbalanced_closes", doc.Stats.UnbalancedCloses),
			zap.Int("unclosed_groups", doc.Stats.UnclosedGroups),
			zap.Int("trailing_groups", doc.Stats.TrailingGroups),
			zap.Int("bad_escapes", doc.Stats.BadEscapes),
			zap.Int("truncated_binary", doc.Stats.TruncatedBinary),
		)
	}
	c.logger.Debug("converted",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("runes", report.Runes),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("write %s: %w", tmpName, err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", tmpName, err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

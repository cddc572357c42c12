package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/lula/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Recovery workers write concurrently; one connection serializes them
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		output_dir TEXT NOT NULL,
		status TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		recovered INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		source_path TEXT NOT NULL,
		source_size INTEGER NOT NULL DEFAULT 0,
		source_mtime_ns INTEGER NOT NULL DEFAULT 0,
		rtf_path TEXT NOT NULL DEFAULT '',
		text_path TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		runes INTEGER NOT NULL DEFAULT 0,
		malformed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		run_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(status);
	CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateRun inserts a run. StartedAt is set when zero.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, output_dir, status, total, recovered, skipped, failed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.OutputDir, string(run.Status), run.Total, run.Recovered, run.Skipped, run.Failed, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of run and stamps FinishedAt.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *models.Run) error {
	now := time.Now()
	run.FinishedAt = &now
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total = ?, recovered = ?, skipped = ?, failed = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Total, run.Recovered, run.Skipped, run.Failed, now, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, output_dir, status, total, recovered, skipped, failed, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var status string
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.OutputDir, &status, &run.Total, &run.Recovered,
		&run.Skipped, &run.Failed, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// GetRun returns a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpsertNote inserts note or replaces the stored row with the same ID.
// CreatedAt survives updates.
func (s *SQLiteStorage) UpsertNote(ctx context.Context, note *models.Note) error {
	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, name, title, source_path, source_size, source_mtime_ns, rtf_path, text_path,
			text, runes, malformed, status, error, run_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			source_path = excluded.source_path,
			source_size = excluded.source_size,
			source_mtime_ns = excluded.source_mtime_ns,
			rtf_path = excluded.rtf_path,
			text_path = excluded.text_path,
			text = excluded.text,
			runes = excluded.runes,
			malformed = excluded.malformed,
			status = excluded.status,
			error = excluded.error,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`,
		note.ID, note.Name, note.Title, note.SourcePath, note.SourceSize, note.SourceModTime.UnixNano(),
		note.RTFPath, note.TextPath, note.Text, note.Runes, note.Malformed,
		string(note.Status), note.Error, note.RunID, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

// GetNote returns a note, including its text, by ID.
func (s *SQLiteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, title, source_path, source_size, source_mtime_ns, rtf_path, text_path,
			text, runes, malformed, status, error, run_id, created_at, updated_at
		 FROM notes WHERE id = ?`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

func scanNote(row rowScanner) (*models.Note, error) {
	var note models.Note
	var mtime int64
	var status string
	if err := row.Scan(&note.ID, &note.Name, &note.Title, &note.SourcePath, &note.SourceSize, &mtime,
		&note.RTFPath, &note.TextPath, &note.Text, &note.Runes, &note.Malformed,
		&status, &note.Error, &note.RunID, &note.CreatedAt, &note.UpdatedAt); err != nil {
		return nil, err
	}
	note.SourceModTime = time.Unix(0, mtime)
	note.Status = models.NoteStatus(status)
	return &note, nil
}

// ListNotes returns notes with offset and limit, most recently updated first.
func (s *SQLiteStorage) ListNotes(ctx context.Context, status models.NoteStatus, offset, limit int) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, title, source_path, source_size, source_mtime_ns, rtf_path, text_path,
			'', runes, malformed, status, error, run_id, created_at, updated_at
		 FROM notes WHERE (? = '' OR status = ?)
		 ORDER BY updated_at DESC, name LIMIT ? OFFSET ?`,
		string(status), string(status), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// CountNotes returns the number of notes with status, or all notes when status is empty.
func (s *SQLiteStorage) CountNotes(ctx context.Context, status models.NoteStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE (? = '' OR status = ?)`,
		string(status), string(status),
	).Scan(&count)
	return count, err
}

// DeleteNote removes a note by ID.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Package discovery finds Stickies notes inside Time Machine backups.
//
// Two backup layouts are recognized. Modern APFS backups are snapshot
// directories named *.inprogress, *.previous or *.interrupted that carry a
// .com.apple.timemachine.checkpoint marker; each of their subdirectories is a
// backed-up volume. Legacy HFS+ backups live under Backups.backupdb/<machine>/<date>/<volume>.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/lula/internal/extract"
	"go.uber.org/zap"
)

const (
	checkpointName  = ".com.apple.timemachine.checkpoint"
	legacyDBPrefix  = "Backups.backupdb"
	stickiesSubpath = "Library/Containers/com.apple.stickies/Data/Library/Stickies"
)

var snapshotSuffixes = []string{".inprogress", ".previous", ".interrupted"}

// Note is a Stickies note bundle found on disk.
type Note struct {
	// Name is the bundle name without .rtfd (usually a UUID).
	Name       string `json:"name"`
	BundlePath string `json:"bundle_path"`
	RTFPath    string `json:"rtf_path"`
}

// Result is everything one scan found, stage by stage.
type Result struct {
	ModernBackups []string `json:"modern_backups"`
	LegacyBackups []string `json:"legacy_backups"`
	BackupRoots   []string `json:"backup_roots"`
	UserFolders   []string `json:"user_folders"`
	StickiesDirs  []string `json:"stickies_dirs"`
	Notes         []Note   `json:"notes"`
}

// Scanner walks a volumes root (normally /Volumes) for Stickies notes.
type Scanner struct {
	root   string
	logger *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets a logger for unreadable entries and progress.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// NewScanner returns a Scanner rooted at volumesRoot.
func NewScanner(volumesRoot string, opts ...Option) *Scanner {
	s := &Scanner{root: volumesRoot, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs every stage in order. A stage that finds nothing leaves the later
// stages empty; that is reported through Result, not as an error.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	res := &Result{}
	res.ModernBackups, res.LegacyBackups = s.BackupDirs()
	s.logger.Info("backup directories found",
		zap.Int("modern", len(res.ModernBackups)),
		zap.Int("legacy", len(res.LegacyBackups)),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.BackupRoots = s.BackupRoots(res.ModernBackups, res.LegacyBackups)
	res.UserFolders = s.UserFolders(res.BackupRoots)
	res.StickiesDirs = s.StickiesDirs(res.UserFolders)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Notes = s.Notes(res.StickiesDirs)
	s.logger.Info("scan finished",
		zap.Int("backup_roots", len(res.BackupRoots)),
		zap.Int("user_folders", len(res.UserFolders)),
		zap.Int("stickies_dirs", len(res.StickiesDirs)),
		zap.Int("notes", len(res.Notes)),
	)
	return res, nil
}

// BackupDirs returns the modern snapshot directories and legacy
// Backups.backupdb directories found within two levels of the volumes root.
func (s *Scanner) BackupDirs() (modern, legacy []string) {
	s.walkDirs(s.root, 2, func(path string, d fs.DirEntry) {
		name := d.Name()
		if strings.HasPrefix(name, legacyDBPrefix) {
			legacy = append(legacy, path)
		}
		if isSnapshotName(name) && exists(filepath.Join(path, checkpointName)) {
			modern = append(modern, path)
		}
	})
	return modern, legacy
}

func isSnapshotName(name string) bool {
	for _, suffix := range snapshotSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// BackupRoots returns the backed-up volume directories: the direct children of
// each modern snapshot, and the <machine>/<date>/<volume> directories of each
// legacy backup database.
func (s *Scanner) BackupRoots(modern, legacy []string) []string {
	var roots []string
	for _, dir := range modern {
		roots = append(roots, s.subdirs(dir)...)
	}
	for _, db := range legacy {
		for _, machine := range s.subdirs(db) {
			for _, dated := range s.subdirs(machine) {
				roots = append(roots, s.subdirs(dated)...)
			}
		}
	}
	return roots
}

// UserFolders returns every <root>/Users/<name> directory.
func (s *Scanner) UserFolders(roots []string) []string {
	var users []string
	for _, root := range roots {
		users = append(users, s.subdirs(filepath.Join(root, "Users"))...)
	}
	return users
}

// StickiesDir returns the Stickies container path inside a user folder.
func StickiesDir(userFolder string) string {
	return filepath.Join(userFolder, filepath.FromSlash(stickiesSubpath))
}

// StickiesDirs returns the Stickies containers that exist in the given user folders.
func (s *Scanner) StickiesDirs(users []string) []string {
	var dirs []string
	for _, user := range users {
		dir := StickiesDir(user)
		if exists(dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Notes returns the .rtfd bundles within two levels of each Stickies directory
// that hold a TXT.rtf body.
func (s *Scanner) Notes(dirs []string) []Note {
	var notes []Note
	for _, dir := range dirs {
		s.walkDirs(dir, 2, func(path string, d fs.DirEntry) {
			if !extract.IsBundle(path) || !extract.HasBundleText(path) {
				return
			}
			s.logger.Debug("note found", zap.String("path", path))
			notes = append(notes, Note{
				Name:       extract.BundleName(path),
				BundlePath: path,
				RTFPath:    extract.BundleText(path),
			})
		})
	}
	return notes
}

// walkDirs calls fn for every directory below root down to maxDepth levels.
// Unreadable entries are logged and skipped.
func (s *Scanner) walkDirs(root string, maxDepth int, fn func(path string, d fs.DirEntry)) {
	base := depth(filepath.Join(root, "x")) - 1
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("cannot read entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		fn(path, d)
		if depth(path)-base >= maxDepth {
			return fs.SkipDir
		}
		return nil
	})
}

// subdirs lists the immediate subdirectories of dir. A missing dir yields nothing.
func (s *Scanner) subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cannot read directory", zap.String("path", dir), zap.Error(err))
		}
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

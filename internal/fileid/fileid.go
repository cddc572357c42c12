// Package fileid provides deterministic note IDs derived from source paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "note:"

// NoteID returns a stable ID for the note bundle at path. The same bundle path
// always yields the same ID, so repeated runs and the watcher update one manifest
// row instead of adding new ones.
func NoteID(bundlePath string) string {
	normalized := filepath.Clean(bundlePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// Valid reports whether id has the shape NoteID produces.
func Valid(id string) bool {
	if len(id) != len(prefix)+32 || id[:len(prefix)] != prefix {
		return false
	}
	_, err := hex.DecodeString(id[len(prefix):])
	return err == nil
}

// Package cli formats lula command output for terminals and scripts.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/lula/internal/discovery"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const previewLen = 200

var highlightMarks = strings.NewReplacer("<mark>", "[", "</mark>", "]")

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d notes in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
		writeNoteHeader(w, result.Note)
		if hl := result.Highlights["text"]; hl != "" {
			fmt.Fprintf(w, "\n%s\n", highlightMarks.Replace(utils.Preview(hl, previewLen)))
		} else if hl := result.Highlights["attachments"]; hl != "" {
			fmt.Fprintf(w, "\nattachment: %s\n", highlightMarks.Replace(utils.Preview(hl, previewLen)))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeNoteHeader(w io.Writer, note *models.Note) {
	if note == nil {
		return
	}
	fmt.Fprintf(w, "ID: %s\n", note.ID)
	if note.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", note.Title)
	}
	fmt.Fprintf(w, "Source: %s\n", note.SourcePath)
	if note.TextPath != "" && note.Status == models.NoteRecovered {
		fmt.Fprintf(w, "Text: %s\n", note.TextPath)
	}
}

// WriteNotes writes one page of the manifest.
func WriteNotes(w io.Writer, notes []*models.Note, total int, format OutputFormat) error {
	if format == OutputJSON {
		if notes == nil {
			notes = []*models.Note{}
		}
		return writeJSON(w, map[string]interface{}{"notes": notes, "total": total})
	}
	for _, n := range notes {
		label := n.Title
		if label == "" {
			label = n.Name
		}
		flag := ""
		if n.Malformed {
			flag = " (malformed)"
		}
		fmt.Fprintf(w, "%-9s %s  %s%s\n", n.Status, n.ID, utils.Truncate(label, 60), flag)
		if n.Status == models.NoteFailed && n.Error != "" {
			fmt.Fprintf(w, "          error: %s\n", n.Error)
		}
	}
	fmt.Fprintf(w, "\nShowing %d of %d notes\n", len(notes), total)
	return nil
}

// WriteNote writes a single note including its recovered text.
func WriteNote(w io.Writer, note *models.Note, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, note)
	}
	writeNoteHeader(w, note)
	fmt.Fprintf(w, "Status: %s\n", note.Status)
	if note.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", note.Error)
	}
	if !note.SourceModTime.IsZero() {
		fmt.Fprintf(w, "Modified: %s\n", note.SourceModTime.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Characters: %d\n", note.Runes)
	if note.Text != "" {
		fmt.Fprintf(w, "\n%s\n", note.Text)
	}
	return nil
}

// WriteRun writes the summary of a recovery run.
func WriteRun(w io.Writer, run *models.Run, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, run)
	}
	fmt.Fprintf(w, "Run %s %s\n", run.ID, run.Status)
	fmt.Fprintf(w, "  output:    %s\n", run.OutputDir)
	fmt.Fprintf(w, "  notes:     %d\n", run.Total)
	fmt.Fprintf(w, "  recovered: %d\n", run.Recovered)
	fmt.Fprintf(w, "  unchanged: %d\n", run.Skipped)
	fmt.Fprintf(w, "  failed:    %d\n", run.Failed)
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  took:      %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	return nil
}

// WriteScan writes what discovery found without recovering anything.
func WriteScan(w io.Writer, res *discovery.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	writeList(w, "Time Machine backups", append(append([]string{}, res.ModernBackups...), res.LegacyBackups...))
	writeList(w, "User folders", res.UserFolders)
	writeList(w, "Stickies databases", res.StickiesDirs)
	fmt.Fprintf(w, "Notes (%d):\n", len(res.Notes))
	for _, n := range res.Notes {
		fmt.Fprintf(w, "  %s  %s\n", n.Name, n.BundlePath)
	}
	return nil
}

func writeList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}

// WriteStatus writes manifest and index totals.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Notes:     %d (%d recovered, %d failed)\n", st.Notes, st.Recovered, st.Failed)
	fmt.Fprintf(w, "Indexed:   %d\n", st.IndexedNotes)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk:      %s\n", FormatBytes(*st.DiskUsageBytes))
	}
	if st.LastRun != nil {
		fmt.Fprintf(w, "Last run:  %s (%s, %s)\n", st.LastRun.ID, st.LastRun.Status,
			st.LastRun.StartedAt.Format(time.RFC3339))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

package convert

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "note.rtf", `{\rtf1\ansi{\fonttbl\f0 Helvetica;}\f0 Hello\par World}`)
	out := filepath.Join(dir, "note.txt")

	c := New(WithLogger(zap.NewNop()))
	report, err := c.ConvertFile(in, out)
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if got := readOutput(t, out); got != "Hello\nWorld" {
		t.Errorf("output = %q", got)
	}
	if report.Runes != 11 || report.Bytes != 11 {
		t.Errorf("report = %+v", report)
	}
	if report.InputPath != in || report.OutputPath != out {
		t.Errorf("paths = %s -> %s", report.InputPath, report.OutputPath)
	}
}

func TestConvertFile_overwrites(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "note.rtf", `{\rtf1 new}`)
	out := writeInput(t, dir, "note.txt", "old content that is longer")

	if _, err := New().ConvertFile(in, out); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if got := readOutput(t, out); got != "new" {
		t.Errorf("output = %q", got)
	}
}

func TestConvertFile_missingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	_, err := New().ConvertFile(filepath.Join(dir, "missing.rtf"), out)
	if !errors.Is(err, ErrInputUnavailable) {
		t.Fatalf("err = %v, want ErrInputUnavailable", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output should not exist, stat err = %v", err)
	}
}

func TestConvertFile_emptyPaths(t *testing.T) {
	c := New()
	if _, err := c.ConvertFile("", "out.txt"); !errors.Is(err, ErrInputUnavailable) {
		t.Errorf("empty input: err = %v", err)
	}
	if _, err := c.ConvertFile("in.rtf", ""); !errors.Is(err, ErrInputUnavailable) {
		t.Errorf("empty output: err = %v", err)
	}
}

func TestConvertFile_unwritableOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "note.rtf", `{\rtf1 text}`)
	out := filepath.Join(dir, "no-such-dir", "note.txt")

	_, err := New().ConvertFile(in, out)
	if !errors.Is(err, ErrOutputUnwritable) {
		t.Fatalf("err = %v, want ErrOutputUnwritable", err)
	}
	if errors.Is(err, ErrInputUnavailable) {
		t.Error("unwritable output must not be reported as unavailable input")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output should not exist, stat err = %v", err)
	}
}

func TestConvertFile_malformedInputSucceeds(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "broken.rtf", `{\rtf1 Hello {\b world`)
	out := filepath.Join(dir, "broken.txt")

	report, err := New().ConvertFile(in, out)
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if got := readOutput(t, out); got != "Hello world" {
		t.Errorf("output = %q", got)
	}
	if !report.Stats.Malformed() || report.Stats.UnclosedGroups != 2 {
		t.Errorf("stats = %+v", report.Stats)
	}
}

func TestConvertFile_bundle(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "Note.rtfd")
	if err := os.MkdirAll(bundle, 0755); err != nil {
		t.Fatal(err)
	}
	writeInput(t, bundle, "TXT.rtf", `{\rtf1 inside}`)
	out := filepath.Join(dir, "Note.txt")

	if _, err := New().ConvertFile(bundle, out); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if got := readOutput(t, out); got != "inside" {
		t.Errorf("output = %q", got)
	}
}

func TestWriteFileAtomic_leavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := WriteFileAtomic(path, []byte("data")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Errorf("dir entries = %v", entries)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v", info.Mode().Perm())
	}
}

package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// BundleExt is the extension of an RTF directory bundle.
	BundleExt = ".rtfd"
	// BundleTextName is the RTF body inside a bundle.
	BundleTextName = "TXT.rtf"
)

// IsBundle reports whether path names an .rtfd bundle (by extension only).
func IsBundle(path string) bool {
	return strings.EqualFold(filepath.Ext(filepath.Clean(path)), BundleExt)
}

// BundleText returns the path of the RTF body inside bundle.
func BundleText(bundle string) string {
	return filepath.Join(bundle, BundleTextName)
}

// BundleName returns the bundle's file name without the .rtfd extension.
func BundleName(bundle string) string {
	base := filepath.Base(filepath.Clean(bundle))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasBundleText reports whether bundle contains a regular TXT.rtf.
func HasBundleText(bundle string) bool {
	info, err := os.Stat(BundleText(bundle))
	return err == nil && info.Mode().IsRegular()
}

// Attachments lists the files stored in bundle next to TXT.rtf (images, PDFs,
// pasted files), sorted by name.
func Attachments(bundle string) ([]string, error) {
	entries, err := os.ReadDir(bundle)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == BundleTextName || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(bundle, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Extractable reports whether the extractor can pull text out of an attachment.
func Extractable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".text", ".md", ".rtf":
		return true
	}
	return false
}

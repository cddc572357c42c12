package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// extractPlain returns content as a string with a leading byte order mark removed
// and CRLF line endings normalized. Invalid UTF-8 sequences are replaced with
// the replacement character.
func extractPlain(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

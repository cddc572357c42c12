package rtf

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// emitter accumulates recovered text. \u escapes arrive as UTF-16 code units,
// so a high surrogate is held until its partner shows up.
type emitter struct {
	b     strings.Builder
	high  rune
	runes int
}

func (e *emitter) writeRune(r rune) {
	e.dropSurrogate()
	e.b.WriteRune(r)
	e.runes++
}

func (e *emitter) writeString(s string) {
	for _, r := range s {
		e.writeRune(r)
	}
}

// writeUnit emits the character for a \uN parameter.
func (e *emitter) writeUnit(n int) {
	if n < 0 {
		n += 1 << 16
	}
	switch {
	case utf16.IsSurrogate(rune(n)) && n < 0xDC00:
		e.dropSurrogate()
		e.high = rune(n)
	case utf16.IsSurrogate(rune(n)):
		if e.high == 0 {
			e.writeRune(utf8.RuneError)
			return
		}
		r := utf16.DecodeRune(e.high, rune(n))
		e.high = 0
		e.writeRune(r)
	case n < 0 || n > unicode.MaxRune:
		e.writeRune(utf8.RuneError)
	default:
		// Parameters above the 16-bit range are read as code points rather
		// than truncated, so \u128512 yields U+1F600.
		e.writeRune(rune(n))
	}
}

// dropSurrogate replaces an unpaired high surrogate with U+FFFD.
func (e *emitter) dropSurrogate() {
	if e.high != 0 {
		e.high = 0
		e.b.WriteRune(utf8.RuneError)
		e.runes++
	}
}

func (e *emitter) String() string {
	e.dropSurrogate()
	return e.b.String()
}

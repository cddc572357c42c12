package rtf

const (
	// maxWordLen bounds control word names; longer runs of letters are truncated.
	maxWordLen = 32
	// maxParamDigits bounds numeric parameters; extra digits are consumed and ignored.
	maxParamDigits = 10

	minParam = -1 << 31
	maxParam = 1<<31 - 1
)

// Tokenizer turns RTF bytes into Tokens. It is single-pass and never fails:
// malformed constructs are dropped and counted in Stats.
type Tokenizer struct {
	r     *byteReader
	stats *Stats
}

// NewTokenizer returns a tokenizer over data.
func NewTokenizer(data []byte) *Tokenizer {
	return newTokenizer(data, &Stats{})
}

func newTokenizer(data []byte, stats *Stats) *Tokenizer {
	return &Tokenizer{r: newByteReader(data), stats: stats}
}

// Stats returns the anomalies seen so far.
func (t *Tokenizer) Stats() Stats {
	return *t.stats
}

// Offset is the byte offset of the next unread input byte.
func (t *Tokenizer) Offset() int {
	return t.r.pos()
}

// Next returns the next token, or a TokenEOF token once input is exhausted.
func (t *Tokenizer) Next() Token {
	for {
		b, ok := t.r.next()
		if !ok {
			return Token{Kind: TokenEOF}
		}
		switch b {
		case '{':
			return Token{Kind: TokenGroupOpen}
		case '}':
			return Token{Kind: TokenGroupClose}
		case '\r', '\n':
			// Raw line breaks are layout only; \par and \line carry real breaks.
			continue
		case '\\':
			if tok, ok := t.escape(); ok {
				return tok
			}
		default:
			return Token{Kind: TokenText, Byte: b}
		}
	}
}

// escape lexes whatever follows a backslash. ok is false when the escape
// was malformed and produced nothing.
func (t *Tokenizer) escape() (tok Token, ok bool) {
	c, more := t.r.next()
	if !more {
		t.stats.DanglingBackslashes++
		return Token{}, false
	}
	switch {
	case isLetter(c):
		return t.controlWord(c), true
	case c == '\'':
		return t.hexByte()
	case c == '\r' || c == '\n':
		// Cocoa writers emit a backslash before a newline for a paragraph break.
		return Token{Kind: TokenControlWord, Name: "par"}, true
	case isDigit(c):
		t.stats.BadEscapes++
		return Token{}, false
	default:
		return Token{Kind: TokenControlSymbol, Char: c}, true
	}
}

func (t *Tokenizer) controlWord(first byte) Token {
	var buf [maxWordLen]byte
	buf[0] = first
	n := 1
	for {
		c, ok := t.r.peek()
		if !ok || !isLetter(c) {
			break
		}
		t.r.next()
		if n < maxWordLen {
			buf[n] = c
			n++
		}
	}
	tok := Token{Kind: TokenControlWord, Name: string(buf[:n])}

	neg := false
	if c, ok := t.r.peek(); ok && c == '-' {
		t.r.next()
		if d, ok := t.r.peek(); ok && isDigit(d) {
			neg = true
		} else {
			t.r.unread()
		}
	}

	var v int64
	digits := 0
	for {
		c, ok := t.r.peek()
		if !ok || !isDigit(c) {
			break
		}
		t.r.next()
		if digits < maxParamDigits {
			v = v*10 + int64(c-'0')
		}
		digits++
	}
	if digits > 0 {
		if neg {
			v = -v
		}
		if v < minParam {
			v = minParam
		} else if v > maxParam {
			v = maxParam
		}
		tok.Param = int(v)
		tok.HasParam = true
	}

	if c, ok := t.r.peek(); ok && c == ' ' {
		t.r.next()
	}

	if tok.Name == "bin" && tok.Param > 0 {
		if skipped := t.r.skip(tok.Param); skipped < tok.Param {
			t.stats.TruncatedBinary++
		}
	}
	return tok
}

// hexByte lexes the two digits of a \'hh escape. Bad digits are consumed so
// they are not emitted as text; structural bytes are left for the next token.
func (t *Tokenizer) hexByte() (Token, bool) {
	var v byte
	bad := false
	for i := 0; i < 2; i++ {
		c, ok := t.r.peek()
		if !ok || c == '\\' || c == '{' || c == '}' {
			bad = true
			break
		}
		t.r.next()
		d, ok := unhex(c)
		if !ok {
			bad = true
			continue
		}
		v = v<<4 | d
	}
	if bad {
		t.stats.BadEscapes++
		return Token{}, false
	}
	return Token{Kind: TokenHexByte, Byte: v}, true
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

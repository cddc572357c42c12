package rtf

import (
	"fmt"
	"strconv"
)

// TokenKind identifies the lexical class of a Token.
type TokenKind uint8

const (
	// TokenEOF marks the end of input. Next keeps returning it once reached.
	TokenEOF TokenKind = iota
	// TokenGroupOpen is an unescaped '{'.
	TokenGroupOpen
	// TokenGroupClose is an unescaped '}'.
	TokenGroupClose
	// TokenControlWord is a backslash followed by letters and an optional parameter.
	TokenControlWord
	// TokenControlSymbol is a backslash followed by one non-alphanumeric character.
	TokenControlSymbol
	// TokenText is one raw document byte.
	TokenText
	// TokenHexByte is a \'hh escape, one byte in the active code page.
	TokenHexByte
)

var tokenKindNames = [...]string{
	TokenEOF:           "EOF",
	TokenGroupOpen:     "GroupOpen",
	TokenGroupClose:    "GroupClose",
	TokenControlWord:   "ControlWord",
	TokenControlSymbol: "ControlSymbol",
	TokenText:          "Text",
	TokenHexByte:       "HexByte",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// Token is one lexical unit of an RTF stream. Only the fields relevant to Kind are set:
// Name/Param/HasParam for control words, Char for control symbols, Byte for text and hex bytes.
type Token struct {
	Kind     TokenKind
	Name     string
	Param    int
	HasParam bool
	Char     byte
	Byte     byte
}

func (t Token) String() string {
	switch t.Kind {
	case TokenControlWord:
		if t.HasParam {
			return fmt.Sprintf(`\%s%d`, t.Name, t.Param)
		}
		return `\` + t.Name
	case TokenControlSymbol:
		return `\` + string(rune(t.Char))
	case TokenText:
		return strconv.QuoteRune(rune(t.Byte))
	case TokenHexByte:
		return fmt.Sprintf(`\'%02x`, t.Byte)
	default:
		return t.Kind.String()
	}
}

// param returns the parameter, or def when the control word carried none.
func (t Token) param(def int) int {
	if t.HasParam {
		return t.Param
	}
	return def
}

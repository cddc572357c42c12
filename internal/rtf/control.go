package rtf

// destinationWords name groups whose payload is metadata rather than note text.
// A group carrying one of these is skipped with all of its subgroups.
var destinationWords = map[string]struct{}{
	"fonttbl":            {},
	"colortbl":           {},
	"expandedcolortbl":   {},
	"stylesheet":         {},
	"listtable":          {},
	"listoverridetable":  {},
	"revtbl":             {},
	"rsidtbl":            {},
	"filetbl":            {},
	"info":               {},
	"generator":          {},
	"pict":               {},
	"nonshppict":         {},
	"shpinst":            {},
	"sp":                 {},
	"object":             {},
	"objdata":            {},
	"objclass":           {},
	"fldinst":            {},
	"bkmkstart":          {},
	"bkmkend":            {},
	"xe":                 {},
	"tc":                 {},
	"xmlnstbl":           {},
	"themedata":          {},
	"colorschememapping": {},
	"datastore":          {},
	"latentstyles":       {},
	"pgdsctbl":           {},
	"mmathPr":            {},
	"NeXTGraphic":        {},
}

// codePageWords select the document character set. \ansicpg carries its
// code page as the parameter and is handled separately.
var codePageWords = map[string]int{
	"ansi": 1252,
	"mac":  10000,
	"pc":   437,
	"pca":  850,
}

// wordRunes are control words that stand for a single character of text.
var wordRunes = map[string]rune{
	"par":       '\n',
	"line":      '\n',
	"sect":      '\n',
	"page":      '\n',
	"row":       '\n',
	"tab":       '\t',
	"cell":      '\t',
	"emdash":    '—',
	"endash":    '–',
	"bullet":    '•',
	"lquote":    '‘',
	"rquote":    '’',
	"ldblquote": '“',
	"rdblquote": '”',
	"emspace":   '\u2003',
	"enspace":   '\u2002',
	"qmspace":   '\u2005',
	"zwj":       '\u200d',
	"zwnj":      '\u200c',
	"zwbo":      '\u200b',
	"zwnbo":     '\ufeff',
}

// symbolRune maps a control symbol to its text. Symbols without text
// (\| \: and unknown ones) report false.
func symbolRune(c byte) (rune, bool) {
	switch c {
	case '\\', '{', '}':
		return rune(c), true
	case '~':
		return '\u00a0', true
	case '-', '_':
		return '-', true
	}
	return 0, false
}

func isDestination(name string) bool {
	_, ok := destinationWords[name]
	return ok
}

// codePageOf reports the code page selected by tok, if it is an encoding word.
func codePageOf(tok Token) (int, bool) {
	if tok.Name == "ansicpg" {
		if tok.HasParam && tok.Param > 0 {
			return tok.Param, true
		}
		return 0, false
	}
	cp, ok := codePageWords[tok.Name]
	return cp, ok
}

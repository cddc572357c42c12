package rtf

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCodePage is used until the document selects another one, and for
// code pages this package does not know.
const DefaultCodePage = 1252

var codePages = map[int]encoding.Encoding{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	855:   charmap.CodePage855,
	858:   charmap.CodePage858,
	860:   charmap.CodePage860,
	862:   charmap.CodePage862,
	863:   charmap.CodePage863,
	865:   charmap.CodePage865,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	932:   japanese.ShiftJIS,
	936:   simplifiedchinese.GBK,
	949:   korean.EUCKR,
	950:   traditionalchinese.Big5,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	10007: charmap.MacintoshCyrillic,
	20866: charmap.KOI8R,
	21866: charmap.KOI8U,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28593: charmap.ISO8859_3,
	28594: charmap.ISO8859_4,
	28595: charmap.ISO8859_5,
	28596: charmap.ISO8859_6,
	28597: charmap.ISO8859_7,
	28598: charmap.ISO8859_8,
	28599: charmap.ISO8859_9,
	28605: charmap.ISO8859_15,
	65001: unicode.UTF8,
}

// KnownCodePage reports whether cp has a dedicated decoder.
func KnownCodePage(cp int) bool {
	_, ok := codePages[cp]
	return ok
}

func encodingFor(cp int) encoding.Encoding {
	if enc, ok := codePages[cp]; ok {
		return enc
	}
	return codePages[DefaultCodePage]
}

// isLeadByte reports whether b starts a two-byte sequence in a DBCS code page.
func isLeadByte(cp int, b byte) bool {
	switch cp {
	case 932:
		return (0x81 <= b && b <= 0x9F) || (0xE0 <= b && b <= 0xFC)
	case 936, 949, 950:
		return 0x81 <= b && b <= 0xFE
	}
	return false
}

// sequenceComplete reports whether raw holds a whole character in cp.
func sequenceComplete(cp int, raw []byte) bool {
	switch cp {
	case 932, 936, 949, 950:
		return len(raw) >= 2 || !isLeadByte(cp, raw[0])
	case 65001:
		return utf8.FullRune(raw) || len(raw) >= utf8.UTFMax
	}
	return true
}

// decodeBytes converts raw code page bytes to UTF-8. Undecodable input
// becomes U+FFFD.
func decodeBytes(cp int, raw []byte) string {
	out, err := encodingFor(cp).NewDecoder().Bytes(raw)
	if err != nil {
		return string(utf8.RuneError)
	}
	return string(out)
}

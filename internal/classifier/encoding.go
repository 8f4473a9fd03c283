package classifier

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"

	// minConfidence is the chardet confidence (0-100) below which the
	// detected charset is not trusted
	minConfidence = 70
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding guesses the character encoding of raw source bytes.
// Low-confidence results are resolved by trying Shift-JIS, then UTF-8.
// cp932 and sjis are reported as shift_jis.
func DetectEncoding(raw []byte) string {
	if bytes.HasPrefix(raw, utf8BOM) {
		return EncodingUTF8
	}
	if isASCII(raw) {
		return EncodingUTF8
	}

	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || res == nil || res.Charset == "" || res.Confidence < minConfidence {
		if decodesCleanly(japanese.ShiftJIS, raw) {
			return EncodingShiftJIS
		}
		if utf8.Valid(raw) {
			return EncodingUTF8
		}
		if res == nil || res.Charset == "" {
			return EncodingUTF8
		}
	}
	return normalizeEncoding(res.Charset)
}

func normalizeEncoding(name string) string {
	switch n := strings.ToLower(name); n {
	case "cp932", "shift_jis", "sjis", "windows-31j", "ms932":
		return EncodingShiftJIS
	default:
		return n
	}
}

// Decode converts raw bytes into text, returning the encoding used.
// Undecodable sequences become U+FFFD rather than failing the file.
func Decode(raw []byte) (string, string) {
	name := DetectEncoding(raw)
	enc := lookupEncoding(name)
	if enc == nil {
		return strings.ToValidUTF8(string(bytes.TrimPrefix(raw, utf8BOM)), "�"), EncodingUTF8
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�"), name
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), name
}

func lookupEncoding(name string) encoding.Encoding {
	switch name {
	case EncodingUTF8:
		return nil
	case EncodingShiftJIS:
		return japanese.ShiftJIS
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc
}

// decodesCleanly reports whether raw decodes under enc without replacement
func decodesCleanly(enc encoding.Encoding, raw []byte) bool {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(out, utf8.RuneError)
}

func isASCII(raw []byte) bool {
	for _, b := range raw {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

package importer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// mojibakePatterns are UTF-8 sequences that appear when Latin-1 accented
// text is decoded as UTF-8 a second time ("Ã¡" for "á" and so on).
var mojibakePatterns = []string{
	"Ã¡", "Ã©", "Ã­", "Ã³", "Ãº", "Ã±",
	"Ã", "Ã", "Ã", "Ã", "Ã", "Ã",
	"Â°", "Âº",
}

// DecodeBytes turns raw upload bytes into clean UTF-8 text: strips a BOM,
// falls back to Latin-1 when the bytes are not valid UTF-8, and repairs
// double-encoded text before any field matching happens.
func DecodeBytes(raw []byte) string {
	raw = stripBOM(raw)

	var text string
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
		if err != nil {
			text = string(bytes.ToValidUTF8(raw, []byte("�")))
		} else {
			text = string(decoded)
		}
	}

	return RepairMojibake(text)
}

// RepairMojibake reverses one round of Latin-1-as-UTF-8 double encoding.
// Text without the telltale patterns is returned unchanged.
func RepairMojibake(text string) string {
	if text == "" || !hasMojibake(text) {
		return text
	}

	// Every rune in double-encoded text fits in Latin-1. Re-encoding to
	// Latin-1 bytes recovers the original UTF-8 byte stream.
	encoded, _, err := transform.Bytes(charmap.ISO8859_1.NewEncoder(), []byte(text))
	if err != nil {
		return text
	}
	if !utf8.Valid(encoded) {
		return text
	}

	repaired := string(encoded)
	if hasMojibake(repaired) {
		// Still damaged after one pass, leave the input alone rather than
		// loop on pathological data.
		return text
	}
	return repaired
}

func hasMojibake(text string) bool {
	for _, pattern := range mojibakePatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

func stripBOM(raw []byte) []byte {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return raw[3:]
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return raw[2:]
	default:
		return raw
	}
}

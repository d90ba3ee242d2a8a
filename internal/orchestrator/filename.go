package orchestrator

import (
	"unicode"
	"unicode/utf8"
)

// fixMangledFilename repairs a common upload-pipeline mishap: a browser
// or intermediate proxy decodes a UTF-8 filename as Latin-1, turning each
// multi-byte CJK character into several mojibake Latin-1 code points. If
// re-encoding the string as Latin-1 bytes and re-decoding as UTF-8
// produces valid text containing CJK characters, that's almost certainly
// the original filename.
func fixMangledFilename(name string) string {
	raw := make([]byte, 0, len(name))
	for _, r := range name {
		if r > 0xFF {
			return name // already valid multi-byte text, not mangled Latin-1
		}
		raw = append(raw, byte(r))
	}

	if !utf8.Valid(raw) {
		return name
	}
	fixed := string(raw)
	if !containsCJK(fixed) {
		return name
	}
	return fixed
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

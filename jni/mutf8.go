package jni

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// JNI's *UTF functions use "modified UTF-8": NUL is encoded as two bytes and
// supplementary characters are written as a surrogate pair of three-byte
// sequences.

// EncodeModifiedUTF8 returns s in modified UTF-8 followed by a NUL terminator.
func EncodeModifiedUTF8(s string) []byte {
	buf := make([]byte, 0, len(s)+1)
	for _, r := range s {
		switch {
		case r == 0:
			buf = append(buf, 0xC0, 0x80)
		case r < 0x80:
			buf = append(buf, byte(r))
		case r < 0x800:
			buf = append(buf, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			buf = appendThree(buf, r)
		default:
			hi, lo := utf16.EncodeRune(r)
			buf = appendThree(buf, hi)
			buf = appendThree(buf, lo)
		}
	}
	return append(buf, 0)
}

func appendThree(buf []byte, r rune) []byte {
	return append(buf, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
}

// DecodeModifiedUTF8 converts modified UTF-8 bytes (without terminator) to a
// Go string. Malformed sequences and unpaired surrogates decode as U+FFFD.
func DecodeModifiedUTF8(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	var pending rune = -1 // high surrogate awaiting its pair

	flush := func() {
		if pending >= 0 {
			sb.WriteRune(utf8.RuneError)
			pending = -1
		}
	}

	for i := 0; i < len(b); {
		c := b[i]
		var r rune
		switch {
		case c < 0x80:
			r = rune(c)
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b) && b[i+1]&0xC0 == 0x80:
			r = rune(c&0x1F)<<6 | rune(b[i+1]&0x3F)
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b) && b[i+1]&0xC0 == 0x80 && b[i+2]&0xC0 == 0x80:
			r = rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			i += 3
		default:
			r = utf8.RuneError
			i++
		}

		switch {
		case utf16.IsSurrogate(r) && r < 0xDC00:
			flush()
			pending = r
		case utf16.IsSurrogate(r):
			if pending >= 0 {
				sb.WriteRune(utf16.DecodeRune(pending, r))
				pending = -1
			} else {
				sb.WriteRune(utf8.RuneError)
			}
		default:
			flush()
			sb.WriteRune(r)
		}
	}
	flush()
	return sb.String()
}

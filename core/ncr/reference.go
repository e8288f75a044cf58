// Package ncr decodes HTML/XML numeric character references.
//
// A reference is "&#" followed by decimal digits, or by an x/X marker and
// hex digits, and terminated by ";". Decoding replaces each reference whose
// value is a Unicode scalar value with that character and leaves every other
// byte of the input exactly as it was.
package ncr

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxReferenceLen bounds the bytes a numeric reference needs once its
	// leading zeros are squeezed to one. "&#1114111;" and "&#x10FFFF;" are
	// 10 bytes, so a longer prefix can never decode.
	MaxReferenceLen = 32

	// MaxNamedReferenceLen is the same bound when named entities are
	// decoded. The longest HTML5 name, CounterClockwiseContourIntegral,
	// needs 33 bytes with its delimiters.
	MaxNamedReferenceLen = 40
)

// Reference is one syntactically valid numeric character reference.
type Reference struct {
	Radix  int    // 10 or 16
	Digits string // digits as written, leading zeros included
	Start  int    // offset of '&'
	End    int    // offset just past ';'
}

// CodePoint parses the digits and reports whether they name a character
// that can be written as UTF-8. Values above U+10FFFF, surrogates and
// anything that overflows 32 bits report false.
func (r Reference) CodePoint() (rune, bool) {
	v, err := strconv.ParseUint(r.Digits, r.Radix, 32)
	if err != nil || v > utf8.MaxRune {
		return utf8.RuneError, false
	}
	cp := rune(v)
	if !utf8.ValidRune(cp) {
		return utf8.RuneError, false
	}
	return cp, true
}

// Len returns the number of bytes the reference spans.
func (r Reference) Len() int {
	return r.End - r.Start
}

// Scan returns every reference in text, in order, whether or not its code
// point is valid.
func Scan(text string) []Reference {
	var refs []Reference
	pos := 0
	for {
		i := strings.Index(text[pos:], "&#")
		if i < 0 {
			return refs
		}
		start := pos + i
		if ref, ok := matchNumeric(text, start); ok {
			refs = append(refs, ref)
			pos = ref.End
			continue
		}
		pos = start + 1
	}
}

// Match reports whether text begins with a numeric reference, valid code
// point or not.
func Match(text string) (Reference, bool) {
	return matchNumeric(text, 0)
}

// matchNumeric tries to match a reference beginning at s[start], which must
// be '&'. The hex form is tried first; the decimal form never accepts the
// x marker, so "&#x;" matches neither.
func matchNumeric(s string, start int) (Reference, bool) {
	i := start + 2
	if i > len(s) || s[start] != '&' || s[start+1] != '#' {
		return Reference{}, false
	}
	if i < len(s) && (s[i] == 'x' || s[i] == 'X') {
		end := i + 1
		for end < len(s) && isHexDigit(s[end]) {
			end++
		}
		if end == i+1 || end >= len(s) || s[end] != ';' {
			return Reference{}, false
		}
		return Reference{Radix: 16, Digits: s[i+1 : end], Start: start, End: end + 1}, true
	}
	end := i
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == i || end >= len(s) || s[end] != ';' {
		return Reference{}, false
	}
	return Reference{Radix: 10, Digits: s[i:end], Start: start, End: end + 1}, true
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func isAlpha(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

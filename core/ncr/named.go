package ncr

import (
	"strings"

	"golang.org/x/net/html"
)

// matchNamed tries to decode a named entity such as "&amp;" at s[start].
// It returns the replacement text and the number of bytes consumed, or
// n == 0 when there is no known entity there.
func matchNamed(s string, start int) (string, int) {
	i := start + 1
	if i >= len(s) || !isAlpha(s[i]) {
		return "", 0
	}
	end := i + 1
	for end < len(s) && isAlnum(s[end]) && end-start < MaxNamedReferenceLen {
		end++
	}
	if end >= len(s) || s[end] != ';' {
		return "", 0
	}
	candidate := s[start : end+1]

	// html.UnescapeString also accepts legacy entities without a ';', so
	// "&notit;" comes back as "¬it;". Only a full match consumes the ';'.
	decoded := html.UnescapeString(candidate)
	if decoded == candidate {
		return "", 0
	}
	if strings.IndexByte(decoded, ';') >= 0 && candidate != "&semi;" {
		return "", 0
	}
	return decoded, len(candidate)
}

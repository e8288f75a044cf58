package ncr

import (
	"bytes"
	"strings"
)

// Stats counts what a decode pass did.
type Stats struct {
	Decoded int // numeric references replaced
	Invalid int // numeric references kept because the code point is invalid
	Named   int // named entities replaced
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Decoded += other.Decoded
	s.Invalid += other.Invalid
	s.Named += other.Named
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithNamedEntities makes the decoder also replace HTML named entities such
// as "&amp;" and "&eacute;". Only entities closed by ';' are recognised.
func WithNamedEntities() Option {
	return func(d *Decoder) {
		d.named = true
	}
}

// Decoder replaces character references in text. A Decoder holds no state
// between calls and is safe for concurrent use.
type Decoder struct {
	named bool
}

// NewDecoder returns a decoder for numeric references, plus named entities
// if WithNamedEntities is given.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var numericOnly = NewDecoder()

// Decode replaces every valid numeric character reference in text.
func Decode(text string) string {
	return numericOnly.Decode(text)
}

// NamedEntities reports whether d decodes named entities.
func (d *Decoder) NamedEntities() bool {
	return d.named
}

// MaxReferenceLen is the longest reference d can carry across a read
// boundary.
func (d *Decoder) MaxReferenceLen() int {
	if d.named {
		return MaxNamedReferenceLen
	}
	return MaxReferenceLen
}

// Decode returns text with its references replaced.
func (d *Decoder) Decode(text string) string {
	out, _ := d.DecodeStats(text)
	return out
}

// DecodeStats is Decode that also reports how many references were handled.
//
// The scan is a single left-to-right pass: text produced by a substitution
// is written out and never looked at again, so "&#x26;#65;" becomes "&#65;"
// and not "A". This deliberately differs from rewriting every hex reference
// and then every decimal one, which would turn the same input into "A".
func (d *Decoder) DecodeStats(text string) (string, Stats) {
	var st Stats
	first := strings.IndexByte(text, '&')
	if first < 0 {
		return text, st
	}

	var b strings.Builder
	b.Grow(len(text))
	b.WriteString(text[:first])

	pos := first
	for pos < len(text) {
		i := strings.IndexByte(text[pos:], '&')
		if i < 0 {
			b.WriteString(text[pos:])
			break
		}
		b.WriteString(text[pos : pos+i])
		pos += i

		if ref, ok := matchNumeric(text, pos); ok {
			if cp, valid := ref.CodePoint(); valid {
				b.WriteRune(cp)
				st.Decoded++
			} else {
				b.WriteString(text[ref.Start:ref.End])
				st.Invalid++
			}
			pos = ref.End
			continue
		}

		if d.named {
			if val, n := matchNamed(text, pos); n > 0 {
				b.WriteString(val)
				st.Named++
				pos += n
				continue
			}
		}

		b.WriteByte('&')
		pos++
	}

	if st.Decoded == 0 && st.Named == 0 {
		return text, st
	}
	return b.String(), st
}

// IncompleteTail returns the offset of a reference that may have been cut
// off at the end of b, or -1 when b ends in a state where decoding it now
// gives the same result as decoding it together with whatever follows.
//
// Only the last '&' can start such a reference: anything after an earlier
// '&' contains that last '&', which no reference can. A numeric candidate
// may be any length, since leading zeros are unbounded; callers that carry
// it must squeeze them.
func (d *Decoder) IncompleteTail(b []byte) int {
	i := bytes.LastIndexByte(b, '&')
	if i < 0 {
		return -1
	}
	if d.isReferencePrefix(b[i+1:]) {
		return i
	}
	return -1
}

// isReferencePrefix reports whether rest, the bytes after '&', could still
// grow into a complete reference.
func (d *Decoder) isReferencePrefix(rest []byte) bool {
	if len(rest) == 0 {
		return true
	}
	if rest[0] == '#' {
		digits := rest[1:]
		if len(digits) == 0 {
			return true
		}
		if digits[0] == 'x' || digits[0] == 'X' {
			return allBytes(digits[1:], isHexDigit)
		}
		return allBytes(digits, isDigit)
	}
	if d.named && isAlpha(rest[0]) {
		return len(rest) < MaxNamedReferenceLen-1 && allBytes(rest, isAlnum)
	}
	return false
}

func allBytes(b []byte, pred func(byte) bool) bool {
	for _, c := range b {
		if !pred(c) {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

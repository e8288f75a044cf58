package ncr

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"decimal sequence", "&#65;&#66;&#67;", "ABC"},
		{"hex CJK", "&#x4E2D;", "中"},
		{"decimal CJK extension", "&#18487;", "䠷"},
		{"upper hex marker", "&#X4e2d;", "中"},
		{"mixed case hex digits", "&#x1f600;&#x1F600;", "😀😀"},
		{"leading zeros", "&#00065;", "A"},
		{"leading zeros hex", "&#x0041;", "A"},
		{"surrounding text", "a &#65; b", "a A b"},
		{"max code point", "&#x10FFFF;", "\U0010FFFF"},
		{"NUL is a scalar value", "&#0;", "\x00"},
		{"out of range", "&#99999999;", "&#99999999;"},
		{"just above max", "&#x110000;", "&#x110000;"},
		{"surrogate", "&#xD800;", "&#xD800;"},
		{"overflow", "&#99999999999999999999;", "&#99999999999999999999;"},
		{"empty decimal", "&#;", "&#;"},
		{"empty hex", "&#x;", "&#x;"},
		{"no semicolon", "&#65 and", "&#65 and"},
		{"hex digits in decimal form", "&#4E;", "&#4E;"},
		{"non-ascii digits", "&#٦٥;", "&#٦٥;"},
		{"named entity untouched", "&amp;&lt;", "&amp;&lt;"},
		{"double ampersand", "&&#65;", "&A"},
		{"hash without ampersand", "#65;", "#65;"},
		{"invalid then valid", "&#99999999;&#66;", "&#99999999;B"},
		{"no rescan of decoded ampersand", "&#x26;#65;", "&#65;"},
		{"no rescan decimal", "&#38;#x41;", "&#x41;"},
		{"trailing ampersand", "abc&", "abc&"},
		{"trailing partial reference", "abc&#6", "abc&#6"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.in))
		})
	}
}

func TestDecode_IdentityWithoutReferences(t *testing.T) {
	inputs := []string{
		"plain ascii text",
		"中文文本，没有引用",
		"AT&T; & friends #1;",
		"&#&#x&#X;",
		strings.Repeat("x&y", 100),
	}
	for _, in := range inputs {
		assert.Equal(t, in, Decode(in), "input %q", in)
	}
}

func TestDecode_HexMatchesDecimal(t *testing.T) {
	for _, cp := range []int{0x41, 0xE9, 0x4E2D, 0x1F600, 0xFFFD, 0x10FFFF} {
		dec := Decode(fmt.Sprintf("&#%d;", cp))
		assert.Equal(t, dec, Decode(fmt.Sprintf("&#x%x;", cp)))
		assert.Equal(t, dec, Decode(fmt.Sprintf("&#X%X;", cp)))
		r, size := utf8.DecodeRuneInString(dec)
		assert.Equal(t, rune(cp), r)
		assert.Equal(t, len(dec), size)
	}
}

func TestDecodeStats(t *testing.T) {
	out, st := NewDecoder().DecodeStats("&#65;&#x42;&#99999999;&amp;")
	assert.Equal(t, "AB&#99999999;&amp;", out)
	assert.Equal(t, Stats{Decoded: 2, Invalid: 1}, st)

	out, st = NewDecoder(WithNamedEntities()).DecodeStats("&#65;&amp;&bogus;")
	assert.Equal(t, "A&&bogus;", out)
	assert.Equal(t, Stats{Decoded: 1, Named: 1}, st)

	var total Stats
	total.Add(Stats{Decoded: 1, Invalid: 2, Named: 3})
	total.Add(Stats{Decoded: 1})
	assert.Equal(t, Stats{Decoded: 2, Invalid: 2, Named: 3}, total)
}

func TestDecoder_NamedEntities(t *testing.T) {
	d := NewDecoder(WithNamedEntities())
	require.True(t, d.NamedEntities())
	assert.False(t, NewDecoder().NamedEntities())

	tests := []struct {
		in   string
		want string
	}{
		{"&amp;", "&"},
		{"caf&eacute;", "café"},
		{"&lt;p&gt;", "<p>"},
		{"&semi;", ";"},
		{"&notit;", "&notit;"},
		{"&amp", "&amp"},
		{"&nosuchentity;", "&nosuchentity;"},
		{"&amp;#65;", "&#65;"},
		{"&#65;&copy;", "A©"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Decode(tt.in), "input %q", tt.in)
	}
}

func TestScan(t *testing.T) {
	refs := Scan("x&#65;y&#x4E2D;&#;&#99999999;")
	require.Len(t, refs, 3)

	assert.Equal(t, Reference{Radix: 10, Digits: "65", Start: 1, End: 6}, refs[0])
	assert.Equal(t, Reference{Radix: 16, Digits: "4E2D", Start: 7, End: 15}, refs[1])
	assert.Equal(t, 11, refs[2].Len())

	cp, ok := refs[1].CodePoint()
	assert.True(t, ok)
	assert.Equal(t, '中', cp)

	_, ok = refs[2].CodePoint()
	assert.False(t, ok)

	assert.Empty(t, Scan("no references here"))
}

func TestMatch(t *testing.T) {
	ref, ok := Match("&#0065;tail")
	require.True(t, ok)
	assert.Equal(t, Reference{Radix: 10, Digits: "0065", Start: 0, End: 7}, ref)

	_, ok = Match("x&#65;")
	assert.False(t, ok)
	_, ok = Match("&#0x41;")
	assert.False(t, ok)
	_, ok = Match("&#00")
	assert.False(t, ok)
}

func TestIncompleteTail(t *testing.T) {
	numeric := NewDecoder()
	named := NewDecoder(WithNamedEntities())

	tests := []struct {
		name string
		d    *Decoder
		in   string
		want int
	}{
		{"no ampersand", numeric, "hello", -1},
		{"lone ampersand", numeric, "hello&", 5},
		{"hash", numeric, "ab&#", 2},
		{"decimal digits", numeric, "ab&#12", 2},
		{"hex marker", numeric, "ab&#x", 2},
		{"hex digits", numeric, "ab&#X1F", 2},
		{"complete reference", numeric, "ab&#65;", -1},
		{"non digit after hash", numeric, "ab&#z", -1},
		{"letters without named", numeric, "ab&am", -1},
		{"letters with named", named, "ab&am", 2},
		{"space after ampersand", numeric, "a& b", -1},
		{"earlier ampersand ignored", numeric, "&#6&x", -1},
		{"long zero run", numeric, "xyz&#" + strings.Repeat("0", 4*MaxReferenceLen), 3},
		{"long hex zero run", numeric, "xyz&#x" + strings.Repeat("0", 4*MaxReferenceLen), 3},
		{"long name", named, "ab&" + strings.Repeat("a", MaxNamedReferenceLen), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.IncompleteTail([]byte(tt.in)))
		})
	}
}

package convert

import (
	"io"
	"strings"

	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/core/ncr"
)

// carry holds the end of a chunk that may be the start of a reference.
//
// A numeric reference keeps only the first of its leading zeros; the rest
// are counted in zeros. Leading zeros never change a code point, so the
// squeezed form decodes to the same character, and when it does not decode
// the counted zeros are written back in place.
type carry struct {
	buf    []byte
	zeros  int64 // leading zeros dropped from buf
	digits int   // offset in buf of the first digit, or -1
}

// set replaces the carried bytes with tail, adding zeros to the count of
// dropped zeros it already stands for.
func (cy *carry) set(tail []byte, zeros int64) {
	cy.buf = append(cy.buf[:0], tail...)
	cy.zeros = zeros
	cy.digits = digitsOffset(cy.buf)
	if cy.digits < 0 {
		return
	}

	n := 0
	for cy.digits+n < len(cy.buf) && cy.buf[cy.digits+n] == '0' {
		n++
	}
	if n > 1 {
		cy.buf = append(cy.buf[:cy.digits+1], cy.buf[cy.digits+n:]...)
		cy.zeros += int64(n - 1)
	}
}

func (cy *carry) reset() {
	cy.set(nil, 0)
}

// digitsOffset returns where the digits of a numeric reference prefix begin,
// or -1 when b is not one.
func digitsOffset(b []byte) int {
	if len(b) < 2 || b[0] != '&' || b[1] != '#' {
		return -1
	}
	if len(b) > 2 && (b[2] == 'x' || b[2] == 'X') {
		return 3
	}
	return 2
}

// emitCarried is emit for text that opens with the carried reference head.
// A reference that decodes is squeezed harmlessly; one that does not is
// written with its dropped zeros restored.
func (c *Converter) emitCarried(w io.Writer, text []byte, head carry, stats *ncr.Stats, path string) error {
	if head.zeros == 0 {
		return c.emit(w, text, stats, path)
	}

	lead := text[:min(len(text), ncr.MaxReferenceLen)]
	if ref, ok := ncr.Match(string(lead)); ok {
		if _, valid := ref.CodePoint(); valid {
			return c.emit(w, text, stats, path)
		}
		stats.Invalid++
	}

	if err := writeZeros(w, text[:head.digits], head.zeros); err != nil {
		return cerrors.NewIO("write", path, err)
	}
	return c.emit(w, text[head.digits:], stats, path)
}

var zeroRun = strings.Repeat("0", 256)

// writeZeros writes prefix followed by n zeros.
func writeZeros(w io.Writer, prefix []byte, n int64) error {
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	for n > 0 {
		k := min(n, int64(len(zeroRun)))
		if _, err := io.WriteString(w, zeroRun[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

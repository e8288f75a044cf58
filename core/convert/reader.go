package convert

import (
	"io"
	"unicode/utf8"

	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
)

// chunkReader hands out chunks of at most size bytes that are valid UTF-8
// and never end inside a multi-byte sequence. The bytes of a sequence cut by
// a read are kept and put in front of the next chunk.
type chunkReader struct {
	r      io.Reader
	size   int
	path   string
	buf    []byte
	tail   [utf8.UTFMax]byte
	ntail  int
	offset int64 // stream offset of the next chunk's first byte
}

func newChunkReader(r io.Reader, size int, path string) *chunkReader {
	return &chunkReader{
		r:    r,
		size: size,
		path: path,
		buf:  make([]byte, size+utf8.UTFMax),
	}
}

// next returns the next chunk, io.EOF at the end of the stream, or an
// *errors.EncodingError / *errors.IOError. The returned slice is only valid
// until the following call.
func (cr *chunkReader) next() ([]byte, error) {
	copy(cr.buf, cr.tail[:cr.ntail])
	pending := cr.ntail
	cr.ntail = 0

	n, err := io.ReadFull(cr.r, cr.buf[pending:pending+cr.size])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, cerrors.NewIO("read", cr.path, err)
	}
	if n == 0 {
		if pending > 0 {
			return nil, cerrors.NewEncoding(cr.path, cr.offset)
		}
		return nil, io.EOF
	}

	data := cr.buf[:pending+n]
	keep := incompleteRuneLen(data)
	chunk := data[:len(data)-keep]

	if i := firstInvalid(chunk); i >= 0 {
		return nil, cerrors.NewEncoding(cr.path, cr.offset+int64(i))
	}

	cr.ntail = copy(cr.tail[:], data[len(chunk):])
	cr.offset += int64(len(chunk))
	return chunk, nil
}

// incompleteRuneLen reports how many trailing bytes of b start a UTF-8
// sequence that b does not finish.
func incompleteRuneLen(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		c := b[i]
		if c < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[i:]) {
				return 0
			}
			return len(b) - i
		}
	}
	return 0
}

// firstInvalid returns the offset of the first byte in b that is not part
// of a valid UTF-8 sequence, or -1.
func firstInvalid(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

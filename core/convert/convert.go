// Package convert rewrites text files with their numeric character
// references decoded, reading and writing in bounded chunks.
//
// A file is processed chunk by chunk. A reference cut in half by a chunk
// boundary is held back in a small carry buffer and decoded together with
// the next chunk, so the output never depends on the chunk size. Leading
// zeros are counted rather than carried, which keeps the buffer bounded
// however heavily a reference is padded.
package convert

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/net/html/charset"

	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/core/ncr"
	"github.com/FocuswithJustin/ncrtxt/internal/logging"
)

// DefaultChunkSize is the read size used when none is given.
const DefaultChunkSize = 1 << 20

// Result describes one finished conversion.
type Result struct {
	RunID        string
	Input        string
	Output       string
	BytesRead    int64     // UTF-8 bytes read, after decompression and transcoding
	BytesWritten int64     // UTF-8 bytes written, before compression
	Chunks       int       // reads that returned data
	Stats        ncr.Stats // references handled
	Digest       string    // BLAKE3-256 of the written text, hex encoded
	Duration     time.Duration
}

// Option configures a Converter.
type Option func(*Converter)

// WithChunkSize sets how many bytes are read per iteration.
func WithChunkSize(n int) Option {
	return func(c *Converter) {
		c.chunkSize = n
	}
}

// WithDecoder replaces the default numeric-only decoder.
func WithDecoder(d *ncr.Decoder) Option {
	return func(c *Converter) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithLogger sets the logger used for progress and summary messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithAtomic makes ConvertFile write to a temporary file and rename it over
// the output only after the whole input converted cleanly.
func WithAtomic(atomic bool) Option {
	return func(c *Converter) {
		c.atomic = atomic
	}
}

// WithCharset transcodes the input from the named encoding before decoding
// references. "auto" sniffs the encoding from the first 1024 bytes; "" and
// "utf-8" read the input as UTF-8 and reject invalid bytes.
func WithCharset(name string) Option {
	return func(c *Converter) {
		c.charset = strings.ToLower(strings.TrimSpace(name))
	}
}

// Converter holds conversion settings. It has no per-file state and may be
// shared by concurrent conversions.
type Converter struct {
	chunkSize int
	decoder   *ncr.Decoder
	logger    *slog.Logger
	atomic    bool
	charset   string
}

// New returns a Converter, rejecting a non-positive chunk size or an
// unknown charset.
func New(opts ...Option) (*Converter, error) {
	c := &Converter{
		chunkSize: DefaultChunkSize,
		decoder:   ncr.NewDecoder(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.chunkSize <= 0 {
		return nil, cerrors.NewValidation("chunk_size", strconv.Itoa(c.chunkSize), "must be positive")
	}
	if !isUTF8(c.charset) && c.charset != "auto" {
		if enc, _ := charset.Lookup(c.charset); enc == nil {
			return nil, cerrors.NewUnsupported("charset", c.charset)
		}
	}
	return c, nil
}

// ChunkSize returns the configured read size.
func (c *Converter) ChunkSize() int {
	return c.chunkSize
}

// ConvertFile converts input into output with a numeric-only decoder.
// A chunkSize of zero or less selects DefaultChunkSize.
func ConvertFile(input, output string, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	c, err := New(WithChunkSize(chunkSize))
	if err != nil {
		return err
	}
	_, err = c.ConvertFile(context.Background(), input, output)
	return err
}

// ConvertFile converts the file at input and writes the result to output,
// creating output's parent directories as needed.
//
// A missing input, or one that is not a regular file, is reported as a
// *errors.NotFoundError before the output path is touched. Unless the
// converter is atomic, an output that is the input itself is rejected with
// a *errors.ValidationError.
func (c *Converter) ConvertFile(ctx context.Context, input, output string) (*Result, error) {
	if logging.GetRunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, logging.NewRunID())
	}
	logger := logging.LoggerFromContext(ctx, c.logger)

	info, err := osStat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &cerrors.NotFoundError{Path: input, Err: err}
		}
		return nil, cerrors.NewIO("stat", input, err)
	}
	if !info.Mode().IsRegular() {
		return nil, &cerrors.NotFoundError{Path: input, Reason: "is not a regular file"}
	}
	// Creating the output would truncate the input before it is read. An
	// atomic run only renames over it once everything has been read.
	if !c.atomic && isSameFile(info, output) {
		return nil, cerrors.NewValidation("output", output, "would overwrite its own input")
	}

	in, err := c.openInput(input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out, err := c.createOutput(output)
	if err != nil {
		return nil, err
	}

	logger.Debug("conversion started",
		"input", input,
		"output", output,
		"chunk_size", c.chunkSize,
		"atomic", c.atomic)

	res, err := c.convert(ctx, in.r, out.w, input)
	if err != nil {
		out.abort()
		return nil, err
	}
	if err := out.commit(); err != nil {
		out.abort()
		return nil, err
	}

	res.RunID = logging.GetRunID(ctx)
	res.Input = input
	res.Output = output

	logger.Info("conversion complete",
		"input", input,
		"output", output,
		"bytes_read", res.BytesRead,
		"bytes_written", res.BytesWritten,
		"chunks", res.Chunks,
		"decoded", res.Stats.Decoded,
		"invalid", res.Stats.Invalid,
		"named", res.Stats.Named,
		"blake3", res.Digest,
		"duration_ms", res.Duration.Milliseconds())

	return res, nil
}

// Convert decodes references from r and writes the result to w. r must
// yield UTF-8; w receives UTF-8. Nothing is closed or flushed.
func (c *Converter) Convert(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	res, err := c.convert(ctx, r, w, "")
	if err != nil {
		return nil, err
	}
	res.RunID = logging.GetRunID(ctx)
	return res, nil
}

func (c *Converter) convert(ctx context.Context, r io.Reader, w io.Writer, path string) (*Result, error) {
	start := time.Now()
	logger := logging.LoggerFromContext(ctx, c.logger)

	res := &Result{}
	hasher := blake3.New()
	cw := &countingWriter{w: io.MultiWriter(w, hasher)}
	cr := newChunkReader(r, c.chunkSize, path)

	window := c.decoder.MaxReferenceLen()
	pending := carry{buf: make([]byte, 0, window), digits: -1}
	var buf []byte

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := cr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		res.Chunks++

		buf = append(buf[:0], pending.buf...)
		buf = append(buf, chunk...)

		complete, tail := buf, buf[:0]
		if i := c.decoder.IncompleteTail(buf); i >= 0 {
			complete, tail = buf[:i], buf[i:]
		}

		var zeros int64
		if len(complete) == 0 {
			// The carried reference is still open.
			zeros = pending.zeros
		} else if err := c.emitCarried(cw, complete, pending, &res.Stats, path); err != nil {
			return nil, err
		}
		pending.set(tail, zeros)

		// Squeezed, a longer prefix has too many digits to decode.
		if len(pending.buf) > window {
			if err := c.emitCarried(cw, pending.buf, pending, &res.Stats, path); err != nil {
				return nil, err
			}
			pending.reset()
		}

		logger.Debug("chunk converted",
			"chunk", res.Chunks,
			"bytes", len(chunk),
			"carry", len(pending.buf),
			"carry_zeros", pending.zeros)
	}

	if err := c.emitCarried(cw, pending.buf, pending, &res.Stats, path); err != nil {
		return nil, err
	}

	res.BytesRead = cr.offset
	res.BytesWritten = cw.n
	res.Digest = hex.EncodeToString(hasher.Sum(nil))
	res.Duration = time.Since(start)
	return res, nil
}

// emit decodes text and writes it out.
func (c *Converter) emit(w io.Writer, text []byte, stats *ncr.Stats, path string) error {
	if len(text) == 0 {
		return nil
	}
	out, st := c.decoder.DecodeStats(string(text))
	stats.Add(st)
	if _, err := io.WriteString(w, out); err != nil {
		return cerrors.NewIO("write", path, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func isUTF8(name string) bool {
	return name == "" || name == "utf-8" || name == "utf8"
}

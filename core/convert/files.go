package convert

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/internal/validation"
)

// Injectable functions for testing
var (
	osStat       = os.Stat
	osOpen       = os.Open
	osCreate     = os.Create
	osCreateTemp = os.CreateTemp
	osMkdirAll   = os.MkdirAll
	osRename     = os.Rename
	osRemove     = os.Remove

	xzNewReader   = xz.NewReader
	xzNewWriter   = xz.NewWriter
	gzipNewReader = gzip.NewReader
)

const ioBufferSize = 64 << 10

// sniffLen is how much input the "auto" charset looks at.
const sniffLen = 1024

// isSameFile reports whether path names the file described by info.
func isSameFile(info os.FileInfo, path string) bool {
	other, err := osStat(path)
	return err == nil && os.SameFile(info, other)
}

type input struct {
	file    *os.File
	closers []io.Closer
	r       io.Reader
}

func (in *input) Close() error {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i].Close()
	}
	return in.file.Close()
}

// openInput opens path for reading, undoing any xz or gzip compression and
// transcoding to UTF-8 when a charset is configured.
func (c *Converter) openInput(path string) (*input, error) {
	f, err := osOpen(path)
	if err != nil {
		return nil, cerrors.NewIO("open", path, err)
	}
	in := &input{file: f}

	br := bufio.NewReaderSize(f, ioBufferSize)
	head, _ := br.Peek(validation.MagicLen)

	var r io.Reader = br
	switch validation.DetectCompression(head) {
	case validation.CompressionXZ:
		xr, err := xzNewReader(br)
		if err != nil {
			in.Close()
			return nil, cerrors.NewIO("decompress", path, err)
		}
		r = xr
	case validation.CompressionGzip:
		gr, err := gzipNewReader(br)
		if err != nil {
			in.Close()
			return nil, cerrors.NewIO("decompress", path, err)
		}
		in.closers = append(in.closers, gr)
		r = gr
	}

	in.r = c.transcode(r)
	return in, nil
}

// transcode wraps r so that it yields UTF-8.
func (c *Converter) transcode(r io.Reader) io.Reader {
	switch {
	case isUTF8(c.charset):
		return r
	case c.charset == "auto":
		br := bufio.NewReaderSize(r, ioBufferSize)
		head, _ := br.Peek(sniffLen)
		enc, name, _ := charset.DetermineEncoding(head, "")
		// An all-ASCII head says nothing about the rest, so read it as UTF-8.
		if name == "utf-8" || isASCII(head) {
			return br
		}
		return transform.NewReader(br, enc.NewDecoder())
	default:
		enc, name := charset.Lookup(c.charset)
		if name == "utf-8" {
			return r
		}
		return transform.NewReader(r, enc.NewDecoder())
	}
}

type output struct {
	path     string
	tempPath string
	file     *os.File
	codec    io.WriteCloser
	bw       *bufio.Writer
	w        io.Writer
}

// createOutput creates path, or a temporary sibling in atomic mode, with
// its parent directories. Names ending in .xz or .gz get compressed.
func (c *Converter) createOutput(path string) (*output, error) {
	dir := filepath.Dir(path)
	if err := osMkdirAll(dir, 0755); err != nil {
		return nil, cerrors.NewIO("create directory", dir, err)
	}

	out := &output{path: path}
	var err error
	if c.atomic {
		out.file, err = osCreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
		if err != nil {
			return nil, cerrors.NewIO("create", dir, err)
		}
		out.tempPath = out.file.Name()
	} else {
		out.file, err = osCreate(path)
		if err != nil {
			return nil, cerrors.NewIO("create", path, err)
		}
	}

	var w io.Writer = out.file
	switch validation.CompressionFromExtension(path) {
	case validation.CompressionXZ:
		xw, err := xzNewWriter(out.file)
		if err != nil {
			out.abort()
			return nil, cerrors.NewIO("compress", path, err)
		}
		out.codec = xw
		w = xw
	case validation.CompressionGzip:
		gw := gzip.NewWriter(out.file)
		out.codec = gw
		w = gw
	}

	out.bw = bufio.NewWriterSize(w, ioBufferSize)
	out.w = out.bw
	return out, nil
}

// commit flushes every layer, closes the file and, in atomic mode, moves
// it into place.
func (o *output) commit() error {
	if err := o.bw.Flush(); err != nil {
		return cerrors.NewIO("write", o.path, err)
	}
	if o.codec != nil {
		if err := o.codec.Close(); err != nil {
			return cerrors.NewIO("compress", o.path, err)
		}
		o.codec = nil
	}
	if o.tempPath != "" {
		if err := o.file.Chmod(0644); err != nil {
			return cerrors.NewIO("chmod", o.tempPath, err)
		}
	}
	err := o.file.Close()
	o.file = nil
	if err != nil {
		return cerrors.NewIO("close", o.path, err)
	}
	if o.tempPath != "" {
		if err := osRename(o.tempPath, o.path); err != nil {
			return cerrors.NewIO("rename", o.path, err)
		}
		o.tempPath = ""
	}
	return nil
}

// abort releases the output after a failure. Without atomic mode whatever
// was already written stays on disk.
func (o *output) abort() {
	if o.codec != nil {
		o.codec.Close()
		o.codec = nil
	}
	if o.file != nil {
		o.file.Close()
		o.file = nil
	}
	if o.tempPath != "" {
		osRemove(o.tempPath)
		o.tempPath = ""
	}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

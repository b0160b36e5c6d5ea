// Package stream opens tabular inputs and outputs, transparently handling
// gzip compression.
//
// Readers detect gzip either by the ".gz" suffix or by the two-byte gzip
// magic number, so a compressed file with a misleading name is still decoded.
// Writers pick the encoding from the suffix: ".gz" selects gzip at the
// default level, ".bgz" selects BGZF, and anything else is written as-is.
// Both directions are buffered.
package stream

import (
	"bufio"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// Stdout is the output path that callers interpret as the process's standard
// output. Open and Create never treat it specially.
const Stdout = "stdout"

const (
	bufSize = 64 << 10

	// BGZFSuffix selects BGZF encoding in Create.
	BGZFSuffix = ".bgz"
)

var gzipMagic = [2]byte{0x1f, 0x8b}

// reader closes the decoder (if any) and then the underlying file.
type reader struct {
	io.Reader
	ctx    context.Context
	dec    io.Closer
	in     file.File
	closed bool
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	e := errors.Once{}
	if r.dec != nil {
		e.Set(r.dec.Close())
	}
	e.Set(r.in.Close(r.ctx))
	return e.Err()
}

// IsGzip reports whether the given leading bytes carry the gzip magic
// number.
func IsGzip(head []byte) bool {
	return len(head) >= 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1]
}

// Open opens path for reading. The returned stream is decompressed if the
// path ends in ".gz" or the file starts with the gzip magic number. It is an
// error if the file cannot be opened, if its first two bytes cannot be read,
// or if a gzip stream is expected but the content is not gzip.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "stream.Open", path)
	}
	br := bufio.NewReaderSize(in.Reader(ctx), bufSize)
	head, err := br.Peek(2)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		_ = in.Close(ctx)
		return nil, errors.E(err, "stream.Open: read magic bytes", path)
	}
	r := &reader{Reader: br, ctx: ctx, in: in}
	if IsGzip(head) || fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = in.Close(ctx)
			return nil, errors.E(errors.Integrity, err, "stream.Open: not a gzip stream", path)
		}
		r.Reader, r.dec = gz, gz
	}
	return r, nil
}

// Output is a buffered output stream. Exactly one of Close or Discard must
// be called.
type Output interface {
	io.WriteCloser
	// Discard abandons the output. A file created by Create is not left
	// behind; for a writer from NewWriter, buffered data is dropped but data
	// already flushed stays written.
	Discard()
}

// writer flushes the buffer, closes the encoder (if any) and then the file.
type writer struct {
	*bufio.Writer
	ctx    context.Context
	enc    io.Closer
	out    file.File
	closed bool
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	e := errors.Once{}
	e.Set(w.Flush())
	if w.enc != nil {
		e.Set(w.enc.Close())
	}
	if w.out != nil {
		e.Set(w.out.Close(w.ctx))
	}
	return e.Err()
}

func (w *writer) Discard() {
	if w.closed {
		return
	}
	w.closed = true
	w.Reset(ioutil.Discard)
	if w.enc != nil {
		_ = w.enc.Close()
	}
	if w.out != nil {
		w.out.Discard(w.ctx)
	}
}

// Create creates path for writing. For a local path, missing parent
// directories are created first. A ".gz" path is gzip-compressed at the
// default level; a ".bgz" path is BGZF-compressed. The caller must Close the
// result to commit it, or Discard it.
func Create(ctx context.Context, path string) (Output, error) {
	scheme, _, err := file.ParsePath(path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "stream.Create", path)
	}
	if scheme == "" {
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			return nil, errors.E(err, "stream.Create: mkdir", filepath.Dir(path))
		}
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "stream.Create", path)
	}
	w := &writer{ctx: ctx, out: out}
	dst := out.Writer(ctx)
	switch {
	case strings.HasSuffix(path, BGZFSuffix):
		bw := bgzf.NewWriter(dst, 1)
		w.Writer, w.enc = bufio.NewWriterSize(bw, bufSize), bw
	case fileio.DetermineType(path) == fileio.Gzip:
		gz, err := gzip.NewWriterLevel(dst, gzip.DefaultCompression)
		if err != nil {
			_ = out.Close(ctx)
			return nil, errors.E(err, "stream.Create: gzip", path)
		}
		w.Writer, w.enc = bufio.NewWriterSize(gz, bufSize), gz
	default:
		w.Writer = bufio.NewWriterSize(dst, bufSize)
	}
	return w, nil
}

// CreateOutput is Create, except that the literal path Stdout yields a
// buffered writer on stdout. Closing that writer flushes it but leaves
// stdout open.
func CreateOutput(ctx context.Context, path string, stdout io.Writer) (Output, error) {
	if path == Stdout {
		return NewWriter(stdout), nil
	}
	return Create(ctx, path)
}

// NewWriter returns a buffered Output over w. Close flushes the buffer but
// does not close w.
func NewWriter(w io.Writer) Output {
	return &writer{Writer: bufio.NewWriterSize(w, bufSize)}
}

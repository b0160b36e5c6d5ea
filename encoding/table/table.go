// Package table reads delimited text tables into memory.
//
// A Table is a plain slice of rows. Row 0 is conventionally the header, but
// nothing here treats it specially, and rows are not required to have the
// same number of fields. There is no quoting: a delimiter always ends a
// field.
package table

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/regionomics/encoding/stream"
	pkgerrors "github.com/pkg/errors"
)

// Table is an ordered list of rows, each an ordered list of fields.
type Table [][]string

// Header returns row 0, or nil if the table is empty.
func (t Table) Header() []string {
	if len(t) == 0 {
		return nil
	}
	return t[0]
}

// Rows returns all rows after the header.
func (t Table) Rows() [][]string {
	if len(t) <= 1 {
		return nil
	}
	return t[1:]
}

// Parse reads r to EOF and splits every line on delim. Line terminators
// ("\n" or "\r\n") are stripped; a final line without a terminator is kept.
// An empty stream yields an empty table.
func Parse(r io.Reader, delim rune) (Table, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64<<10)
	}
	sep := string(delim)
	var t Table
	for lineIdx := 1; ; lineIdx++ {
		// ReadString grows as needed, so there is no line length limit.
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			t = append(t, strings.Split(line, sep))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "table.Parse: line %d", lineIdx)
		}
	}
	return t, nil
}

// ReadFile opens path with stream.Open, so gzip input is handled, and parses
// it with Parse.
func ReadFile(ctx context.Context, path string, delim rune) (t Table, err error) {
	in, err := stream.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if t, err = Parse(in, delim); err != nil {
		return nil, pkgerrors.Wrap(err, path)
	}
	log.Debug.Printf("%s: read %d rows", path, len(t))
	return t, nil
}

// ParseDelimiter converts a delimiter flag value into a rune. The empty
// string and the two-character escape `\t` both mean tab; otherwise the first
// character is used.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", `\t`:
		return '\t', nil
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("table.ParseDelimiter: invalid delimiter %q", s))
	}
	return r, nil
}

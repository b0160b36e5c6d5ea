package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/regionomics/encoding/stream"
)

// PosType is the coordinate type of an Entry.
type PosType uint64

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = PosType(math.MaxUint64)

// SubSat returns pos - d, or 0 if d > pos.
func SubSat(pos, d PosType) PosType {
	if d > pos {
		return 0
	}
	return pos - d
}

// AddSat returns pos + d, or PosTypeMax if the sum overflows.
func AddSat(pos, d PosType) PosType {
	if pos > PosTypeMax-d {
		return PosTypeMax
	}
	return pos + d
}

// Entry represents a single BED interval, with 0-based coordinates.
// Start <= End is not enforced.
type Entry struct {
	RefName string
	Start   PosType
	End     PosType
}

// String renders e as "<ref>:<start>-<end>".
func (e Entry) String() string {
	return e.RefName + ":" + strconv.FormatUint(uint64(e.Start), 10) + "-" + strconv.FormatUint(uint64(e.End), 10)
}

// Center returns the midpoint (start+end)/2, rounded down.
func (e Entry) Center() PosType {
	// Avoids overflowing start+end.
	return e.Start/2 + e.End/2 + (e.Start%2+e.End%2)/2
}

// BEDFile is the fully loaded content of one BED file. Entries are handed
// out in file order by Scan and Entry. The cursor only moves forward; once
// Scan returns false the BEDFile is spent.
//
// Example:
//   bed, err := interval.NewBEDFileFromPath(ctx, "peaks.bed.gz")
//   ...
//   for bed.Scan() {
//     e := bed.Entry()
//     ...
//   }
type BEDFile struct {
	entries []Entry
	// next is the index of the entry the next Scan call will expose.
	next int
	cur  Entry
}

// Len returns the number of entries loaded, independent of the cursor.
func (b *BEDFile) Len() int { return len(b.entries) }

// Scan advances the cursor. It returns false once all entries have been
// visited.
func (b *BEDFile) Scan() bool {
	if b.next >= len(b.entries) {
		b.cur = Entry{}
		return false
	}
	b.cur = b.entries[b.next]
	b.next++
	return true
}

// Entry returns the entry at the cursor.
//
// REQUIRES: the last Scan call returned true.
func (b *BEDFile) Entry() Entry { return b.cur }

// parseBEDLine parses the first three tab-separated fields of line.
func parseBEDLine(line string, lineIdx int) (Entry, error) {
	fields := strings.SplitN(line, "\t", 4)
	if len(fields) < 3 {
		return Entry{}, errors.E(errors.Invalid,
			fmt.Sprintf("interval.NewBEDFile: line %d has %d field(s), at least 3 required", lineIdx, len(fields)))
	}
	start, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Entry{}, errors.E(errors.Invalid, err,
			fmt.Sprintf("interval.NewBEDFile: invalid start coordinate %q on line %d", fields[1], lineIdx))
	}
	end, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return Entry{}, errors.E(errors.Invalid, err,
			fmt.Sprintf("interval.NewBEDFile: invalid end coordinate %q on line %d", fields[2], lineIdx))
	}
	return Entry{RefName: fields[0], Start: PosType(start), End: PosType(end)}, nil
}

// NewBEDFile reads every interval from a BED stream. Lines starting with '#'
// and blank lines are skipped. Any other line must carry at least three
// tab-separated fields (chrom, start, end) with non-negative integer
// coordinates; the first line that does not fails the whole load. Fields
// after the third are ignored.
func NewBEDFile(r io.Reader) (*BEDFile, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	b := &BEDFile{entries: make([]Entry, 0, 1024)}
	for lineIdx := 1; ; lineIdx++ {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.E(err, fmt.Sprintf("interval.NewBEDFile: line %d", lineIdx))
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" && line[0] != '#' {
			entry, perr := parseBEDLine(line, lineIdx)
			if perr != nil {
				return nil, perr
			}
			b.entries = append(b.entries, entry)
		}
		if err == io.EOF {
			break
		}
	}
	return b, nil
}

// NewBEDFileFromPath is a wrapper for NewBEDFile that takes a path instead
// of an io.Reader. Gzip input is decompressed transparently.
func NewBEDFileFromPath(ctx context.Context, path string) (b *BEDFile, err error) {
	in, err := stream.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if b, err = NewBEDFile(in); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("%s: BED loaded, %d interval(s).", path, b.Len())
	return b, nil
}

// Package merge left-joins an annotation table against a table of
// per-gene statistics.
//
// Every data row of the primary table is written once, extended with the
// stats row whose key column equals the primary row's gene column. Primary
// rows without a match are padded with Opts.NA. The stats columns are
// renamed "<stats file basename>_<column>" in the output header.
package merge

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/regionomics/encoding/table"
	pkgerrors "github.com/pkg/errors"
)

// Opts controls Merge.
type Opts struct {
	// KeyColumn selects the stats key column, either as a 0-based index or
	// as a header name.
	KeyColumn string
	// PrimaryKeyColumn is the 0-based index of the gene column in the
	// primary table.
	PrimaryKeyColumn int
	// NA fills the stats columns of unmatched rows.
	NA string
}

// DefaultOpts is the default Opts value. KeyColumn has no default.
var DefaultOpts = Opts{PrimaryKeyColumn: 1, NA: "na"}

// Stats summarizes a Merge run.
type Stats struct {
	// Rows is the number of primary data rows written.
	Rows int
	// Matched is the number of rows extended with a stats row.
	Matched int
	// Unmatched is the number of rows padded with Opts.NA.
	Unmatched int
}

// maxSuggestDistance is the largest edit distance at which ResolveColumn
// proposes a header name.
const maxSuggestDistance = 2

// ResolveColumn maps a column spec to a 0-based index into header. A
// non-negative integer spec is used as the index directly, without checking
// it against header. Otherwise spec must equal one of the header fields; the
// first such field wins.
func ResolveColumn(header []string, spec string) (int, error) {
	if idx, err := strconv.Atoi(spec); err == nil && idx >= 0 {
		return idx, nil
	}
	best, bestDist := "", maxSuggestDistance+1
	for i, name := range header {
		if name == spec {
			return i, nil
		}
		if d := matchr.Levenshtein(spec, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	msg := fmt.Sprintf("merge: column %q not found in header", spec)
	if best != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", best)
	}
	return 0, errors.E(errors.NotExist, msg)
}

// BuildIndex maps the value of column col of every stats data row to the
// row's position in stats, counting the header as position 0. When a key
// repeats, the last row wins. A row with no column col is an error.
func BuildIndex(stats table.Table, col int) (map[string]int, error) {
	index := make(map[string]int, len(stats))
	for pos := 1; pos < len(stats); pos++ {
		row := stats[pos]
		if col >= len(row) {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("merge: stats row %d has %d column(s), key column %d required", pos, len(row), col))
		}
		if prev, ok := index[row[col]]; ok {
			log.Debug.Printf("merge: key %q on stats row %d replaces row %d", row[col], pos, prev)
		}
		index[row[col]] = pos
	}
	return index, nil
}

// Merge writes the left join of primary and stats to w. statsName is the
// stats file name; its base name prefixes the stats columns in the header.
// Both tables must have a header row, except that an empty primary table
// produces no output.
func Merge(primary, stats table.Table, statsName string, w io.Writer, opts Opts) (Stats, error) {
	var s Stats
	statsHeader := stats.Header()
	if statsHeader == nil {
		return s, errors.E(errors.Invalid, "merge: stats table has no header row", statsName)
	}
	col, err := ResolveColumn(statsHeader, opts.KeyColumn)
	if err != nil {
		return s, errors.E(err, statsName)
	}
	index, err := BuildIndex(stats, col)
	if err != nil {
		return s, errors.E(err, statsName)
	}
	if len(primary) == 0 {
		log.Printf("merge: primary table is empty, nothing to write")
		return s, nil
	}

	tw := tsv.NewWriter(w)
	prefix := filepath.Base(statsName) + "_"
	for _, field := range primary.Header() {
		tw.WriteString(field)
	}
	for _, field := range statsHeader {
		tw.WriteString(prefix + field)
	}
	if err := tw.EndLine(); err != nil {
		return s, pkgerrors.Wrap(err, "merge: write header")
	}

	for i, row := range primary.Rows() {
		if opts.PrimaryKeyColumn >= len(row) {
			return s, errors.E(errors.Invalid,
				fmt.Sprintf("merge: primary row %d has %d column(s), key column %d required", i+1, len(row), opts.PrimaryKeyColumn))
		}
		for _, field := range row {
			tw.WriteString(field)
		}
		if pos, ok := index[row[opts.PrimaryKeyColumn]]; ok && pos > 0 && pos < len(stats) {
			for _, field := range stats[pos] {
				tw.WriteString(field)
			}
			s.Matched++
		} else {
			for range statsHeader {
				tw.WriteString(opts.NA)
			}
			s.Unmatched++
		}
		if err := tw.EndLine(); err != nil {
			return s, pkgerrors.Wrapf(err, "merge: write row %d", i+1)
		}
		s.Rows++
	}
	if err := tw.Flush(); err != nil {
		return s, pkgerrors.Wrap(err, "merge: flush")
	}
	log.Printf("merge: %d row(s), %d matched in %s, %d unmatched", s.Rows, s.Matched, statsName, s.Unmatched)
	return s, nil
}

// MergeFiles loads the tab-separated primary table and the stats table,
// whose fields are separated by sep, and merges them into w. Either file
// may be gzip-compressed.
func MergeFiles(ctx context.Context, primaryPath, statsPath string, w io.Writer, sep rune, opts Opts) (Stats, error) {
	primary, err := table.ReadFile(ctx, primaryPath, '\t')
	if err != nil {
		return Stats{}, err
	}
	stats, err := table.ReadFile(ctx, statsPath, sep)
	if err != nil {
		return Stats{}, err
	}
	return Merge(primary, stats, statsPath, w, opts)
}

// Package annotate links BED intervals to the genes around them.
//
// For every interval, the genes overlapping the interval padded by
// Opts.Padding on both sides are looked up in a GeneIndex, and one row per
// gene is written:
//
//   bed_region  gene_name  distance_to_bed_center  start  end
//
// distance_to_bed_center is the interval midpoint minus the gene start, so
// it is negative when the gene starts to the right of the midpoint. It is
// not the distance between the closest ends of interval and gene.
package annotate

import (
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/regionomics/interval"
)

// Gene is one annotation record returned by a GeneIndex query.
type Gene struct {
	Name string
	// Start and End are the gene coordinates exactly as stored in the
	// annotation source.
	Start, End int64
}

// GeneIndex answers "which genes lie within this region". An error from
// Query is local to that query.
type GeneIndex interface {
	// Query returns the genes on refName intersecting the closed range
	// [start, end].
	Query(refName string, start, end interval.PosType) ([]Gene, error)
}

// Header is the column header of Annotate's output.
var Header = []string{"bed_region", "gene_name", "distance_to_bed_center", "start", "end"}

// Opts controls Annotate.
type Opts struct {
	// Padding is added to both sides of each interval before querying.
	Padding interval.PosType
}

// DefaultOpts is the default Opts value.
var DefaultOpts = Opts{Padding: 1000}

// Stats summarizes an Annotate run.
type Stats struct {
	// Intervals is the number of BED intervals visited.
	Intervals int
	// Detected is the number of rows written, i.e. (interval, gene) pairs.
	Detected int
	// FailedQueries is the number of intervals skipped because the gene
	// index returned an error.
	FailedQueries int
}

// QueryRange returns the closed range searched for e: e padded by padding on
// both sides, with the start clamped at zero.
func QueryRange(e interval.Entry, padding interval.PosType) (start, end interval.PosType) {
	return interval.SubSat(e.Start, padding), interval.AddSat(e.End, padding)
}

// Distance returns the signed offset of the gene start from the interval
// midpoint.
func Distance(e interval.Entry, g Gene) int64 {
	return int64(e.Center()) - g.Start
}

// Annotate consumes bed, writing the header and then one row per (interval,
// gene) pair to w, in BED order and then in the order the index returned the
// genes. A failed query is logged and its interval skipped; a failed write
// aborts the run.
func Annotate(bed *interval.BEDFile, index GeneIndex, w io.Writer, opts Opts) (Stats, error) {
	var stats Stats
	tw := tsv.NewWriter(w)
	for _, col := range Header {
		tw.WriteString(col)
	}
	if err := tw.EndLine(); err != nil {
		return stats, errors.E(err, "annotate: write header")
	}
	for bed.Scan() {
		entry := bed.Entry()
		stats.Intervals++
		start, end := QueryRange(entry, opts.Padding)
		genes, err := index.Query(entry.RefName, start, end)
		if err != nil {
			log.Error.Printf("annotate: gene query for %v failed, skipping: %v", entry, err)
			stats.FailedQueries++
			continue
		}
		region := entry.String()
		for _, gene := range genes {
			tw.WriteString(region)
			tw.WriteString(gene.Name)
			tw.WriteString(strconv.FormatInt(Distance(entry, gene), 10))
			tw.WriteString(strconv.FormatInt(gene.Start, 10))
			tw.WriteString(strconv.FormatInt(gene.End, 10))
			if err := tw.EndLine(); err != nil {
				return stats, errors.E(err, "annotate: write row for", region)
			}
			stats.Detected++
		}
	}
	if err := tw.Flush(); err != nil {
		return stats, errors.E(err, "annotate: flush")
	}
	log.Printf("annotate: %d interval(s), %d gene link(s), %d failed quer(ies)",
		stats.Intervals, stats.Detected, stats.FailedQueries)
	return stats, nil
}

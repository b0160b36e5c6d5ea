// Package gtf implements annotate.GeneIndex on top of a GTF annotation.
//
// Features of one type (genes by default) are read from the GTF and stored
// in one interval tree per chromosome. Coordinates are kept as written in
// the GTF (1-based, closed).
package gtf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/regionomics/annotate"
	"github.com/grailbio/regionomics/encoding/stream"
	bed "github.com/grailbio/regionomics/interval"
)

// Opts controls which GTF records become genes.
type Opts struct {
	// Feature is the value of the GTF feature column (column 3) to index.
	Feature string
	// NameAttr is the attribute holding the reported gene name. Records
	// without it fall back to gene_id.
	NameAttr string
}

// DefaultOpts is the default Opts value.
var DefaultOpts = Opts{Feature: "gene", NameAttr: "gene_name"}

// record stores data read from one line of the GTF file.
type record struct {
	Chrom    string
	Source   string
	Molecule string
	Start    int
	Stop     int
	Score    string // unused floating point value, but may be "."
	Strand   string
	Frame    string
	Fields   string
}

// parseInfoFields parses the attribute column of a record into key/value
// pairs, e.g. `gene_id "ENSG1.1"; gene_name "A1BG";`.
func parseInfoFields(parsedInfo map[string]string, info string) {
	for k := range parsedInfo {
		delete(parsedInfo, k)
	}
	for _, field := range strings.Split(strings.TrimSpace(info), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pair := strings.SplitN(field, " ", 2)
		if len(pair) != 2 {
			continue
		}
		parsedInfo[pair[0]] = strings.Trim(strings.TrimSpace(pair[1]), "\"")
	}
}

// geneInterval is the interval tree element. The tree range is half-open,
// so a closed GTF range [Start, End] is stored as [Start, End+1).
type geneInterval struct {
	gene annotate.Gene
	uid  uintptr
}

func (g geneInterval) Overlap(b interval.IntRange) bool {
	return int(g.gene.Start) < b.End && b.Start < int(g.gene.End)+1
}

func (g geneInterval) ID() uintptr { return g.uid }

func (g geneInterval) Range() interval.IntRange {
	return interval.IntRange{Start: int(g.gene.Start), End: int(g.gene.End) + 1}
}

// query is a closed range [start, end] in the half-open tree space.
type query struct{ start, limit int }

func (q query) Overlap(b interval.IntRange) bool {
	return b.Start < q.limit && q.start < b.End
}

// Index is a GeneIndex backed by per-chromosome interval trees. It is
// read-only after Load.
type Index struct {
	trees map[string]*interval.IntTree
	nGene int
}

var _ annotate.GeneIndex = (*Index)(nil)

// Len returns the number of genes indexed.
func (x *Index) Len() int { return x.nGene }

// Query implements annotate.GeneIndex. Genes are returned in order of their
// start coordinate, ties broken by their order in the GTF. Querying a
// chromosome absent from the annotation is an error.
func (x *Index) Query(refName string, start, end bed.PosType) ([]annotate.Gene, error) {
	tree, ok := x.trees[refName]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("gtf: no genes on chromosome %q", refName))
	}
	if end < start {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("gtf: inverted query range %s:%d-%d", refName, start, end))
	}
	q := query{start: clampInt(start), limit: clampInt(end)}
	if q.limit < maxInt {
		q.limit++
	}
	hits := tree.Get(q)
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].(geneInterval), hits[j].(geneInterval)
		if a.gene.Start != b.gene.Start {
			return a.gene.Start < b.gene.Start
		}
		return a.uid < b.uid
	})
	genes := make([]annotate.Gene, len(hits))
	for i, h := range hits {
		genes[i] = h.(geneInterval).gene
	}
	return genes, nil
}

const maxInt = int(^uint(0) >> 1)

func clampInt(p bed.PosType) int {
	if uint64(p) > uint64(maxInt) {
		return maxInt
	}
	return int(p)
}

// NewIndex reads a GTF stream and indexes the records selected by opts.
func NewIndex(r io.Reader, opts Opts) (*Index, error) {
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.Comment = '#'
	scanner.LazyQuotes = true

	x := &Index{trees: map[string]*interval.IntTree{}}
	fields := map[string]string{}
	var (
		line  record
		nLine int
	)
	for {
		if err := scanner.Read(&line); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("gtf: record %d", nLine+1))
		}
		nLine++
		if line.Molecule != opts.Feature {
			continue
		}
		parseInfoFields(fields, line.Fields)
		name := fields[opts.NameAttr]
		if name == "" {
			name = fields["gene_id"]
		}
		if name == "" {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("gtf: record %d (%s:%d-%d) has neither %s nor gene_id", nLine, line.Chrom, line.Start, line.Stop, opts.NameAttr))
		}
		tree, ok := x.trees[line.Chrom]
		if !ok {
			tree = &interval.IntTree{}
			x.trees[line.Chrom] = tree
		}
		g := geneInterval{
			gene: annotate.Gene{Name: name, Start: int64(line.Start), End: int64(line.Stop)},
			uid:  uintptr(x.nGene),
		}
		if err := tree.Insert(g, false); err != nil {
			return nil, errors.E(errors.Invalid, err,
				fmt.Sprintf("gtf: record %d (%s %s:%d-%d)", nLine, name, line.Chrom, line.Start, line.Stop))
		}
		x.nGene++
	}
	log.Printf("gtf: indexed %d %s record(s) on %d chromosome(s) out of %d record(s)",
		x.nGene, opts.Feature, len(x.trees), nLine)
	return x, nil
}

// Load reads and indexes the GTF at path, which may be gzip-compressed.
func Load(ctx context.Context, path string, opts Opts) (x *Index, err error) {
	in, err := stream.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if x, err = NewIndex(in, opts); err != nil {
		return nil, errors.E(err, path)
	}
	return x, nil
}

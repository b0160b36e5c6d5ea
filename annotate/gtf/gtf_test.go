package gtf

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/regionomics/annotate"
	"github.com/grailbio/regionomics/encoding/stream"
	bed "github.com/grailbio/regionomics/interval"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const testGTF = `##description: test annotation
chr1	HAVANA	gene	80	260	.	+	.	gene_id "ENSG1.1"; gene_type "protein_coding"; gene_name "G1";
chr1	HAVANA	transcript	80	260	.	+	.	gene_id "ENSG1.1"; transcript_id "ENST1.1"; gene_name "G1";
chr1	HAVANA	exon	80	120	.	+	.	gene_id "ENSG1.1"; transcript_id "ENST1.1"; gene_name "G1";
chr1	HAVANA	gene	500	900	.	-	.	gene_id "ENSG2.1"; gene_name "G2";
chr1	HAVANA	gene	10	40	.	+	.	gene_id "ENSG3.1"; gene_name "G3";
chr1	ENSEMBL	gene	500	600	.	+	.	gene_id "ENSG4.1";
chr2	HAVANA	gene	1000	2000	.	+	.	gene_id "ENSG5.1"; gene_name "G5";
`

func genes(t *testing.T, x *Index, ref string, start, end uint64) []annotate.Gene {
	got, err := x.Query(ref, bed.PosType(start), bed.PosType(end))
	assert.NoError(t, err)
	return got
}

func TestParseInfoFields(t *testing.T) {
	fields := map[string]string{"stale": "x"}
	parseInfoFields(fields, ` gene_id "ENSG1.1"; gene_name "G1"; level 2; tag "basic";`)
	expect.EQ(t, fields, map[string]string{
		"gene_id":   "ENSG1.1",
		"gene_name": "G1",
		"level":     "2",
		"tag":       "basic",
	})
}

func TestNewIndex(t *testing.T) {
	x, err := NewIndex(strings.NewReader(testGTF), DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, x.Len(), 5)

	// Sorted by start, ties in file order; ENSG4.1 has no gene_name.
	expect.EQ(t, genes(t, x, "chr1", 0, 1000), []annotate.Gene{
		{Name: "G3", Start: 10, End: 40},
		{Name: "G1", Start: 80, End: 260},
		{Name: "G2", Start: 500, End: 900},
		{Name: "ENSG4.1", Start: 500, End: 600},
	})
	expect.EQ(t, genes(t, x, "chr1", 50, 150), []annotate.Gene{{Name: "G1", Start: 80, End: 260}})
	// GTF ranges are closed at both ends.
	expect.EQ(t, genes(t, x, "chr1", 260, 300), []annotate.Gene{{Name: "G1", Start: 80, End: 260}})
	expect.EQ(t, genes(t, x, "chr1", 41, 79), []annotate.Gene{})
	expect.EQ(t, genes(t, x, "chr1", 40, 40), []annotate.Gene{{Name: "G3", Start: 10, End: 40}})
	expect.EQ(t, genes(t, x, "chr2", 0, 999), []annotate.Gene{})
	expect.EQ(t, genes(t, x, "chr2", 1500, 1500), []annotate.Gene{{Name: "G5", Start: 1000, End: 2000}})
}

func TestQueryErrors(t *testing.T) {
	x, err := NewIndex(strings.NewReader(testGTF), DefaultOpts)
	assert.NoError(t, err)

	_, err = x.Query("chrM", 0, 100)
	expect.True(t, errors.Is(errors.NotExist, err))
	_, err = x.Query("chr1", 100, 50)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestNewIndexFeature(t *testing.T) {
	x, err := NewIndex(strings.NewReader(testGTF), Opts{Feature: "exon", NameAttr: "transcript_id"})
	assert.NoError(t, err)
	expect.EQ(t, x.Len(), 1)
	expect.EQ(t, genes(t, x, "chr1", 0, 1000), []annotate.Gene{{Name: "ENST1.1", Start: 80, End: 120}})
}

func TestNewIndexNoName(t *testing.T) {
	_, err := NewIndex(strings.NewReader("chr1\tX\tgene\t1\t10\t.\t+\t.\tlevel 2;\n"), DefaultOpts)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestLoad(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	path := filepath.Join(tmpDir, "annotation.gtf.gz")
	w, err := stream.Create(ctx, path)
	assert.NoError(t, err)
	_, err = w.Write([]byte(testGTF))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	x, err := Load(ctx, path, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, x.Len(), 5)

	_, err = Load(ctx, filepath.Join(tmpDir, "missing.gtf"), DefaultOpts)
	expect.NotNil(t, err)
}

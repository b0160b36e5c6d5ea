// bio-regionomics links BED intervals to nearby genes and joins the result
// with per-gene statistics tables.
//
// Usage:
//
//	bio-regionomics annotate -bed peaks.bed.gz -gtf gencode.gtf.gz -outfile peaks_genes.tsv
//	bio-regionomics fisher -regulatos-output peaks_genes.tsv -stats-file deseq.csv -sep , -gene-col gene_id
package main

import "github.com/grailbio/regionomics/cmd/bio-regionomics/cmd"

func main() {
	cmd.Run()
}

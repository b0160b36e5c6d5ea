package cmd

import (
	"fmt"
	"log"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/regionomics/annotate"
	"github.com/grailbio/regionomics/annotate/gtf"
	"github.com/grailbio/regionomics/encoding/stream"
	"v.io/x/lib/cmdline"
)

func newCmdAnnotate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "annotate",
		Short: "Link BED intervals to the genes within a distance of them",
		Long: `
Writes one row per (interval, gene) pair, for every gene of the GTF annotation
overlapping the interval extended by -distance on both sides:

  bed_region  gene_name  distance_to_bed_center  start  end

distance_to_bed_center is the interval midpoint minus the gene start.
Inputs may be gzip-compressed. The output is gzip-compressed if -outfile ends
in .gz and BGZF-compressed if it ends in .bgz.`,
	}
	flags := annotateFlags{
		bedPath:  cmd.Flags.String("bed", "", "Input BED file. Only the first three columns are used."),
		gtfPath:  cmd.Flags.String("gtf", "", "Input GTF gene annotation."),
		outPath:  cmd.Flags.String("outfile", stream.Stdout, `Output TSV path, or "stdout".`),
		distance: cmd.Flags.Uint64("distance", uint64(annotate.DefaultOpts.Padding), "Padding added to both sides of each interval before searching for genes."),
		feature:  cmd.Flags.String("feature", gtf.DefaultOpts.Feature, "GTF feature type (column 3) to report."),
		nameAttr: cmd.Flags.String("name-attr", gtf.DefaultOpts.NameAttr, "GTF attribute holding the reported name. Falls back to gene_id."),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("annotate takes no positional arguments, but got %v", argv)
		}
		if *flags.bedPath == "" || *flags.gtfPath == "" {
			return fmt.Errorf("annotate: -bed and -gtf are required")
		}
		return runAnnotate(vcontext.Background(), env, flags)
	})
	return cmd
}

func newCmdFisher() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "fisher",
		Short: "Join an annotate output with a table of per-gene statistics",
		Long: `
Left-joins the rows of -regulatos-output (the TSV written by "annotate") with
the rows of -stats-file whose -gene-col value equals the row's gene_name.
Every stats column is appended, renamed <stats file name>_<column>. Rows
without a match get "na" in each stats column. When a gene appears more than
once in the stats file, its last row is used.`,
	}
	flags := fisherFlags{
		primaryPath: cmd.Flags.String("regulatos-output", "", "TSV written by the annotate command."),
		statsPath:   cmd.Flags.String("stats-file", "", "Delimited table of per-gene statistics, with a header row."),
		geneCol:     cmd.Flags.String("gene-col", "", "Gene column of -stats-file, as a header name or a 0-based index."),
		outPath:     cmd.Flags.String("outfile", stream.Stdout, `Output TSV path, or "stdout".`),
		sep:         cmd.Flags.String("sep", `\t`, `Field separator of -stats-file. "\t" denotes a tab.`),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("fisher takes no positional arguments, but got %v", argv)
		}
		if *flags.primaryPath == "" || *flags.statsPath == "" || *flags.geneCol == "" {
			return fmt.Errorf("fisher: -regulatos-output, -stats-file and -gene-col are required")
		}
		return runFisher(vcontext.Background(), env, flags)
	})
	return cmd
}

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-regionomics",
		Short:    "Tools for linking genomic regions to genes and gene statistics",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdAnnotate(),
			newCmdFisher(),
		},
	}
}

// Run is the bio-regionomics entry point.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}

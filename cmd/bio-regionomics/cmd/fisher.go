package cmd

import (
	"context"
	"fmt"

	"github.com/grailbio/regionomics/encoding/stream"
	"github.com/grailbio/regionomics/encoding/table"
	"github.com/grailbio/regionomics/merge"
	"v.io/x/lib/cmdline"
)

type fisherFlags struct {
	primaryPath *string
	statsPath   *string
	geneCol     *string
	outPath     *string
	sep         *string
}

func runFisher(ctx context.Context, env *cmdline.Env, flags fisherFlags) (err error) {
	sep, err := table.ParseDelimiter(*flags.sep)
	if err != nil {
		return err
	}
	opts := merge.DefaultOpts
	opts.KeyColumn = *flags.geneCol
	out, err := stream.CreateOutput(ctx, *flags.outPath, env.Stdout)
	if err != nil {
		return err
	}
	_, err = merge.MergeFiles(ctx, *flags.primaryPath, *flags.statsPath, out, sep, opts)
	if err != nil {
		out.Discard()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintln(summaryWriter(env, *flags.outPath), "Finished!")
	return nil
}

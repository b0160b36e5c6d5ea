package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/regionomics/annotate"
	"github.com/grailbio/regionomics/annotate/gtf"
	"github.com/grailbio/regionomics/encoding/stream"
	"github.com/grailbio/regionomics/interval"
	"v.io/x/lib/cmdline"
)

type annotateFlags struct {
	bedPath  *string
	gtfPath  *string
	outPath  *string
	distance *uint64
	feature  *string
	nameAttr *string
}

// summaryWriter returns where the end-of-run message goes: stdout, unless
// the table itself is being written there.
func summaryWriter(env *cmdline.Env, outPath string) io.Writer {
	if outPath == stream.Stdout {
		return env.Stderr
	}
	return env.Stdout
}

func runAnnotate(ctx context.Context, env *cmdline.Env, flags annotateFlags) (err error) {
	bed, err := interval.NewBEDFileFromPath(ctx, *flags.bedPath)
	if err != nil {
		return err
	}
	index, err := gtf.Load(ctx, *flags.gtfPath, gtf.Opts{Feature: *flags.feature, NameAttr: *flags.nameAttr})
	if err != nil {
		return err
	}
	out, err := stream.CreateOutput(ctx, *flags.outPath, env.Stdout)
	if err != nil {
		return err
	}
	stats, err := annotate.Annotate(bed, index, out, annotate.Opts{Padding: interval.PosType(*flags.distance)})
	if err != nil {
		out.Discard()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	w := summaryWriter(env, *flags.outPath)
	fmt.Fprintf(w, "Detected %d genes potentially linked to the bed entries:\n", stats.Detected)
	fmt.Fprintf(w, "written to %s\n", *flags.outPath)
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/urlcanary/internal/canary"
	"github.com/hazz-dev/urlcanary/internal/probe"
)

type stepRunner interface {
	Run(ctx context.Context, req probe.Request) canary.Report
}

func executeRun(cmd *cobra.Command, r stepRunner, req probe.Request) error {
	return runOnce(cmd.OutOrStdout(), r, req)
}

// runOnce runs a single step and prints it. It returns an error when the
// step failed so the process exits non-zero.
func runOnce(out io.Writer, r stepRunner, req probe.Request) error {
	rep := r.Run(context.Background(), req)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTARGET\tRESULT\tSTATUS\tELAPSED\tMESSAGE")

	status := "—"
	if rep.Outcome.StatusCode != 0 {
		status = fmt.Sprintf("%d", rep.Outcome.StatusCode)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		rep.Step,
		rep.Target,
		rep.Outcome.Kind,
		status,
		rep.Elapsed.Round(time.Millisecond),
		rep.Outcome.Message,
	)
	w.Flush()

	if err := rep.Err(); err != nil {
		return fmt.Errorf("step %q failed: %w", rep.Step, err)
	}
	return nil
}

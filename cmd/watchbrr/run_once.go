// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/watchbrr/internal/services/pipeline"
	"github.com/autobrr/watchbrr/internal/services/scheduler"
)

func RunOnceCommand() *cobra.Command {
	var (
		flags  configFlags
		dryRun bool
	)

	command := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single cycle and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.Config.DryRun = dryRun
			}
			cfg.ApplyLogConfig()

			app, err := newApplication(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.close()

			sched := scheduler.NewService(scheduler.DefaultConfig(), app.watchlists, app.orchestrator)
			report, err := sched.RunNow(cmd.Context())
			if err != nil {
				return err
			}

			writeReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	flags.register(command)
	command.Flags().BoolVar(&dryRun, "dry-run", false, "log the chosen releases without submitting them (overrides config)")

	return command
}

func writeReport(out io.Writer, report pipeline.CycleReport) {
	mode := ""
	if report.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "Cycle finished in %s%s: %d items\n", report.Duration().Round(time.Millisecond), mode, len(report.Outcomes))

	for source, msg := range report.SourceErrors {
		fmt.Fprintf(out, "Source %s failed: %s\n", source, msg)
	}

	if len(report.Outcomes) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATE\tREASON\tRELEASE")
	for _, o := range report.Outcomes {
		release := ""
		if o.Chosen != nil {
			release = o.Chosen.Title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Item.ExternalID, o.Item.Title, o.State, o.Reason, release)
	}
	w.Flush()

	reasons := make([]string, 0, len(report.Reasons))
	for reason := range report.Reasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	fmt.Fprintf(out, "Submitted: %d, skipped: %d\n", report.Counts[pipeline.StateSubmitted], report.Counts[pipeline.StateSkipped])
	for _, reason := range reasons {
		fmt.Fprintf(out, "  %s: %d\n", reason, report.Reasons[pipeline.Reason(reason)])
	}
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/watchbrr/pkg/realdebrid"
)

func RunDebridCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debrid",
		Short: "Inspect the Real-Debrid account",
	}

	cmd.AddCommand(runDebridTorrentsCommand())
	return cmd
}

func runDebridTorrentsCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "torrents",
		Short: "List the torrents on the Real-Debrid account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			conf := cfg.Current()
			if conf.RealDebridToken == "" {
				return errors.New("realDebridToken is not configured")
			}

			torrents, err := newRealDebridClient(conf).UserTorrents(cmd.Context())
			if err != nil {
				return err
			}

			return writeTorrents(cmd.OutOrStdout(), torrents)
		},
	}

	flags.register(cmd)
	return cmd
}

func writeTorrents(out io.Writer, torrents []realdebrid.Torrent) error {
	if len(torrents) == 0 {
		fmt.Fprintln(out, "No torrents")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tPROGRESS\tSIZE (GB)\tADDED")
	for _, t := range torrents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%.2f\t%s\n",
			t.ID, t.Filename, t.Status, t.Progress, float64(t.Bytes)/(1<<30), t.Added.Local().Format(time.DateTime))
	}
	return w.Flush()
}

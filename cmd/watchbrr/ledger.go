// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/watchbrr/internal/database"
	"github.com/autobrr/watchbrr/internal/models"
)

func RunLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect processed watchlist items",
	}

	cmd.AddCommand(runLedgerListCommand())
	return cmd
}

func runLedgerListCommand() *cobra.Command {
	var (
		flags  configFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every item that was submitted to a backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			db, err := database.New(cfg.GetDatabasePath())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			items, err := models.NewProcessedItemStore(db).List(cmd.Context())
			if err != nil {
				return err
			}

			return writeLedger(cmd.OutOrStdout(), items, format)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")

	return cmd
}

func writeLedger(out io.Writer, items []*models.ProcessedItem, format string) error {
	if items == nil {
		items = []*models.ProcessedItem{}
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if len(items) == 0 {
			fmt.Fprintln(out, "No processed items")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tBACKEND\tRELEASE\tPROCESSED")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				item.ExternalID, item.Title, item.MediaType, item.Backend, item.ReleaseTitle,
				item.ProcessedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown format %q, expected text, json or yaml", format)
	}
}

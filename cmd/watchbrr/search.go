// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/services/indexer"
	"github.com/autobrr/watchbrr/pkg/releases"
)

func RunSearchCommand() *cobra.Command {
	var (
		flags       configFlags
		mediaType   string
		title       string
		indexerName string
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "search <imdb-id>",
		Short: "Search the indexers and show the release the quality policy would pick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			conf := cfg.Current()
			if err := conf.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			app := &application{cfg: cfg, parser: releases.NewDefaultParser()}
			indexers, err := app.buildIndexers(conf)
			if err != nil {
				return err
			}
			policy, ranker, err := buildSelection(conf, app.parser)
			if err != nil {
				return err
			}

			item := models.WatchlistItem{
				Title:      title,
				ExternalID: strings.TrimSpace(args[0]),
				MediaType:  models.ParseMediaType(mediaType),
			}

			found, err := searchReleases(cmd.Context(), indexers, item, indexerName, all)
			if err != nil {
				return err
			}

			chosen, ok, err := policy.Select(item, found, ranker)
			if err != nil {
				return err
			}
			return writeSearch(cmd.OutOrStdout(), found, chosen, ok)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&mediaType, "type", string(models.MediaTypeMovie), "media type: movie, show or episode")
	cmd.Flags().StringVar(&title, "title", "", "title used for similarity checks and text searches")
	cmd.Flags().StringVar(&indexerName, "indexer", "", "query only this indexer")
	cmd.Flags().BoolVar(&all, "all", false, "query every configured indexer")
	return cmd
}

func searchReleases(ctx context.Context, m *indexer.Manager, item models.WatchlistItem, name string, all bool) ([]models.Release, error) {
	if name != "" {
		found, err := m.Search(ctx, name, item.ExternalID, item.MediaType, item.Title)
		if errors.Is(err, indexer.ErrIndexerNotFound) {
			return nil, fmt.Errorf("%w (configured: %s)", err, strings.Join(m.Names(), ", "))
		}
		return found, err
	}

	m.SetFanOut(all)
	return m.FindReleases(ctx, item.ExternalID, item.MediaType, item.Title)
}

func writeSearch(out io.Writer, found []models.Release, chosen models.Release, ok bool) error {
	if len(found) == 0 {
		fmt.Fprintln(out, "No releases found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tTITLE\tRESOLUTION\tSIZE (GB)\tPEERS\tINDEXER")
	for _, r := range found {
		mark := ""
		if ok && r.ContentHash == chosen.ContentHash && r.Title == chosen.Title {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n", mark, r.Title, r.Resolution, r.SizeGB, r.PeerCount, r.Indexer)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !ok {
		fmt.Fprintln(out, "\nNo release matches the quality policy")
		return nil
	}
	fmt.Fprintf(out, "\nSelected: %s\n", chosen.Title)
	return nil
}

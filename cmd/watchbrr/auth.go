// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/autobrr/watchbrr/internal/services/watchlist/trakt"
)

// isInteractive is replaced in tests.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func RunAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize watchlist sources",
	}

	cmd.AddCommand(runAuthTraktCommand())
	return cmd
}

func runAuthTraktCommand() *cobra.Command {
	var (
		flags configFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "trakt",
		Short: "Authorize watchbrr with your Trakt account using a device code",
		Long: `Authorize watchbrr with your Trakt account.

Prints a verification URL and a code. Open the URL in any browser, enter the
code and approve the app; the token is stored in the data directory and
refreshed automatically afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force && !isInteractive() {
				return errors.New("stdin is not a terminal; use --force to authorize anyway")
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			conf := cfg.Current()
			if conf.TraktClientID == "" || conf.TraktClientSecret == "" {
				return errors.New("traktClientId and traktClientSecret must be configured")
			}

			client, err := newTraktClient(conf, cfg.GetDataDir())
			if err != nil {
				return err
			}

			if client.HasCredential() && !force {
				cmd.Printf("A Trakt token already exists at %s\n", client.TokenPath())
				cmd.Println("Use --force to replace it.")
				return nil
			}

			token, err := client.ObtainCredential(cmd.Context(), func(code trakt.DeviceCode) {
				cmd.Printf("Open %s and enter the code: %s\n", code.VerificationURL, code.UserCode)
				cmd.Printf("The code expires in %s.\n", time.Duration(code.ExpiresIn)*time.Second)
			})
			if err != nil {
				return err
			}

			cmd.Printf("Trakt authorized, token saved to %s (expires %s)\n", client.TokenPath(), token.Expiry.Format(time.RFC3339))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "authorize without a terminal and replace an existing token")

	return cmd
}

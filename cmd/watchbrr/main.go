// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autobrr/watchbrr/internal/buildinfo"
	"github.com/autobrr/watchbrr/internal/config"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "watchbrr",
		Short: "Turn Trakt and Plex watchlists into downloads",
		Long: `watchbrr - reads your watchlists, searches torrent indexers for each title,
picks the best release for your quality policy and hands it to Real-Debrid
or qBittorrent.`,
		SilenceUsage: true,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunOnceCommand())
	rootCmd.AddCommand(RunAuthCommand())
	rootCmd.AddCommand(RunLedgerCommand())
	rootCmd.AddCommand(RunDebridCommand())
	rootCmd.AddCommand(RunSearchCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	return rootCmd
}

// configFlags are shared by every command that loads the configuration.
type configFlags struct {
	configDir string
	dataDir   string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/watchbrr/ or %APPDATA%\\watchbrr\\). Can also be a direct path to a .toml file")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "data directory for the ledger database and tokens (default is next to config file)")
}

func (f *configFlags) load() (*config.AppConfig, error) {
	cfg, err := config.New(f.configDir, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}
	if f.dataDir != "" {
		cfg.SetDataDir(f.dataDir)
	}
	return cfg, nil
}

func RunVersionCommand(version string) *cobra.Command {
	var asJSON bool

	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of watchbrr",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			out, err := buildinfo.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	command.Flags().BoolVar(&asJSON, "json", false, "print version, commit and build date as JSON")

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the service.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/watchbrr/config.toml
- Windows: %APPDATA%\watchbrr\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			switch {
			case configDir == "":
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			case strings.HasSuffix(strings.ToLower(configDir), ".toml"):
				configPath = configDir
			default:
				if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

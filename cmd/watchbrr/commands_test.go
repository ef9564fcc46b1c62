// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/watchbrr/internal/config"
	"github.com/autobrr/watchbrr/internal/database"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/services/pipeline"
)

func prepareConfigDir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, config.WriteDefaultConfig(filepath.Join(dir, "config.toml")))
}

func mustRunCommand(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	output, err := runCommand(cmd, args...)
	require.NoError(t, err)
	return output
}

func runCommand(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func seedLedger(t *testing.T, configDir string, items ...*models.ProcessedItem) {
	t.Helper()

	db, err := database.New(filepath.Join(configDir, "watchbrr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := models.NewProcessedItemStore(db)
	for _, item := range items {
		require.NoError(t, store.Insert(context.Background(), item))
	}
	require.NoError(t, db.Close())
}

func TestGenerateConfigCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")

	output := mustRunCommand(t, RunGenerateConfigCommand(), "--config-dir", dir)
	assert.Contains(t, output, "Configuration file created successfully")
	assert.FileExists(t, filepath.Join(dir, "config.toml"))

	output = mustRunCommand(t, RunGenerateConfigCommand(), "--config-dir", dir)
	assert.Contains(t, output, "already exists")
}

func TestVersionCommand(t *testing.T) {
	output := mustRunCommand(t, RunVersionCommand("1.2.3"))
	assert.Equal(t, "1.2.3\n", output)

	output = mustRunCommand(t, RunVersionCommand("1.2.3"), "--json")
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Contains(t, info, "version")
}

func TestLedgerListCommand(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")
	prepareConfigDir(t, configDir)

	seedLedger(t, configDir,
		&models.ProcessedItem{
			ExternalID:   "tt0111161",
			Title:        "The Shawshank Redemption",
			MediaType:    models.MediaTypeMovie,
			ContentHash:  "abc",
			ReleaseTitle: "The.Shawshank.Redemption.1994.1080p.BluRay.x264",
			Backend:      "realdebrid",
			BackendID:    "RD1",
		},
	)

	t.Run("text", func(t *testing.T) {
		output := mustRunCommand(t, RunLedgerCommand(), "list", "--config-dir", configDir)
		assert.Contains(t, output, "tt0111161")
		assert.Contains(t, output, "The.Shawshank.Redemption.1994.1080p.BluRay.x264")
	})

	t.Run("json", func(t *testing.T) {
		output := mustRunCommand(t, RunLedgerCommand(), "list", "--config-dir", configDir, "--format", "json")

		var items []models.ProcessedItem
		require.NoError(t, json.Unmarshal([]byte(output), &items))
		require.Len(t, items, 1)
		assert.Equal(t, "RD1", items[0].BackendID)
	})

	t.Run("yaml", func(t *testing.T) {
		output := mustRunCommand(t, RunLedgerCommand(), "list", "--config-dir", configDir, "--format", "yaml")

		var items []models.ProcessedItem
		require.NoError(t, yaml.Unmarshal([]byte(output), &items))
		require.Len(t, items, 1)
		assert.Equal(t, "tt0111161", items[0].ExternalID)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runCommand(RunLedgerCommand(), "list", "--config-dir", configDir, "--format", "csv")
		require.Error(t, err)
	})
}

func TestLedgerListEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLedger(&buf, nil, "text"))
	assert.Equal(t, "No processed items\n", buf.String())

	buf.Reset()
	require.NoError(t, writeLedger(&buf, nil, "json"))
	assert.JSONEq(t, "[]", buf.String())
}

func TestAuthTraktRefusesNonInteractive(t *testing.T) {
	orig := isInteractive
	isInteractive = func() bool { return false }
	t.Cleanup(func() { isInteractive = orig })

	_, err := runCommand(RunAuthCommand(), "trakt", "--config-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestAuthTraktRequiresCredentials(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")
	prepareConfigDir(t, configDir)

	_, err := runCommand(RunAuthCommand(), "trakt", "--config-dir", configDir, "--force")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "traktClientId")
}

func TestDebridTorrentsRequiresToken(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")
	prepareConfigDir(t, configDir)

	_, err := runCommand(RunDebridCommand(), "torrents", "--config-dir", configDir)
	require.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	report := pipeline.CycleReport{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		DryRun:     true,
		Outcomes: []pipeline.Outcome{
			{
				Item:   models.WatchlistItem{ExternalID: "tt1", Title: "Heat"},
				State:  pipeline.StateSubmitted,
				Chosen: &models.Release{Title: "Heat.1995.2160p"},
			},
			{
				Item:   models.WatchlistItem{ExternalID: "tt2", Title: "Dune"},
				State:  pipeline.StateSkipped,
				Reason: pipeline.ReasonNoMatch,
			},
		},
		Counts:       map[pipeline.State]int{pipeline.StateSubmitted: 1, pipeline.StateSkipped: 1},
		Reasons:      map[pipeline.Reason]int{pipeline.ReasonNoMatch: 1},
		SourceErrors: map[string]string{"plex": "unauthorized"},
	}

	var buf bytes.Buffer
	writeReport(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "Cycle finished in 1.5s (dry run): 2 items")
	assert.Contains(t, out, "Source plex failed: unauthorized")
	assert.Contains(t, out, "Heat.1995.2160p")
	assert.Contains(t, out, "Submitted: 1, skipped: 1")
	assert.Contains(t, out, string(pipeline.ReasonNoMatch)+": 1")
}

type recordingStore struct {
	inserted []string
	err      error
}

func (s *recordingStore) ListIDs(context.Context) ([]string, error) { return nil, nil }

func (s *recordingStore) Insert(_ context.Context, item *models.ProcessedItem) error {
	s.inserted = append(s.inserted, item.ExternalID)
	return s.err
}

func TestDryRunAwareStore(t *testing.T) {
	inner := &recordingStore{}
	dryRun := true
	store := dryRunAwareStore{Store: inner, dryRun: func() bool { return dryRun }}

	require.NoError(t, store.Insert(context.Background(), &models.ProcessedItem{ExternalID: "tt1"}))
	assert.Empty(t, inner.inserted)

	dryRun = false
	inner.err = errors.New("disk full")
	require.Error(t, store.Insert(context.Background(), &models.ProcessedItem{ExternalID: "tt2"}))
	assert.Equal(t, []string{"tt2"}, inner.inserted)
}

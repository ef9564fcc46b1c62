// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/watchbrr/internal/ledger"
	"github.com/autobrr/watchbrr/internal/services/pipeline"
)

type fakeBackend struct {
	name    string
	healthy bool
}

func (f fakeBackend) Name() string    { return f.name }
func (f fakeBackend) IsHealthy() bool { return f.healthy }

func TestNewManager(t *testing.T) {
	manager := NewManager(nil)

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.registry)
	assert.NotNil(t, manager.ledgerCollector)
	assert.NotNil(t, manager.pipelineCollector)
}

func TestManager_GetRegistry(t *testing.T) {
	manager := NewManager(nil)

	registry := manager.GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)

	families, err := registry.Gather()
	require.NoError(t, err)

	var hasGo, hasProcess bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			hasGo = true
		}
		if strings.HasPrefix(mf.GetName(), "process_") {
			hasProcess = true
		}
	}
	assert.True(t, hasGo, "Go collector should be registered")
	// the process collector is unsupported on some platforms
	_ = hasProcess
}

func TestLedgerCollector(t *testing.T) {
	l := ledger.New()
	l.ReplaceOwned([]string{"tt1", "tt2"})

	c := NewLedgerCollector(l, fakeBackend{name: "qbittorrent", healthy: true}, fakeBackend{name: "realdebrid"})

	expected := `
# HELP watchbrr_backend_connection_status Connection status of a download backend (1=connected, 0=disconnected)
# TYPE watchbrr_backend_connection_status gauge
watchbrr_backend_connection_status{backend="qbittorrent"} 1
watchbrr_backend_connection_status{backend="realdebrid"} 0
# HELP watchbrr_pipeline_ledger_size Number of watchlist items with a confirmed submission
# TYPE watchbrr_pipeline_ledger_size gauge
watchbrr_pipeline_ledger_size 0
# HELP watchbrr_pipeline_owned_size Number of items in the owned set of the last cycle
# TYPE watchbrr_pipeline_owned_size gauge
watchbrr_pipeline_owned_size 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestManager_ObserveCycle(t *testing.T) {
	manager := NewManager(nil)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	manager.ObserveCycle(pipeline.CycleReport{
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Outcomes: []pipeline.Outcome{
			{State: pipeline.StateSubmitted},
			{State: pipeline.StateSkipped, Reason: pipeline.ReasonNoMatch},
			{State: pipeline.StateSkipped, Reason: pipeline.ReasonNoMatch},
		},
	})

	pc := manager.pipelineCollector
	assert.InDelta(t, 1, testutil.ToFloat64(pc.GetItemsTotal("submitted", "")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pc.GetItemsTotal("skipped", "no_match")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pc.GetCyclesTotal(false)), 0)
	assert.InDelta(t, float64(start.Add(2*time.Second).Unix()), testutil.ToFloat64(pc.LastCycleStamp), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(pc.CycleDuration))
}

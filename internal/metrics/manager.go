// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/metrics/collector"
	"github.com/autobrr/watchbrr/internal/services/pipeline"
)

type Manager struct {
	registry          *prometheus.Registry
	ledgerCollector   *LedgerCollector
	pipelineCollector *collector.PipelineCollector
}

func NewManager(ledger LedgerSource, backends ...HealthReporter) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ledgerCollector := NewLedgerCollector(ledger, backends...)
	registry.MustRegister(ledgerCollector)

	pipelineCollector := collector.NewPipelineCollector(registry)

	log.Info().Msg("Metrics manager initialized with pipeline collector")

	return &Manager{
		registry:          registry,
		ledgerCollector:   ledgerCollector,
		pipelineCollector: pipelineCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records a finished cycle.
func (m *Manager) ObserveCycle(report pipeline.CycleReport) {
	for _, out := range report.Outcomes {
		m.pipelineCollector.GetItemsTotal(string(out.State), string(out.Reason)).Inc()
	}
	m.pipelineCollector.GetCyclesTotal(report.DryRun).Inc()
	m.pipelineCollector.CycleDuration.Observe(report.Duration().Seconds())
	m.pipelineCollector.LastCycleStamp.Set(float64(report.FinishedAt.Unix()))
}

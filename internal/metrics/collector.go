// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// LedgerSource is read on every scrape.
type LedgerSource interface {
	Len() int
	OwnedLen() int
}

// HealthReporter is a backend whose connection state is exported.
type HealthReporter interface {
	Name() string
	IsHealthy() bool
}

type LedgerCollector struct {
	ledger   LedgerSource
	backends []HealthReporter

	ledgerSizeDesc    *prometheus.Desc
	ownedSizeDesc     *prometheus.Desc
	backendHealthDesc *prometheus.Desc
}

func NewLedgerCollector(ledger LedgerSource, backends ...HealthReporter) *LedgerCollector {
	return &LedgerCollector{
		ledger:   ledger,
		backends: backends,

		ledgerSizeDesc: prometheus.NewDesc(
			"watchbrr_pipeline_ledger_size",
			"Number of watchlist items with a confirmed submission",
			nil,
			nil,
		),
		ownedSizeDesc: prometheus.NewDesc(
			"watchbrr_pipeline_owned_size",
			"Number of items in the owned set of the last cycle",
			nil,
			nil,
		),
		backendHealthDesc: prometheus.NewDesc(
			"watchbrr_backend_connection_status",
			"Connection status of a download backend (1=connected, 0=disconnected)",
			[]string{"backend"},
			nil,
		),
	}
}

func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ledgerSizeDesc
	ch <- c.ownedSizeDesc
	ch <- c.backendHealthDesc
}

func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	if c.ledger == nil {
		log.Debug().Msg("Ledger is nil, skipping ledger metrics")
	} else {
		ch <- prometheus.MustNewConstMetric(c.ledgerSizeDesc, prometheus.GaugeValue, float64(c.ledger.Len()))
		ch <- prometheus.MustNewConstMetric(c.ownedSizeDesc, prometheus.GaugeValue, float64(c.ledger.OwnedLen()))
	}

	for _, b := range c.backends {
		connected := 0.0
		if b.IsHealthy() {
			connected = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.backendHealthDesc, prometheus.GaugeValue, connected, b.Name())
	}
}

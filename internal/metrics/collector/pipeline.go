package collector

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type PipelineCollector struct {
	ItemsTotal     *prometheus.CounterVec
	CyclesTotal    *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	LastCycleStamp prometheus.Gauge
}

func NewPipelineCollector(r *prometheus.Registry) *PipelineCollector {
	m := &PipelineCollector{
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchbrr",
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Total number of processed watchlist items by terminal state and reason",
		}, []string{"state", "reason"}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchbrr",
			Subsystem: "pipeline",
			Name:      "cycles_total",
			Help:      "Total number of completed cycles",
		}, []string{"dry_run"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "watchbrr",
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete cycle",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastCycleStamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchbrr",
			Subsystem: "pipeline",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished",
		}),
	}

	r.MustRegister(m.ItemsTotal)
	r.MustRegister(m.CyclesTotal)
	r.MustRegister(m.CycleDuration)
	r.MustRegister(m.LastCycleStamp)
	return m
}

func (m *PipelineCollector) GetItemsTotal(state, reason string) prometheus.Counter {
	return m.ItemsTotal.With(prometheus.Labels{
		"state":  state,
		"reason": reason,
	})
}

func (m *PipelineCollector) GetCyclesTotal(dryRun bool) prometheus.Counter {
	return m.CyclesTotal.With(prometheus.Labels{
		"dry_run": strconv.FormatBool(dryRun),
	})
}

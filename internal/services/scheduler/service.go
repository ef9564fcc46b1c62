// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduler runs pipeline cycles on an interval and on demand.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/services/pipeline"
	"github.com/autobrr/watchbrr/internal/services/watchlist"
)

const (
	defaultInterval    = time.Hour
	defaultHistorySize = 20
	cycleKey           = "cycle"
)

var (
	ErrCycleRunning = errors.New("a cycle is already running")
	ErrNotStarted   = errors.New("scheduler has not been started")
)

type Config struct {
	Interval    time.Duration
	HistorySize int
}

func DefaultConfig() Config {
	return Config{
		Interval:    defaultInterval,
		HistorySize: defaultHistorySize,
	}
}

// SnapshotProvider returns the current watchlist view. watchlist.Manager implements it.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) watchlist.Snapshot
}

// Runner processes one snapshot. pipeline.Orchestrator implements it.
type Runner interface {
	RunCycle(ctx context.Context, items []models.WatchlistItem, owned []string) pipeline.CycleReport
}

// CycleObserver is notified after every cycle.
type CycleObserver interface {
	ObserveCycle(report pipeline.CycleReport)
}

type Service struct {
	cfg       Config
	snapshots SnapshotProvider
	runner    Runner
	observers []CycleObserver

	group   singleflight.Group
	running atomic.Bool
	nextID  atomic.Int64

	historyMu sync.RWMutex
	history   []pipeline.CycleReport

	baseMu  sync.RWMutex
	baseCtx context.Context

	intervalCh chan time.Duration
}

func NewService(cfg Config, snapshots SnapshotProvider, runner Runner, observers ...CycleObserver) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}

	s := &Service{
		cfg:        cfg,
		snapshots:  snapshots,
		runner:     runner,
		history:    make([]pipeline.CycleReport, 0, cfg.HistorySize),
		intervalCh: make(chan time.Duration, 1),
	}
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
	return s
}

// Start runs one cycle immediately and then one per interval until ctx is done.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.setBaseContext(ctx)

	go func() {
		s.tick(ctx)
		s.loop(ctx)
	}()
}

func (s *Service) setBaseContext(ctx context.Context) {
	s.baseMu.Lock()
	s.baseCtx = ctx
	s.baseMu.Unlock()
}

func (s *Service) baseContext() context.Context {
	s.baseMu.RLock()
	defer s.baseMu.RUnlock()
	return s.baseCtx
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.intervalCh:
			ticker.Reset(d)
			log.Info().Dur("interval", d).Msg("scheduler: interval updated")
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a cycle unless one is already running; overlapping ticks are dropped.
func (s *Service) tick(ctx context.Context) {
	if s.running.Load() {
		log.Debug().Msg("scheduler: cycle still running, dropping tick")
		return
	}
	if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("scheduler: cycle failed")
	}
}

// SetInterval changes the tick interval of a started service.
func (s *Service) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case s.intervalCh <- d:
	default:
		// replace a pending update
		select {
		case <-s.intervalCh:
		default:
		}
		s.intervalCh <- d
	}
}

// RunNow runs a cycle and waits for its report. A caller arriving while a cycle
// is in flight joins it and receives the same report.
func (s *Service) RunNow(ctx context.Context) (pipeline.CycleReport, error) {
	ch := s.group.DoChan(cycleKey, func() (any, error) {
		s.running.Store(true)
		defer s.running.Store(false)
		return s.runCycle(ctx), nil
	})

	select {
	case <-ctx.Done():
		return pipeline.CycleReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return pipeline.CycleReport{}, res.Err
		}
		return res.Val.(pipeline.CycleReport), nil
	}
}

// Trigger starts a cycle in the background on the service context. It returns
// ErrCycleRunning when a cycle is in flight.
func (s *Service) Trigger() error {
	if s.running.Load() {
		return ErrCycleRunning
	}
	ctx := s.baseContext()
	if ctx == nil {
		return ErrNotStarted
	}

	go func() {
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("scheduler: triggered cycle failed")
		}
	}()
	return nil
}

// Running reports whether a cycle is in flight.
func (s *Service) Running() bool { return s.running.Load() }

func (s *Service) runCycle(ctx context.Context) pipeline.CycleReport {
	snap := s.snapshots.Snapshot(ctx)

	report := s.runner.RunCycle(ctx, snap.Items, snap.Owned)
	report.ID = s.nextID.Add(1)
	if len(snap.Failed) > 0 {
		report.SourceErrors = make(map[string]string, len(snap.Failed))
		for name, err := range snap.Failed {
			report.SourceErrors[name] = err.Error()
		}
	}

	s.record(report)
	for _, o := range s.observers {
		o.ObserveCycle(report)
	}

	log.Info().
		Int64("cycle", report.ID).
		Int("items", len(snap.Items)).
		Int("owned", len(snap.Owned)).
		Int("failedSources", len(snap.Failed)).
		Msg("scheduler: cycle complete")

	return report
}

func (s *Service) record(report pipeline.CycleReport) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append(s.history, report)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
}

// History returns recent reports, newest first.
func (s *Service) History() []pipeline.CycleReport {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	out := make([]pipeline.CycleReport, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Last returns the most recent report.
func (s *Service) Last() (pipeline.CycleReport, bool) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if len(s.history) == 0 {
		return pipeline.CycleReport{}, false
	}
	return s.history[len(s.history)-1], true
}

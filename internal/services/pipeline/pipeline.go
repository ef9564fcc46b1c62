// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pipeline drives each watchlist item from discovery to a submitted
// download or a recorded skip.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/ledger"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/services/debrid"
	"github.com/autobrr/watchbrr/internal/services/indexer"
	"github.com/autobrr/watchbrr/internal/services/quality"
	"github.com/autobrr/watchbrr/pkg/redact"
)

// ReleaseChecker reports whether an item is available yet. An error means the
// check itself failed; implementations map unknown dates to false.
type ReleaseChecker interface {
	IsReleased(ctx context.Context, item models.WatchlistItem) (bool, error)
}

// AlwaysReleased is used when no release-date source is configured.
type AlwaysReleased struct{}

func (AlwaysReleased) IsReleased(context.Context, models.WatchlistItem) (bool, error) {
	return true, nil
}

type WatchlistRemover interface {
	RemoveFromWatchlist(ctx context.Context, item models.WatchlistItem) (bool, error)
}

// Selector turns search results into a selection. quality.Policy implements it.
type Selector interface {
	Evaluate(item models.WatchlistItem, releases []models.Release, ranker quality.Ranker) (quality.Selection, error)
}

// Submitter hands a release to a download backend. debrid.Submitter implements it.
type Submitter interface {
	Submit(ctx context.Context, release models.Release) (debrid.SubmitResult, error)
	DryRun() bool
	BackendName() string
}

type Config struct {
	Ledger            *ledger.Ledger
	Releases          ReleaseChecker
	Indexer           indexer.Indexer
	Policy            Selector
	Ranker            quality.Ranker
	Submitter         Submitter
	Remover           WatchlistRemover
	RemoveAfterAdding bool
}

type Orchestrator struct {
	ledger    *ledger.Ledger
	releases  ReleaseChecker
	indexer   indexer.Indexer
	submitter Submitter
	remover   WatchlistRemover

	mu                sync.RWMutex
	policy            Selector
	ranker            quality.Ranker
	removeAfterAdding bool

	now func() time.Time
}

func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Ledger == nil:
		return nil, errors.New("pipeline: ledger is required")
	case cfg.Indexer == nil:
		return nil, errors.New("pipeline: indexer is required")
	case cfg.Policy == nil:
		return nil, errors.New("pipeline: quality policy is required")
	case cfg.Submitter == nil:
		return nil, errors.New("pipeline: submitter is required")
	}

	releases := cfg.Releases
	if releases == nil {
		releases = AlwaysReleased{}
	}

	return &Orchestrator{
		ledger:            cfg.Ledger,
		releases:          releases,
		indexer:           cfg.Indexer,
		submitter:         cfg.Submitter,
		remover:           cfg.Remover,
		policy:            cfg.Policy,
		ranker:            cfg.Ranker,
		removeAfterAdding: cfg.RemoveAfterAdding,
		now:               time.Now,
	}, nil
}

// SetPolicy swaps the selector and ranker used by subsequent items.
func (o *Orchestrator) SetPolicy(policy Selector, ranker quality.Ranker) {
	if policy == nil {
		return
	}
	o.mu.Lock()
	o.policy = policy
	o.ranker = ranker
	o.mu.Unlock()
}

func (o *Orchestrator) SetRemoveAfterAdding(enabled bool) {
	o.mu.Lock()
	o.removeAfterAdding = enabled
	o.mu.Unlock()
}

func (o *Orchestrator) DryRun() bool { return o.submitter.DryRun() }

func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }

func (o *Orchestrator) settings() (Selector, quality.Ranker, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.policy, o.ranker, o.removeAfterAdding
}

// RunCycle replaces the owned set and processes items in order. It never fails;
// per-item problems are reported in the outcomes.
func (o *Orchestrator) RunCycle(ctx context.Context, items []models.WatchlistItem, owned []string) CycleReport {
	report := CycleReport{
		StartedAt: o.now(),
		DryRun:    o.DryRun(),
		Outcomes:  make([]Outcome, 0, len(items)),
		Counts:    make(map[State]int),
		Reasons:   make(map[Reason]int),
	}

	o.ledger.ReplaceOwned(owned)

	for _, item := range items {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("remaining", len(items)-len(report.Outcomes)).Msg("pipeline: cycle canceled")
			break
		}
		report.add(o.Process(ctx, item))
	}

	report.FinishedAt = o.now()

	log.Info().
		Int("items", len(items)).
		Int("submitted", report.Counts[StateSubmitted]).
		Int("skipped", report.Counts[StateSkipped]).
		Bool("dryRun", report.DryRun).
		Dur("duration", report.Duration()).
		Msg("pipeline: cycle finished")

	return report
}

// Process runs one item through the pipeline. A panic in any collaborator is
// recovered and reported as a collaborator error.
func (o *Orchestrator) Process(ctx context.Context, item models.WatchlistItem) (out Outcome) {
	out = Outcome{Item: item}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("externalId", item.ExternalID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("pipeline: recovered panic")
			out.skip(ReasonCollaboratorError, fmt.Errorf("panic: %v", r))
		}
		o.logOutcome(out)
	}()

	if o.ledger.IsProcessed(item.ExternalID) {
		out.State, out.Reason = StateSkipped, ReasonAlreadyProcessed
		return out
	}
	if o.ledger.IsOwned(item.ExternalID) {
		out.State, out.Reason = StateSkipped, ReasonAlreadyOwned
		return out
	}

	out.enter(StateDiscovered)

	released, err := o.releases.IsReleased(ctx, item)
	if err != nil {
		log.Warn().Err(redact.URLError(err)).Str("externalId", item.ExternalID).Msg("pipeline: release check failed, assuming released")
		released = true
	}
	if !released {
		out.skip(ReasonUnreleased, nil)
		return out
	}
	out.enter(StateReleasedChecked)

	releases, err := o.indexer.FindReleases(ctx, item.ExternalID, item.MediaType, item.Title)
	if err != nil {
		out.skip(ReasonCollaboratorError, fmt.Errorf("search: %w", redact.URLError(err)))
		return out
	}
	out.Found = len(releases)
	if len(releases) == 0 {
		out.skip(ReasonNoReleases, nil)
		return out
	}
	out.enter(StateSearched)

	policy, ranker, removeAfterAdding := o.settings()

	selection, err := policy.Evaluate(item, releases, ranker)
	if err != nil {
		out.skip(ReasonCollaboratorError, fmt.Errorf("rank: %w", err))
		return out
	}
	out.Eligible = selection.Eligible
	if !selection.Found {
		out.skip(ReasonNoMatch, nil)
		return out
	}
	chosen := selection.Release
	out.Chosen = &chosen
	out.enter(StateRanked)

	if !chosen.Submittable() {
		out.skip(ReasonEmptyHash, nil)
		return out
	}

	result, err := o.submitter.Submit(ctx, chosen)
	if err != nil {
		out.skip(ReasonCollaboratorError, fmt.Errorf("submit: %w", redact.URLError(err)))
		return out
	}
	out.BackendID = result.ID
	out.BackendStatus = result.Status

	if err := o.ledger.Mark(ctx, models.ProcessedItem{
		ExternalID:   item.ExternalID,
		Title:        item.Title,
		MediaType:    item.MediaType,
		Source:       item.Source,
		ContentHash:  chosen.ContentHash,
		ReleaseTitle: chosen.Title,
		Backend:      result.Backend,
		BackendID:    result.ID,
		ProcessedAt:  o.now().UTC(),
	}); err != nil {
		log.Error().Err(err).Str("externalId", item.ExternalID).Msg("pipeline: failed to persist ledger entry")
	}

	out.enter(StateSubmitted)

	if removeAfterAdding {
		o.removeFromWatchlist(ctx, item)
	}

	return out
}

func (o *Orchestrator) removeFromWatchlist(ctx context.Context, item models.WatchlistItem) {
	if o.submitter.DryRun() {
		log.Info().Str("externalId", item.ExternalID).Str("source", item.Source).Msg("pipeline: dry run, skipping watchlist removal")
		return
	}
	if o.remover == nil {
		return
	}

	removed, err := o.remover.RemoveFromWatchlist(ctx, item)
	if err != nil {
		log.Warn().Err(redact.URLError(err)).Str("externalId", item.ExternalID).Str("source", item.Source).Msg("pipeline: watchlist removal failed")
		return
	}
	log.Debug().Str("externalId", item.ExternalID).Bool("removed", removed).Msg("pipeline: watchlist removal")
}

func (o *Orchestrator) logOutcome(out Outcome) {
	level := zerolog.InfoLevel
	switch out.Reason {
	case ReasonAlreadyProcessed, ReasonAlreadyOwned:
		level = zerolog.DebugLevel
	case ReasonCollaboratorError:
		level = zerolog.WarnLevel
	}

	ev := log.WithLevel(level).
		Str("externalId", out.Item.ExternalID).
		Str("title", out.Item.Title).
		Str("year", out.Item.DisplayYear()).
		Str("mediaType", out.Item.MediaType.String()).
		Int("found", out.Found).
		Int("filtered", out.Eligible).
		Str("state", string(out.State)).
		Str("reason", string(out.Reason))

	if out.Chosen != nil {
		ev = ev.Str("chosen", out.Chosen.Title).Str("hash", out.Chosen.ContentHash)
	}
	if out.BackendID != "" {
		ev = ev.Str("backendId", out.BackendID).Str("backendStatus", out.BackendStatus)
	}
	if out.Err != nil {
		ev = ev.Err(out.Err)
	}
	ev.Msg("pipeline: item processed")
}

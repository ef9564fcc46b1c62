// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/watchbrr/internal/ledger"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/services/debrid"
	"github.com/autobrr/watchbrr/internal/services/quality"
)

const hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type stubChecker struct {
	released bool
	err      error
	calls    int
}

func (s *stubChecker) IsReleased(context.Context, models.WatchlistItem) (bool, error) {
	s.calls++
	return s.released, s.err
}

type stubIndexer struct {
	releases []models.Release
	err      error
	panicMsg string
	calls    int
}

func (s *stubIndexer) Name() string { return "stub" }

func (s *stubIndexer) FindReleases(context.Context, string, models.MediaType, string) ([]models.Release, error) {
	s.calls++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.releases, s.err
}

type countingSelector struct {
	inner Selector
	calls int
}

func (c *countingSelector) Evaluate(item models.WatchlistItem, releases []models.Release, ranker quality.Ranker) (quality.Selection, error) {
	c.calls++
	return c.inner.Evaluate(item, releases, ranker)
}

type recordingBackend struct {
	mu      sync.Mutex
	adds    []string
	addErr  error
	selects int
}

func (b *recordingBackend) Name() string { return "recorder" }

func (b *recordingBackend) AddMagnet(_ context.Context, hash, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addErr != nil {
		return "", b.addErr
	}
	b.adds = append(b.adds, hash)
	return "remote-" + hash[:4], nil
}

func (b *recordingBackend) SelectFiles(context.Context, string, string) error {
	b.mu.Lock()
	b.selects++
	b.mu.Unlock()
	return nil
}

func (b *recordingBackend) Status(context.Context, string) (string, error) {
	return "downloading", nil
}

type stubRemover struct {
	err     error
	removed []string
}

func (s *stubRemover) RemoveFromWatchlist(_ context.Context, item models.WatchlistItem) (bool, error) {
	s.removed = append(s.removed, item.ExternalID)
	return s.err == nil, s.err
}

type harness struct {
	ledger   *ledger.Ledger
	checker  *stubChecker
	indexer  *stubIndexer
	selector *countingSelector
	backend  *recordingBackend
	remover  *stubRemover
	orch     *Orchestrator
}

func ladderPolicy(t *testing.T) quality.Policy {
	t.Helper()
	p, err := quality.NewPolicy(models.QualityPolicy{
		ResolutionOrder: []string{"2160p", "1080p", "720p"},
		Strategy:        models.StrategyLadder,
	})
	require.NoError(t, err)
	return p
}

func newHarness(t *testing.T, dryRun, removeAfterAdding bool) *harness {
	t.Helper()

	h := &harness{
		ledger:   ledger.New(),
		checker:  &stubChecker{released: true},
		indexer:  &stubIndexer{},
		selector: &countingSelector{inner: ladderPolicy(t)},
		backend:  &recordingBackend{},
		remover:  &stubRemover{},
	}

	orch, err := New(Config{
		Ledger:            h.ledger,
		Releases:          h.checker,
		Indexer:           h.indexer,
		Policy:            h.selector,
		Submitter:         debrid.NewSubmitter(h.backend, dryRun),
		Remover:           h.remover,
		RemoveAfterAdding: removeAfterAdding,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func movie(id string) models.WatchlistItem {
	return models.WatchlistItem{Title: "Movie " + id, Year: "2023", ExternalID: id, MediaType: models.MediaTypeMovie, Source: "trakt"}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Ledger: ledger.New(), Indexer: &stubIndexer{}, Policy: ladderPolicy(t)})
	require.Error(t, err)
}

func TestProcessSubmitsBestRelease(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, true)
	h.indexer.releases = []models.Release{
		{Title: "Movie 720p", ContentHash: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", SizeGB: 30, PeerCount: 90},
		{Title: "Movie 1080p", ContentHash: hashA, SizeGB: 10, PeerCount: 5},
		{Title: "Movie CAM", ContentHash: "cccccccccccccccccccccccccccccccccccccccc"},
	}

	out := h.orch.Process(context.Background(), movie("tt1"))

	assert.Equal(t, StateSubmitted, out.State)
	assert.Equal(t, []State{StateDiscovered, StateReleasedChecked, StateSearched, StateRanked, StateSubmitted}, out.Transitions)
	assert.Equal(t, ReasonNone, out.Reason)
	assert.Equal(t, 3, out.Found)
	assert.Equal(t, 2, out.Eligible)
	require.NotNil(t, out.Chosen)
	assert.Equal(t, hashA, out.Chosen.ContentHash)
	assert.Equal(t, "remote-aaaa", out.BackendID)
	assert.Equal(t, "downloading", out.BackendStatus)
	assert.NoError(t, out.Err)

	assert.Equal(t, []string{hashA}, h.backend.adds)
	assert.True(t, h.ledger.IsProcessed("tt1"))
	assert.Equal(t, []string{"tt1"}, h.remover.removed)
}

func TestIdempotenceAcrossCycles(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.releases = []models.Release{{Title: "Movie 1080p", ContentHash: hashA, SizeGB: 4}}

	items := []models.WatchlistItem{movie("tt1")}
	first := h.orch.RunCycle(context.Background(), items, nil)
	second := h.orch.RunCycle(context.Background(), items, nil)

	assert.Equal(t, 1, first.Counts[StateSubmitted])
	require.Len(t, second.Outcomes, 1)
	assert.Equal(t, StateSkipped, second.Outcomes[0].State)
	assert.Equal(t, ReasonAlreadyProcessed, second.Outcomes[0].Reason)
	assert.Empty(t, second.Outcomes[0].Transitions)

	assert.Len(t, h.backend.adds, 1)
	assert.Equal(t, 1, h.ledger.Len())
	assert.Equal(t, 1, h.indexer.calls)
}

func TestOwnedItemsAreSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	report := h.orch.RunCycle(context.Background(), []models.WatchlistItem{movie("tt1")}, []string{"tt1"})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, ReasonAlreadyOwned, report.Outcomes[0].Reason)
	assert.Equal(t, 0, h.checker.calls)
	assert.Equal(t, 0, h.indexer.calls)
	assert.Equal(t, 1, report.Reasons[ReasonAlreadyOwned])
}

func TestUnreleasedSkipsSearch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.checker.released = false

	out := h.orch.Process(context.Background(), movie("tt1"))

	assert.Equal(t, StateSkipped, out.State)
	assert.Equal(t, ReasonUnreleased, out.Reason)
	assert.Equal(t, []State{StateDiscovered, StateSkipped}, out.Transitions)
	assert.Equal(t, 0, h.indexer.calls)
}

func TestReleaseCheckErrorAssumesReleased(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.checker.released = false
	h.checker.err = errors.New("lookup down")
	h.indexer.releases = []models.Release{{Title: "Movie 1080p", ContentHash: hashA}}

	out := h.orch.Process(context.Background(), movie("tt1"))

	assert.Equal(t, StateSubmitted, out.State)
	assert.Equal(t, 1, h.indexer.calls)
}

func TestEmptySearchSkipsPolicy(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.releases = []models.Release{}

	out := h.orch.Process(context.Background(), movie("tt1"))

	assert.Equal(t, StateSkipped, out.State)
	assert.Equal(t, ReasonNoReleases, out.Reason)
	assert.Equal(t, 0, h.selector.calls)
	assert.Empty(t, h.backend.adds)
}

func TestNoMatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.releases = []models.Release{{Title: "Movie 480p", ContentHash: hashA}}

	out := h.orch.Process(context.Background(), movie("tt1"))

	assert.Equal(t, ReasonNoMatch, out.Reason)
	assert.Equal(t, 1, out.Found)
	assert.Equal(t, 0, out.Eligible)
	assert.Nil(t, out.Chosen)
	assert.Equal(t, []State{StateDiscovered, StateReleasedChecked, StateSearched, StateSkipped}, out.Transitions)
}

func TestEmptyHashSkippedBeforeBackend(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, true)
	h.indexer.releases = []models.Release{{Title: "Movie 1080p"}}

	out := h.orch.Process(context.Background(), movie("tt1"))

	assert.Equal(t, StateSkipped, out.State)
	assert.Equal(t, ReasonEmptyHash, out.Reason)
	require.NotNil(t, out.Chosen)
	assert.Empty(t, h.backend.adds)
	assert.Empty(t, h.remover.removed)
	assert.False(t, h.ledger.IsProcessed("tt1"))
}

func TestCollaboratorErrorsLeaveLedgerUntouched(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.releases = []models.Release{{Title: "Movie 1080p", ContentHash: hashA}}
	h.backend.addErr = errors.New("backend down")

	out := h.orch.Process(context.Background(), movie("tt1"))
	assert.Equal(t, ReasonCollaboratorError, out.Reason)
	assert.Error(t, out.Err)
	assert.NotEmpty(t, out.Error)
	assert.False(t, h.ledger.IsProcessed("tt1"))

	h.backend.addErr = nil
	out = h.orch.Process(context.Background(), movie("tt1"))
	assert.Equal(t, StateSubmitted, out.State)
	assert.True(t, h.ledger.IsProcessed("tt1"))
}

func TestSearchErrorIsCollaboratorError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.err = errors.New("indexer down")

	out := h.orch.Process(context.Background(), movie("tt1"))
	assert.Equal(t, ReasonCollaboratorError, out.Reason)
	assert.ErrorContains(t, out.Err, "indexer down")
	assert.Equal(t, 0, h.selector.calls)
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.panicMsg = "boom"

	report := h.orch.RunCycle(context.Background(), []models.WatchlistItem{movie("tt1"), movie("tt2")}, nil)

	require.Len(t, report.Outcomes, 2)
	for _, out := range report.Outcomes {
		assert.Equal(t, StateSkipped, out.State)
		assert.Equal(t, ReasonCollaboratorError, out.Reason)
		assert.ErrorContains(t, out.Err, "boom")
	}
	assert.Equal(t, 2, report.Counts[StateSkipped])
}

func TestRemovalFailureKeepsSubmitted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, true)
	h.indexer.releases = []models.Release{{Title: "Movie 1080p", ContentHash: hashA}}
	h.remover.err = errors.New("remove failed")

	out := h.orch.Process(context.Background(), movie("tt1"))
	assert.Equal(t, StateSubmitted, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"tt1"}, h.remover.removed)
}

func TestDryRunEquivalence(t *testing.T) {
	t.Parallel()

	releases := []models.Release{
		{Title: "Movie 1080p", ContentHash: hashA, SizeGB: 4},
	}
	items := []models.WatchlistItem{movie("tt1"), movie("tt2")}

	live := newHarness(t, false, true)
	live.indexer.releases = releases
	dry := newHarness(t, true, true)
	dry.indexer.releases = releases

	liveReport := live.orch.RunCycle(context.Background(), items, []string{"tt2"})
	dryReport := dry.orch.RunCycle(context.Background(), items, []string{"tt2"})

	require.Len(t, dryReport.Outcomes, len(liveReport.Outcomes))
	for i := range liveReport.Outcomes {
		assert.Equal(t, liveReport.Outcomes[i].Transitions, dryReport.Outcomes[i].Transitions)
		assert.Equal(t, liveReport.Outcomes[i].Reason, dryReport.Outcomes[i].Reason)
	}
	assert.Equal(t, live.ledger.Len(), dry.ledger.Len())
	for _, item := range items {
		assert.Equal(t, live.ledger.IsProcessed(item.ExternalID), dry.ledger.IsProcessed(item.ExternalID), item.ExternalID)
	}

	assert.True(t, dryReport.DryRun)
	assert.Equal(t, debrid.DryRunID, dryReport.Outcomes[0].BackendID)
	assert.Equal(t, debrid.DryRunStatus, dryReport.Outcomes[0].BackendStatus)
	assert.Empty(t, dry.backend.adds)
	assert.Empty(t, dry.remover.removed)
	assert.Len(t, live.backend.adds, 1)
}

func TestSetPolicySwapsSelector(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	h.indexer.releases = []models.Release{{Title: "Movie 480p", ContentHash: hashA}}

	p, err := quality.NewPolicy(models.QualityPolicy{ResolutionOrder: []string{"480p"}})
	require.NoError(t, err)
	h.orch.SetPolicy(p, nil)

	out := h.orch.Process(context.Background(), movie("tt1"))
	assert.Equal(t, StateSubmitted, out.State)
	assert.Equal(t, 0, h.selector.calls)
}

func TestRunCycleStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := h.orch.RunCycle(ctx, []models.WatchlistItem{movie("tt1")}, nil)
	assert.Empty(t, report.Outcomes)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestCycleReportForcesTerminalState(t *testing.T) {
	t.Parallel()

	report := CycleReport{Counts: make(map[State]int), Reasons: make(map[Reason]int)}
	report.add(Outcome{Item: movie("tt1"), State: StateSubmitted, Transitions: []State{StateDiscovered, StateSubmitted}})
	report.add(Outcome{Item: movie("tt2"), State: StateSearched, Transitions: []State{StateDiscovered, StateReleasedChecked, StateSearched}})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, StateSubmitted, report.Outcomes[0].State)

	forced := report.Outcomes[1]
	assert.Equal(t, StateSkipped, forced.State)
	assert.Equal(t, ReasonCollaboratorError, forced.Reason)
	assert.Equal(t, StateSkipped, forced.Transitions[len(forced.Transitions)-1])
	assert.Contains(t, forced.Error, "non-terminal")

	assert.Equal(t, 1, report.Counts[StateSubmitted])
	assert.Equal(t, 1, report.Counts[StateSkipped])
	assert.Equal(t, 1, report.Reasons[ReasonCollaboratorError])
	assert.True(t, StateSkipped.Terminal())
	assert.False(t, StateRanked.Terminal())
}

func TestProcessLogsYear(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	h := newHarness(t, false, false)

	unknown := movie("tt1")
	unknown.Year = models.YearUnknown
	out := h.orch.Process(context.Background(), unknown)
	assert.Equal(t, ReasonNoReleases, out.Reason)
	assert.Contains(t, buf.String(), `"year":"N/A"`)

	buf.Reset()
	h.orch.Process(context.Background(), movie("tt2"))
	assert.Contains(t, buf.String(), `"year":"2023"`)
}

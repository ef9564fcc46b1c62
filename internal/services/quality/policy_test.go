// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/watchbrr/internal/models"
)

var policyReleases = []models.Release{
	{Title: "Movie.720p.WEB", SizeGB: 30, PeerCount: 1, ContentHash: "a"},
	{Title: "Movie.1080p.WEB", SizeGB: 2, PeerCount: 1, ContentHash: "b"},
	{Title: "Movie.1080p.BluRay", SizeGB: 8, PeerCount: 1, ContentHash: "c"},
	{Title: "Movie.480p", SizeGB: 1, PeerCount: 1, ContentHash: "d"},
}

func TestNewPolicyValidates(t *testing.T) {
	t.Parallel()

	_, err := NewPolicy(models.QualityPolicy{})
	require.ErrorIs(t, err, models.ErrInvalidPolicy)

	_, err = NewPolicy(models.QualityPolicy{ResolutionOrder: []string{"1080p"}, Strategy: "best"})
	require.ErrorIs(t, err, models.ErrInvalidPolicy)

	p, err := NewPolicy(models.QualityPolicy{ResolutionOrder: []string{"1080p"}})
	require.NoError(t, err)
	assert.Equal(t, models.StrategyLadder, p.Strategy())
}

func TestPolicyEvaluateLadder(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(models.QualityPolicy{ResolutionOrder: []string{"1080p", "720p"}})
	require.NoError(t, err)

	sel, err := p.Evaluate(models.WatchlistItem{}, policyReleases, nil)
	require.NoError(t, err)
	assert.True(t, sel.Found)
	assert.Equal(t, "c", sel.Release.ContentHash)
	assert.Equal(t, 3, sel.Eligible)
}

func TestPolicySelectAllowListTakesFirstEligible(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(models.QualityPolicy{
		ResolutionOrder: []string{"1080p", "720p"},
		MinResolution:   "1080p",
		Strategy:        models.StrategyAllowList,
	})
	require.NoError(t, err)

	got, ok, err := p.Select(models.WatchlistItem{}, policyReleases, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got.ContentHash)

	sel, err := p.Evaluate(models.WatchlistItem{}, policyReleases, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Eligible)
}

func TestPolicySelectNoMatch(t *testing.T) {
	t.Parallel()

	for _, strategy := range []models.SelectionStrategy{models.StrategyLadder, models.StrategyAllowList} {
		p, err := NewPolicy(models.QualityPolicy{ResolutionOrder: []string{"2160p"}, Strategy: strategy})
		require.NoError(t, err)

		_, ok, err := p.Select(models.WatchlistItem{}, policyReleases, nil)
		require.NoError(t, err)
		assert.False(t, ok, string(strategy))
	}
}

func TestPolicyRankedRequiresRanker(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(models.QualityPolicy{ResolutionOrder: []string{"1080p"}, Strategy: models.StrategyRanked})
	require.NoError(t, err)

	_, _, err = p.Select(models.WatchlistItem{Title: "Movie"}, policyReleases, nil)
	require.ErrorIs(t, err, ErrRankerRequired)
}

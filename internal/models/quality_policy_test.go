// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityPolicyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  QualityPolicy
		wantErr string
	}{
		{
			name:   "defaults",
			policy: QualityPolicy{ResolutionOrder: DefaultResolutionOrder},
		},
		{
			name:    "empty order",
			policy:  QualityPolicy{},
			wantErr: "resolution order is empty",
		},
		{
			name:    "blank resolution",
			policy:  QualityPolicy{ResolutionOrder: []string{"1080p", " "}},
			wantErr: "resolution 1 is blank",
		},
		{
			name:    "unknown strategy",
			policy:  QualityPolicy{ResolutionOrder: []string{"1080p"}, Strategy: "best"},
			wantErr: "unknown strategy",
		},
		{
			name:    "min resolution outside order",
			policy:  QualityPolicy{ResolutionOrder: []string{"1080p"}, MinResolution: "480p"},
			wantErr: "min resolution",
		},
		{
			name:   "min resolution case insensitive",
			policy: QualityPolicy{ResolutionOrder: []string{"2160p", "1080p"}, MinResolution: "1080P", Strategy: StrategyAllowList},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.policy.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidPolicy)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQualityPolicyEffectiveStrategy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StrategyLadder, QualityPolicy{}.EffectiveStrategy())
	assert.Equal(t, StrategyRanked, QualityPolicy{Strategy: StrategyRanked}.EffectiveStrategy())
}

func TestParseMediaType(t *testing.T) {
	t.Parallel()

	cases := map[string]MediaType{
		"movie":   MediaTypeMovie,
		"MOVIE":   MediaTypeMovie,
		" show ":  MediaTypeShow,
		"series":  MediaTypeShow,
		"Episode": MediaTypeEpisode,
		"season":  MediaTypeUnknown,
		"":        MediaTypeUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseMediaType(in), "input %q", in)
	}
}

func TestReleaseSubmittable(t *testing.T) {
	t.Parallel()

	assert.False(t, Release{Title: "x"}.Submittable())
	assert.True(t, Release{ContentHash: "not-even-hex"}.Submittable())
}

func TestWatchlistItemDisplayYear(t *testing.T) {
	t.Parallel()

	assert.Equal(t, YearUnknown, WatchlistItem{}.DisplayYear())
	assert.Equal(t, "1999", WatchlistItem{Year: "1999"}.DisplayYear())
	assert.Equal(t, YearUnknown, WatchlistItem{Year: YearUnknown}.DisplayYear())
}

func TestWatchlistItemKey(t *testing.T) {
	t.Parallel()

	a := WatchlistItem{ExternalID: " TT0111161 ", MediaType: MediaTypeMovie}
	b := WatchlistItem{ExternalID: "tt0111161", MediaType: MediaTypeMovie, Source: "plex"}
	c := WatchlistItem{ExternalID: "tt0111161", MediaType: MediaTypeShow}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestWatchlistItemListings(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WatchlistItem{}.Listings())
	assert.Equal(t, []Origin{{Source: "trakt", SourceKey: "7"}}, WatchlistItem{Source: "trakt", SourceKey: "7"}.Listings())

	merged := WatchlistItem{Source: "trakt", Origins: []Origin{{Source: "trakt"}, {Source: "plex", SourceKey: "a1"}}}
	assert.Len(t, merged.Listings(), 2)
}

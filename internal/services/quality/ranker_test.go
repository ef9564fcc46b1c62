// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/releases"
)

func newTestRanker(t *testing.T, cfg RankerConfig) *RlsRanker {
	t.Helper()

	parser := releases.NewDefaultParser()
	t.Cleanup(parser.Close)

	r, err := NewRlsRanker(cfg, parser)
	require.NoError(t, err)
	return r
}

func TestRlsRankerDefaults(t *testing.T) {
	t.Parallel()

	r := newTestRanker(t, RankerConfig{})

	tests := []struct {
		name      string
		title     string
		wantFetch bool
		wantRank  float64
	}{
		{
			name:      "1080p bluray",
			title:     "The.Matrix.1999.1080p.BluRay.x264-GRP",
			wantFetch: true,
			wantRank:  2*ladderStep + PreferredBonus,
		},
		{
			name:      "2160p hdr bluray",
			title:     "The.Matrix.1999.2160p.UHD.BluRay.HDR.x265-GRP",
			wantFetch: true,
			wantRank:  3*ladderStep + 2*PreferredBonus + HDRBonus + UHDBonus,
		},
		{
			name:      "cam excluded",
			title:     "The.Matrix.1999.CAM.x264-GRP",
			wantFetch: false,
		},
		{
			name:      "telesync excluded",
			title:     "The.Matrix.1999.1080p.TS.x264-GRP",
			wantFetch: false,
		},
		{
			name:      "720p not required",
			title:     "The.Matrix.1999.720p.WEB.x264-GRP",
			wantFetch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Rank(tt.title, "hash")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFetch, got.Fetch)
			assert.Equal(t, "The Matrix", got.ParsedTitle)
			if tt.wantFetch {
				assert.Equal(t, tt.wantRank, got.Rank)
			}
		})
	}
}

func TestRlsRankerShortTermsMatchWholeWords(t *testing.T) {
	t.Parallel()

	r := newTestRanker(t, RankerConfig{})

	// "TS" appears inside "Pets" but is not a token.
	got, err := r.Rank("The.Secret.Life.of.Pets.2016.1080p.WEB-DL.x264-GRP", "")
	require.NoError(t, err)
	assert.True(t, got.Fetch)
	assert.Equal(t, "1080p", got.Resolution)
}

func TestRlsRankerEmptyRequireDisablesCheck(t *testing.T) {
	t.Parallel()

	r := newTestRanker(t, RankerConfig{Require: []string{}, Preferred: []string{}})

	got, err := r.Rank("The.Matrix.1999.720p.WEB.x264-GRP", "")
	require.NoError(t, err)
	assert.True(t, got.Fetch)
	assert.Equal(t, float64(ladderStep), got.Rank)
}

func TestRlsRankerFilterExpression(t *testing.T) {
	t.Parallel()

	r := newTestRanker(t, RankerConfig{Filter: `Year == 1999 && Group == "GRP" && !HDR`})

	got, err := r.Rank("The.Matrix.1999.1080p.BluRay.x264-GRP", "")
	require.NoError(t, err)
	assert.True(t, got.Fetch)

	got, err = r.Rank("The.Matrix.1999.1080p.BluRay.x264-OTHER", "")
	require.NoError(t, err)
	assert.False(t, got.Fetch)

	got, err = r.Rank("The.Matrix.1999.2160p.BluRay.HDR.x265-GRP", "")
	require.NoError(t, err)
	assert.False(t, got.Fetch)
}

func TestRlsRankerInvalidFilter(t *testing.T) {
	t.Parallel()

	_, err := NewRlsRanker(RankerConfig{Filter: `Title +`}, nil)
	require.Error(t, err)

	_, err = NewRlsRanker(RankerConfig{Filter: `Title`}, nil)
	require.Error(t, err, "non-boolean expression must be rejected")
}

func TestRlsRankerWithPolicy(t *testing.T) {
	t.Parallel()

	r := newTestRanker(t, RankerConfig{})
	policy, err := NewPolicy(models.QualityPolicy{
		ResolutionOrder: models.DefaultResolutionOrder,
		Strategy:        models.StrategyRanked,
	})
	require.NoError(t, err)

	item := models.WatchlistItem{Title: "The Matrix", ExternalID: "tt0133093", MediaType: models.MediaTypeMovie}
	candidates := []models.Release{
		{Title: "The.Matrix.1999.1080p.BluRay.x264-GRP", ContentHash: "a"},
		{Title: "The.Matrix.1999.2160p.UHD.BluRay.HDR.x265-GRP", ContentHash: "b"},
		{Title: "Finding.Nemo.2003.2160p.UHD.BluRay.HDR.x265-GRP", ContentHash: "c"},
		{Title: "The.Matrix.1999.CAM", ContentHash: "d"},
	}

	got, ok, err := policy.Select(item, candidates, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got.ContentHash)
	assert.Equal(t, "2160p", got.Resolution)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package quality picks which release to submit for a watchlist item.
//
// Every strategy is a pure function of its inputs. Resolution and attribute
// matching is a case-insensitive substring test against the release title.
package quality

import (
	"cmp"
	"slices"
	"strings"

	"github.com/autobrr/watchbrr/internal/models"
)

// SelectLadder walks the resolution order and takes the first tier with any
// match. Within that tier the largest release wins, then the best seeded one.
// A full tie keeps the earliest release.
func SelectLadder(releases []models.Release, policy models.QualityPolicy) (models.Release, bool) {
	for _, res := range policy.ResolutionOrder {
		needle := strings.ToLower(strings.TrimSpace(res))
		if needle == "" {
			continue
		}

		var (
			best  models.Release
			found bool
		)
		for _, r := range releases {
			if !containsFold(r.Title, needle) {
				continue
			}
			if !found || betterBySizeThenPeers(r, best) {
				best = r
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return models.Release{}, false
}

func betterBySizeThenPeers(a, b models.Release) bool {
	if a.SizeGB != b.SizeGB {
		return a.SizeGB > b.SizeGB
	}
	return a.PeerCount > b.PeerCount
}

// FilterAllowList keeps releases that mention any configured resolution, carry
// the preferred attribute when one is set, and do not fall below the minimum
// resolution. Input order is preserved.
func FilterAllowList(releases []models.Release, policy models.QualityPolicy) []models.Release {
	minIdx := -1
	if policy.MinResolution != "" {
		minIdx = policy.ResolutionIndex(policy.MinResolution)
	}
	preferred := strings.ToLower(strings.TrimSpace(policy.PreferredAttribute))

	out := make([]models.Release, 0, len(releases))
	for _, r := range releases {
		idx := firstResolutionIndex(r.Title, policy.ResolutionOrder)
		if idx < 0 {
			continue
		}
		if minIdx >= 0 && idx > minIdx {
			continue
		}
		if preferred != "" && !containsFold(r.Title, preferred) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// firstResolutionIndex returns the index of the first entry in order that
// appears in title, or -1.
func firstResolutionIndex(title string, order []string) int {
	for i, res := range order {
		needle := strings.ToLower(strings.TrimSpace(res))
		if needle != "" && containsFold(title, needle) {
			return i
		}
	}
	return -1
}

// SelectRanked scores every release with ranker and selects the highest ranked
// one whose parsed title is similar enough to the item title. A ranker error
// only discards the release it was raised for.
func SelectRanked(item models.WatchlistItem, releases []models.Release, ranker Ranker) Selection {
	ranked := RankReleases(item, releases, ranker)
	if len(ranked) == 0 {
		return Selection{}
	}
	return Selection{Release: ranked[0], Found: true, Eligible: len(ranked)}
}

// RankReleases returns the fetchable, title-matching releases sorted by rank,
// highest first. Equal ranks keep input order.
func RankReleases(item models.WatchlistItem, releases []models.Release, ranker Ranker) []models.Release {
	if ranker == nil {
		return nil
	}

	out := make([]models.Release, 0, len(releases))
	for _, r := range releases {
		ranking, err := ranker.Rank(r.Title, r.ContentHash)
		if err != nil {
			logRankError(item, r, err)
			continue
		}
		if !ranking.Fetch {
			continue
		}
		if Similarity(item.Title, ranking.ParsedTitle) < MinTitleSimilarity {
			continue
		}

		r.Rank = ranking.Rank
		if r.Resolution == "" {
			r.Resolution = ranking.Resolution
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b models.Release) int {
		return cmp.Compare(b.Rank, a.Rank)
	})
	return out
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

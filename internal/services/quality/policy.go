// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quality

import (
	"errors"
	"fmt"

	"github.com/autobrr/watchbrr/internal/models"
)

// ErrRankerRequired is returned when the ranked strategy has no ranker.
var ErrRankerRequired = errors.New("ranked strategy requires a ranker")

// Selection is the result of applying a policy to one search result.
type Selection struct {
	Release models.Release
	Found   bool
	// Eligible counts the releases that passed the strategy's filters.
	Eligible int
}

// Policy dispatches to a selection strategy.
type Policy struct {
	cfg models.QualityPolicy
}

func NewPolicy(cfg models.QualityPolicy) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return Policy{}, err
	}
	return Policy{cfg: cfg}, nil
}

func (p Policy) Config() models.QualityPolicy { return p.cfg }

func (p Policy) Strategy() models.SelectionStrategy { return p.cfg.EffectiveStrategy() }

// Select returns the single release to submit. The allowlist strategy submits
// the first eligible release in indexer order.
func (p Policy) Select(item models.WatchlistItem, releases []models.Release, ranker Ranker) (models.Release, bool, error) {
	sel, err := p.Evaluate(item, releases, ranker)
	if err != nil {
		return models.Release{}, false, err
	}
	return sel.Release, sel.Found, nil
}

// Evaluate is Select plus the eligible count.
func (p Policy) Evaluate(item models.WatchlistItem, releases []models.Release, ranker Ranker) (Selection, error) {
	switch strategy := p.cfg.EffectiveStrategy(); strategy {
	case models.StrategyLadder:
		eligible := 0
		for _, r := range releases {
			if firstResolutionIndex(r.Title, p.cfg.ResolutionOrder) >= 0 {
				eligible++
			}
		}
		r, ok := SelectLadder(releases, p.cfg)
		return Selection{Release: r, Found: ok, Eligible: eligible}, nil

	case models.StrategyAllowList:
		filtered := FilterAllowList(releases, p.cfg)
		if len(filtered) == 0 {
			return Selection{}, nil
		}
		return Selection{Release: filtered[0], Found: true, Eligible: len(filtered)}, nil

	case models.StrategyRanked:
		if ranker == nil {
			return Selection{}, ErrRankerRequired
		}
		return SelectRanked(item, releases, ranker), nil

	default:
		return Selection{}, fmt.Errorf("%w: unknown strategy %q", models.ErrInvalidPolicy, strategy)
	}
}

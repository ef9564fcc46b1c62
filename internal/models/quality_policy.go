// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"errors"
	"fmt"
	"strings"
)

// SelectionStrategy picks how a QualityPolicy turns candidates into a submission.
type SelectionStrategy string

const (
	// StrategyLadder walks the resolution order and takes the largest release in
	// the first tier that has any match.
	StrategyLadder SelectionStrategy = "ladder"
	// StrategyAllowList keeps every release matching any allowed resolution and
	// the preferred attribute, if one is configured.
	StrategyAllowList SelectionStrategy = "allowlist"
	// StrategyRanked delegates scoring to a Ranker.
	StrategyRanked SelectionStrategy = "ranked"
)

var ErrInvalidPolicy = errors.New("invalid quality policy")

// DefaultResolutionOrder is used when no resolutions are configured.
var DefaultResolutionOrder = []string{"2160p", "1080p", "720p"}

// QualityPolicy is configuration, never mutated at runtime.
type QualityPolicy struct {
	// ResolutionOrder lists resolutions from highest to lowest priority. It is both
	// the allow-list and the ladder.
	ResolutionOrder []string `json:"resolutionOrder"`
	// PreferredAttribute, when set, is required in every eligible title.
	PreferredAttribute string            `json:"preferredAttribute,omitempty"`
	MinResolution      string            `json:"minResolution,omitempty"`
	Strategy           SelectionStrategy `json:"strategy"`
}

// Validate reports whether the policy can be evaluated.
func (p QualityPolicy) Validate() error {
	if len(p.ResolutionOrder) == 0 {
		return fmt.Errorf("%w: resolution order is empty", ErrInvalidPolicy)
	}
	for i, res := range p.ResolutionOrder {
		if strings.TrimSpace(res) == "" {
			return fmt.Errorf("%w: resolution %d is blank", ErrInvalidPolicy, i)
		}
	}

	switch p.Strategy {
	case "", StrategyLadder, StrategyAllowList, StrategyRanked:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidPolicy, p.Strategy)
	}

	if p.MinResolution != "" && p.ResolutionIndex(p.MinResolution) < 0 {
		return fmt.Errorf("%w: min resolution %q is not in the resolution order", ErrInvalidPolicy, p.MinResolution)
	}

	return nil
}

// EffectiveStrategy returns the configured strategy, defaulting to the ladder.
func (p QualityPolicy) EffectiveStrategy() SelectionStrategy {
	if p.Strategy == "" {
		return StrategyLadder
	}
	return p.Strategy
}

// ResolutionIndex returns the position of res in the resolution order, or -1.
func (p QualityPolicy) ResolutionIndex(res string) int {
	for i, candidate := range p.ResolutionOrder {
		if strings.EqualFold(candidate, res) {
			return i
		}
	}
	return -1
}

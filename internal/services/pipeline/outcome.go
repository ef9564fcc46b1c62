// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
)

type State string

const (
	StateDiscovered      State = "discovered"
	StateReleasedChecked State = "released_checked"
	StateSearched        State = "searched"
	StateRanked          State = "ranked"
	StateSubmitted       State = "submitted"
	StateSkipped         State = "skipped"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateSkipped
}

// Reason explains a skipped outcome.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonAlreadyProcessed  Reason = "already_processed"
	ReasonAlreadyOwned      Reason = "already_owned"
	ReasonUnreleased        Reason = "unreleased"
	ReasonCollaboratorError Reason = "collaborator_error"
	ReasonNoReleases        Reason = "no_releases"
	ReasonNoMatch           Reason = "no_match"
	ReasonEmptyHash         Reason = "empty_hash"
)

// Outcome is the result of processing one watchlist item in one cycle.
type Outcome struct {
	Item models.WatchlistItem `json:"item"`
	// State is always terminal.
	State State `json:"state"`
	// Transitions lists every state the item entered, terminal state last. It is
	// empty for items stopped by the ledger pre-gate.
	Transitions   []State         `json:"transitions"`
	Reason        Reason          `json:"reason,omitempty"`
	Found         int             `json:"found"`
	Eligible      int             `json:"eligible"`
	Chosen        *models.Release `json:"chosen,omitempty"`
	BackendID     string          `json:"backendId,omitempty"`
	BackendStatus string          `json:"backendStatus,omitempty"`
	Err           error           `json:"-"`
	// Error mirrors Err for serialization.
	Error string `json:"error,omitempty"`
}

func (o *Outcome) enter(s State) {
	o.Transitions = append(o.Transitions, s)
	o.State = s
}

func (o *Outcome) skip(reason Reason, err error) {
	o.enter(StateSkipped)
	o.Reason = reason
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}
}

// CycleReport summarises one pass over a watchlist snapshot.
type CycleReport struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DryRun     bool      `json:"dryRun"`
	Outcomes   []Outcome `json:"outcomes"`
	// Counts holds the number of outcomes per terminal state.
	Counts map[State]int `json:"counts"`
	// Reasons holds the number of skipped outcomes per reason.
	Reasons map[Reason]int `json:"reasons"`
	// SourceErrors maps a watchlist source to the error that excluded it.
	SourceErrors map[string]string `json:"sourceErrors,omitempty"`
}

func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// add records o. An outcome that did not reach a terminal state is counted as
// a collaborator error so every item ends submitted or skipped.
func (r *CycleReport) add(o Outcome) {
	if !o.State.Terminal() {
		log.Error().Str("externalId", o.Item.ExternalID).Str("state", string(o.State)).Msg("pipeline: outcome ended in a non-terminal state")
		o.skip(ReasonCollaboratorError, fmt.Errorf("outcome ended in non-terminal state %q", o.State))
	}
	r.Outcomes = append(r.Outcomes, o)
	r.Counts[o.State]++
	if o.State == StateSkipped {
		r.Reasons[o.Reason]++
	}
}

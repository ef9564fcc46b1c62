// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debrid hands chosen releases to a download backend.
package debrid

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
)

const (
	// SelectAll asks the backend to download every file in the torrent.
	SelectAll = "all"

	DryRunID     = "dry-run"
	DryRunStatus = "dry_run"
)

var (
	ErrNoBackend   = errors.New("no download backend configured")
	ErrEmptyHash   = errors.New("release has no content hash")
	ErrEmptyRemote = errors.New("backend returned an empty id")
)

// Backend is a remote download service.
type Backend interface {
	Name() string
	AddMagnet(ctx context.Context, hash, displayName string) (string, error)
	SelectFiles(ctx context.Context, id, selector string) error
	Status(ctx context.Context, id string) (string, error)
}

// SubmitResult describes an accepted submission.
type SubmitResult struct {
	Backend string `json:"backend"`
	ID      string `json:"id"`
	Status  string `json:"status"`
}

// Submitter runs add, select and status against a backend. In dry-run mode it
// only logs and reports success.
type Submitter struct {
	backend Backend
	dryRun  atomic.Bool
}

func NewSubmitter(backend Backend, dryRun bool) *Submitter {
	s := &Submitter{backend: backend}
	s.dryRun.Store(dryRun)
	return s
}

func (s *Submitter) SetDryRun(enabled bool) { s.dryRun.Store(enabled) }

func (s *Submitter) DryRun() bool { return s.dryRun.Load() }

// BackendName returns the configured backend name, or "" when none is set.
func (s *Submitter) BackendName() string {
	if s.backend == nil {
		return ""
	}
	return s.backend.Name()
}

func (s *Submitter) Submit(ctx context.Context, release models.Release) (SubmitResult, error) {
	if !release.Submittable() {
		return SubmitResult{}, ErrEmptyHash
	}

	if s.DryRun() {
		log.Info().
			Str("backend", s.BackendName()).
			Str("release", release.Title).
			Str("hash", release.ContentHash).
			Msg("debrid: dry run, skipping submission")
		return SubmitResult{Backend: s.BackendName(), ID: DryRunID, Status: DryRunStatus}, nil
	}

	if s.backend == nil {
		return SubmitResult{}, ErrNoBackend
	}
	name := s.backend.Name()

	id, err := s.backend.AddMagnet(ctx, release.ContentHash, release.Title)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%s: add magnet: %w", name, err)
	}
	if id == "" {
		return SubmitResult{}, fmt.Errorf("%s: %w", name, ErrEmptyRemote)
	}

	if err := s.backend.SelectFiles(ctx, id, SelectAll); err != nil {
		return SubmitResult{}, fmt.Errorf("%s: select files for %s: %w", name, id, err)
	}

	status, err := s.backend.Status(ctx, id)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%s: status for %s: %w", name, id, err)
	}

	log.Info().
		Str("backend", name).
		Str("id", id).
		Str("status", status).
		Str("release", release.Title).
		Str("hash", release.ContentHash).
		Msg("debrid: release submitted")

	return SubmitResult{Backend: name, ID: id, Status: status}, nil
}

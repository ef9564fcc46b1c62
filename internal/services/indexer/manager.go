// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/pkg/timeouts"
	"github.com/autobrr/watchbrr/pkg/redact"
)

const ManagerName = "manager"

// Manager is a named registry of indexers in registration order.
type Manager struct {
	mu       sync.RWMutex
	order    []string
	indexers map[string]Indexer
	fanOut   bool
}

func NewManager(indexers ...Indexer) (*Manager, error) {
	m := &Manager{indexers: make(map[string]Indexer, len(indexers))}
	for _, ix := range indexers {
		if err := m.Register(ix); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds an indexer. Names are case-insensitive and must be unique.
func (m *Manager) Register(ix Indexer) error {
	if ix == nil {
		return errors.New("indexer is nil")
	}
	key := normalizeName(ix.Name())
	if key == "" {
		return errors.New("indexer name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.indexers[key]; exists {
		return fmt.Errorf("indexer %q already registered", ix.Name())
	}
	m.indexers[key] = ix
	m.order = append(m.order, key)
	return nil
}

// SetFanOut makes FindReleases query every indexer instead of the first one.
func (m *Manager) SetFanOut(enabled bool) {
	m.mu.Lock()
	m.fanOut = enabled
	m.mu.Unlock()
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.order))
	for _, key := range m.order {
		names = append(names, m.indexers[key].Name())
	}
	return names
}

func (m *Manager) Get(name string) (Indexer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.indexers[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrIndexerNotFound, name)
	}
	return ix, nil
}

func (m *Manager) Name() string { return ManagerName }

// FindReleases queries the first registered indexer, or all of them in fan-out mode.
func (m *Manager) FindReleases(ctx context.Context, externalID string, mediaType models.MediaType, title string) ([]models.Release, error) {
	if err := ValidateMediaType(mediaType); err != nil {
		return nil, err
	}

	m.mu.RLock()
	fanOut := m.fanOut
	var first Indexer
	if len(m.order) > 0 {
		first = m.indexers[m.order[0]]
	}
	m.mu.RUnlock()

	if fanOut {
		return m.FindReleasesAll(ctx, externalID, mediaType, title)
	}
	if first == nil {
		return nil, ErrNoIndexers
	}
	return first.FindReleases(ctx, externalID, mediaType, title)
}

// Search queries one indexer by name.
func (m *Manager) Search(ctx context.Context, name, externalID string, mediaType models.MediaType, title string) ([]models.Release, error) {
	if err := ValidateMediaType(mediaType); err != nil {
		return nil, err
	}
	ix, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return ix.FindReleases(ctx, externalID, mediaType, title)
}

// FindReleasesAll queries every indexer in order and concatenates the results.
// A failing indexer is skipped unless every indexer fails.
func (m *Manager) FindReleasesAll(ctx context.Context, externalID string, mediaType models.MediaType, title string) ([]models.Release, error) {
	if err := ValidateMediaType(mediaType); err != nil {
		return nil, err
	}

	m.mu.RLock()
	indexers := make([]Indexer, 0, len(m.order))
	for _, key := range m.order {
		indexers = append(indexers, m.indexers[key])
	}
	m.mu.RUnlock()

	if len(indexers) == 0 {
		return nil, ErrNoIndexers
	}

	searchCtx, cancel := timeouts.WithSearchTimeout(ctx, timeouts.AdaptiveSearchTimeout(len(indexers)))
	defer cancel()

	var (
		all  = make([]models.Release, 0)
		errs []error
	)
	for _, ix := range indexers {
		releases, err := ix.FindReleases(searchCtx, externalID, mediaType, title)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			err = redact.URLError(err)
			log.Warn().
				Err(err).
				Str("indexer", ix.Name()).
				Str("externalId", externalID).
				Str("title", title).
				Msg("indexer: search failed, skipping")
			errs = append(errs, fmt.Errorf("%s: %w", ix.Name(), err))
			continue
		}
		all = append(all, releases...)
	}

	if len(errs) == len(indexers) {
		return nil, fmt.Errorf("all indexers failed: %w", errors.Join(errs...))
	}
	return all, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package watchlist aggregates the watchlist sources a user has configured.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/redact"
)

var ErrSourceNotFound = errors.New("watchlist source not found")

// Source is a remote watchlist plus the collection the user already owns.
type Source interface {
	Name() string
	GetWatchlist(ctx context.Context) ([]models.WatchlistItem, error)
	GetUserCollection(ctx context.Context) ([]models.CollectionItem, error)
	RemoveFromWatchlist(ctx context.Context, item models.WatchlistItem) (bool, error)
}

// Snapshot is one cycle's view across every source.
type Snapshot struct {
	Items []models.WatchlistItem
	// Owned is the sorted union of collection external ids.
	Owned []string
	// Failed maps a source name to the error that made it contribute nothing.
	Failed map[string]error
}

type Manager struct {
	mu      sync.RWMutex
	order   []string
	sources map[string]Source
}

func NewManager(sources ...Source) (*Manager, error) {
	m := &Manager{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if err := m.Register(s); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) Register(s Source) error {
	if s == nil {
		return errors.New("watchlist source is nil")
	}
	key := sourceKey(s.Name())
	if key == "" {
		return errors.New("watchlist source name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[key]; exists {
		return fmt.Errorf("watchlist source %q already registered", s.Name())
	}
	m.sources[key] = s
	m.order = append(m.order, key)
	return nil
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.order))
	for _, key := range m.order {
		names = append(names, m.sources[key].Name())
	}
	return names
}

func (m *Manager) Get(name string) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sources[sourceKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}
	return s, nil
}

func (m *Manager) list() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Source, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.sources[key])
	}
	return out
}

// Snapshot fetches every watchlist and collection. A failing source is logged
// and contributes nothing; the snapshot itself never fails.
func (m *Manager) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		Items:  make([]models.WatchlistItem, 0),
		Owned:  make([]string, 0),
		Failed: make(map[string]error),
	}
	owned := make(map[string]struct{})
	seen := make(map[string]int)

	for _, s := range m.list() {
		name := s.Name()

		items, err := s.GetWatchlist(ctx)
		if err != nil {
			err = redact.URLError(err)
			log.Error().Err(err).Str("source", name).Msg("watchlist: failed to fetch watchlist")
			snap.Failed[name] = err
			continue
		}

		collection, err := s.GetUserCollection(ctx)
		if err != nil {
			err = redact.URLError(err)
			log.Error().Err(err).Str("source", name).Msg("watchlist: failed to fetch collection")
			snap.Failed[name] = err
			continue
		}

		for _, item := range items {
			if item.Source == "" {
				item.Source = name
			}
			origin := models.Origin{Source: item.Source, SourceKey: item.SourceKey}

			if idx, ok := seen[item.Key()]; ok {
				first := &snap.Items[idx]
				first.Origins = append(first.Origins, origin)
				log.Debug().Str("externalId", item.ExternalID).Str("source", name).Msg("watchlist: item already listed by another source")
				continue
			}
			item.Origins = []models.Origin{origin}
			seen[item.Key()] = len(snap.Items)
			snap.Items = append(snap.Items, item)
		}
		for _, c := range collection {
			if id := strings.TrimSpace(c.ExternalID); id != "" {
				owned[id] = struct{}{}
			}
		}

		log.Debug().
			Str("source", name).
			Int("watchlist", len(items)).
			Int("collection", len(collection)).
			Msg("watchlist: source fetched")
	}

	for id := range owned {
		snap.Owned = append(snap.Owned, id)
	}
	sort.Strings(snap.Owned)
	return snap
}

// RemoveFromWatchlist removes item from every source that listed it. It reports
// true when at least one source removed it.
func (m *Manager) RemoveFromWatchlist(ctx context.Context, item models.WatchlistItem) (bool, error) {
	listings := item.Listings()
	if len(listings) == 0 {
		return false, fmt.Errorf("%w: item %q has no source", ErrSourceNotFound, item.ExternalID)
	}

	var (
		removed bool
		errs    []error
	)
	for _, o := range listings {
		s, err := m.Get(o.Source)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		listed := item
		listed.Source, listed.SourceKey, listed.Origins = o.Source, o.SourceKey, nil

		ok, err := s.RemoveFromWatchlist(ctx, listed)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Source, err))
			continue
		}
		removed = removed || ok
	}
	return removed, errors.Join(errs...)
}

func sourceKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ledger tracks which watchlist items already produced a confirmed
// submission, plus the set of items the user already owns.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
)

// Store persists ledger entries across restarts.
type Store interface {
	ListIDs(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, item *models.ProcessedItem) error
}

// Ledger is safe for concurrent use. Processed entries are never removed.
type Ledger struct {
	mu        sync.RWMutex
	processed map[string]struct{}
	owned     map[string]struct{}
	store     Store
}

// New returns an in-memory ledger.
func New() *Ledger {
	return &Ledger{
		processed: make(map[string]struct{}),
		owned:     make(map[string]struct{}),
	}
}

// NewWithStore returns a ledger seeded from store. Every Mark is written through.
func NewWithStore(ctx context.Context, store Store) (*Ledger, error) {
	l := New()
	if store == nil {
		return l, nil
	}

	ids, err := store.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	for _, id := range ids {
		l.processed[id] = struct{}{}
	}
	l.store = store

	log.Debug().Int("entries", len(ids)).Msg("ledger: loaded persisted entries")
	return l, nil
}

func normalize(id string) string {
	return strings.TrimSpace(id)
}

// IsProcessed reports whether id produced a confirmed submission.
func (l *Ledger) IsProcessed(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.processed[normalize(id)]
	return ok
}

// IsOwned reports whether id is in the current owned set.
func (l *Ledger) IsOwned(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.owned[normalize(id)]
	return ok
}

// ReplaceOwned swaps the owned set for ids.
func (l *Ledger) ReplaceOwned(ids []string) {
	owned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = normalize(id); id != "" {
			owned[id] = struct{}{}
		}
	}

	l.mu.Lock()
	l.owned = owned
	l.mu.Unlock()
}

// Mark records entry as processed. The in-memory set is always updated; a
// store failure is returned so the caller can log it.
func (l *Ledger) Mark(ctx context.Context, entry models.ProcessedItem) error {
	id := normalize(entry.ExternalID)
	if id == "" {
		return fmt.Errorf("ledger: external id is required")
	}
	entry.ExternalID = id

	l.mu.Lock()
	_, seen := l.processed[id]
	l.processed[id] = struct{}{}
	store := l.store
	l.mu.Unlock()

	if seen || store == nil {
		return nil
	}
	if err := store.Insert(ctx, &entry); err != nil {
		return fmt.Errorf("ledger: persist %s: %w", id, err)
	}
	return nil
}

// Len returns the number of processed entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.processed)
}

// OwnedLen returns the size of the owned set.
func (l *Ledger) OwnedLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.owned)
}

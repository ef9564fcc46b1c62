// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/autobrr/watchbrr/internal/dbinterface"
)

// ProcessedItem is a persisted ledger entry: a watchlist item that produced a
// confirmed submission.
type ProcessedItem struct {
	ExternalID   string    `json:"externalId" yaml:"externalId"`
	Title        string    `json:"title" yaml:"title"`
	MediaType    MediaType `json:"mediaType" yaml:"mediaType"`
	Source       string    `json:"source,omitempty" yaml:"source,omitempty"`
	ContentHash  string    `json:"contentHash" yaml:"contentHash"`
	ReleaseTitle string    `json:"releaseTitle" yaml:"releaseTitle"`
	Backend      string    `json:"backend" yaml:"backend"`
	BackendID    string    `json:"backendId" yaml:"backendId"`
	ProcessedAt  time.Time `json:"processedAt" yaml:"processedAt"`
}

// ProcessedItemStore persists ledger entries. Rows are only ever inserted.
type ProcessedItemStore struct {
	db dbinterface.Querier
}

func NewProcessedItemStore(db dbinterface.Querier) *ProcessedItemStore {
	return &ProcessedItemStore{db: db}
}

// Insert records an entry. Re-inserting a known external id is a no-op.
func (s *ProcessedItemStore) Insert(ctx context.Context, item *ProcessedItem) error {
	if item == nil {
		return errors.New("processed item is nil")
	}
	externalID := strings.TrimSpace(item.ExternalID)
	if externalID == "" {
		return errors.New("processed item external id is required")
	}

	processedAt := item.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_items
			(external_id, title, media_type, source, content_hash, release_title, backend, backend_id, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, externalID, item.Title, string(item.MediaType), item.Source, item.ContentHash, item.ReleaseTitle, item.Backend, item.BackendID, processedAt)
	return err
}

// List returns every entry, newest first.
func (s *ProcessedItemStore) List(ctx context.Context) ([]*ProcessedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, title, media_type, source, content_hash, release_title, backend, backend_id, processed_at
		FROM processed_items
		ORDER BY processed_at DESC, external_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ProcessedItem
	for rows.Next() {
		var item ProcessedItem
		var mediaType string
		if err := rows.Scan(&item.ExternalID, &item.Title, &mediaType, &item.Source, &item.ContentHash, &item.ReleaseTitle, &item.Backend, &item.BackendID, &item.ProcessedAt); err != nil {
			return nil, err
		}
		item.MediaType = MediaType(mediaType)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListIDs returns the external ids of every entry.
func (s *ProcessedItemStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT external_id FROM processed_items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists reports whether externalID has been recorded.
func (s *ProcessedItemStore) Exists(ctx context.Context, externalID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_items WHERE external_id = ?`, externalID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/watchbrr/internal/database"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/testdb"
)

type fakeStore struct {
	ids       []string
	inserted  []string
	listErr   error
	insertErr error
}

func (f *fakeStore) ListIDs(context.Context) ([]string, error) {
	return f.ids, f.listErr
}

func (f *fakeStore) Insert(_ context.Context, item *models.ProcessedItem) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, item.ExternalID)
	return nil
}

func TestLedgerMarkIsMonotonic(t *testing.T) {
	t.Parallel()

	l := New()
	ctx := context.Background()

	assert.False(t, l.IsProcessed("tt1"))
	require.NoError(t, l.Mark(ctx, models.ProcessedItem{ExternalID: "tt1"}))
	require.NoError(t, l.Mark(ctx, models.ProcessedItem{ExternalID: " tt1 "}))

	assert.True(t, l.IsProcessed("tt1"))
	assert.Equal(t, 1, l.Len())

	require.Error(t, l.Mark(ctx, models.ProcessedItem{}))
}

func TestLedgerReplaceOwned(t *testing.T) {
	t.Parallel()

	l := New()
	l.ReplaceOwned([]string{"tt1", "tt2", ""})
	assert.True(t, l.IsOwned("tt1"))
	assert.Equal(t, 2, l.OwnedLen())

	l.ReplaceOwned([]string{"tt3"})
	assert.False(t, l.IsOwned("tt1"))
	assert.True(t, l.IsOwned("tt3"))
	assert.False(t, l.IsProcessed("tt3"))
}

func TestLedgerWithStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &fakeStore{ids: []string{"tt9"}}

	l, err := NewWithStore(ctx, store)
	require.NoError(t, err)
	assert.True(t, l.IsProcessed("tt9"))

	require.NoError(t, l.Mark(ctx, models.ProcessedItem{ExternalID: "tt1"}))
	require.NoError(t, l.Mark(ctx, models.ProcessedItem{ExternalID: "tt9"}))
	assert.Equal(t, []string{"tt1"}, store.inserted)
}

func TestLedgerStoreFailureStillMarks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &fakeStore{insertErr: errors.New("disk full")}

	l, err := NewWithStore(ctx, store)
	require.NoError(t, err)

	err = l.Mark(ctx, models.ProcessedItem{ExternalID: "tt1"})
	require.ErrorContains(t, err, "disk full")
	assert.True(t, l.IsProcessed("tt1"))
}

func TestLedgerLoadFailure(t *testing.T) {
	t.Parallel()

	_, err := NewWithStore(context.Background(), &fakeStore{listErr: errors.New("boom")})
	require.ErrorContains(t, err, "boom")
}

func TestLedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := testdb.PathFromTemplate(t, "ledger", "ledger.db")

	db, err := database.New(path)
	require.NoError(t, err)

	l, err := NewWithStore(ctx, models.NewProcessedItemStore(db))
	require.NoError(t, err)
	require.NoError(t, l.Mark(ctx, models.ProcessedItem{ExternalID: "tt0111161", Title: "The Shawshank Redemption"}))
	require.NoError(t, db.Close())

	db, err = database.New(path)
	require.NoError(t, err)
	defer db.Close()

	reloaded, err := NewWithStore(ctx, models.NewProcessedItemStore(db))
	require.NoError(t, err)
	assert.True(t, reloaded.IsProcessed("tt0111161"))
	assert.Equal(t, 1, reloaded.Len())
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// LedgerLister lists persisted ledger entries, newest first.
type LedgerLister interface {
	List(ctx context.Context) ([]*models.ProcessedItem, error)
}

type LedgerHandler struct {
	store LedgerLister
}

func NewLedgerHandler(store LedgerLister) *LedgerHandler {
	return &LedgerHandler{store: store}
}

func (h *LedgerHandler) ListProcessed(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("api: failed to list ledger entries")
		RespondError(w, http.StatusInternalServerError, "failed to list ledger entries")
		return
	}
	if items == nil {
		items = []*models.ProcessedItem{}
	}

	RespondJSON(w, http.StatusOK, Paginate(items, ParsePagination(r, defaultLedgerLimit, maxLedgerLimit)))
}

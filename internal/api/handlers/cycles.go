// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/services/pipeline"
	"github.com/autobrr/watchbrr/internal/services/scheduler"
)

// CycleService is the scheduler surface exposed over HTTP.
type CycleService interface {
	History() []pipeline.CycleReport
	Last() (pipeline.CycleReport, bool)
	Trigger() error
	Running() bool
}

type CyclesHandler struct {
	cycles CycleService
}

func NewCyclesHandler(cycles CycleService) *CyclesHandler {
	return &CyclesHandler{cycles: cycles}
}

func (h *CyclesHandler) Routes(r chi.Router) {
	r.Get("/", h.ListCycles)
	r.Get("/last", h.LastCycle)
	r.Post("/run", h.RunCycle)
}

func (h *CyclesHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.cycles.History())
}

func (h *CyclesHandler) LastCycle(w http.ResponseWriter, r *http.Request) {
	report, ok := h.cycles.Last()
	if !ok {
		RespondError(w, http.StatusNotFound, "no cycle has completed yet")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

func (h *CyclesHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	err := h.cycles.Trigger()
	switch {
	case err == nil:
		RespondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, scheduler.ErrCycleRunning):
		RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("api: failed to trigger cycle")
		RespondError(w, http.StatusServiceUnavailable, err.Error())
	}
}

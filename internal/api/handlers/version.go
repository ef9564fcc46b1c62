// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/autobrr/watchbrr/internal/buildinfo"
)

type VersionHandler struct {
	info buildinfo.Info
}

func NewVersionHandler(info buildinfo.Info) *VersionHandler {
	return &VersionHandler{info: info}
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.info)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/watchbrr/internal/buildinfo"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/services/pipeline"
	"github.com/autobrr/watchbrr/internal/services/scheduler"
)

type stubLedger struct{}

func (stubLedger) List(context.Context) ([]*models.ProcessedItem, error) {
	return []*models.ProcessedItem{{ExternalID: "tt1"}}, nil
}

type stubCycles struct{ running bool }

func (s *stubCycles) History() []pipeline.CycleReport { return nil }
func (s *stubCycles) Last() (pipeline.CycleReport, bool) {
	return pipeline.CycleReport{}, false
}
func (s *stubCycles) Running() bool { return s.running }
func (s *stubCycles) Trigger() error {
	if s.running {
		return scheduler.ErrCycleRunning
	}
	return nil
}

func newTestDependencies(t *testing.T) *Dependencies {
	t.Helper()

	return &Dependencies{
		Host:    "127.0.0.1",
		Port:    7480,
		Version: buildinfo.Info{Version: "test"},
		Ledger:  stubLedger{},
		Cycles:  &stubCycles{},
	}
}

type routeKey struct {
	Method string
	Path   string
}

func collectRouterRoutes(t *testing.T, r chi.Routes) []routeKey {
	t.Helper()

	var routes []routeKey
	err := chi.Walk(r, func(method string, path string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
		routes = append(routes, routeKey{Method: strings.ToUpper(method), Path: strings.ReplaceAll(path, "/*", "")})
		return nil
	})
	require.NoError(t, err)

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}

func TestRouterRegistersStatusRoutes(t *testing.T) {
	server := NewServer(newTestDependencies(t))
	router, err := server.Handler()
	require.NoError(t, err)

	assert.Equal(t, []routeKey{
		{Method: "GET", Path: "/api/cycles"},
		{Method: "GET", Path: "/api/cycles/last"},
		{Method: "POST", Path: "/api/cycles/run"},
		{Method: "GET", Path: "/api/ledger"},
		{Method: "GET", Path: "/api/version"},
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/health/liveness"},
		{Method: "GET", Path: "/health/readiness"},
	}, collectRouterRoutes(t, router))
}

func TestHandlerRequiresDependencies(t *testing.T) {
	deps := newTestDependencies(t)
	deps.Cycles = nil

	_, err := NewServer(deps).Handler()
	require.Error(t, err)
}

func TestRunCycleConflict(t *testing.T) {
	deps := newTestDependencies(t)
	deps.Cycles = &stubCycles{running: true}

	router, err := NewServer(deps).Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycles/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEndpointsRespond(t *testing.T) {
	router, err := NewServer(newTestDependencies(t)).Handler()
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{method: http.MethodGet, path: "/health", status: http.StatusOK},
		{method: http.MethodGet, path: "/health/readiness", status: http.StatusOK},
		{method: http.MethodGet, path: "/health/liveness", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/version", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/ledger", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/cycles", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/cycles/last", status: http.StatusNotFound},
		{method: http.MethodPost, path: "/api/cycles/run", status: http.StatusAccepted},
		{method: http.MethodGet, path: "/api/unknown", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

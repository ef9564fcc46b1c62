// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api serves the status and control endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/api/handlers"
	"github.com/autobrr/watchbrr/internal/buildinfo"
)

type Server struct {
	server *http.Server
	logger zerolog.Logger

	host    string
	port    int
	version buildinfo.Info
	ledger  handlers.LedgerLister
	cycles  handlers.CycleService
	checks  []handlers.ReadinessCheck
}

type Dependencies struct {
	Host            string
	Port            int
	Version         buildinfo.Info
	Ledger          handlers.LedgerLister
	Cycles          handlers.CycleService
	ReadinessChecks []handlers.ReadinessCheck
}

func NewServer(deps *Dependencies) *Server {
	s := Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		logger:  log.Logger.With().Str("module", "api").Logger(),
		host:    deps.Host,
		port:    deps.Port,
		version: deps.Version,
		ledger:  deps.Ledger,
		cycles:  deps.Cycles,
		checks:  deps.ReadinessChecks,
	}

	return &s
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msgf("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Msgf("Starting API server - Open: http://%s/health", host)

	handler, err := s.Handler()
	if err != nil {
		listener.Close()
		return fmt.Errorf("build API router: %w", err)
	}

	s.server.Handler = handler

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() (*chi.Mux, error) {
	if s.cycles == nil {
		return nil, errors.New("api: cycle service is required")
	}
	if s.ledger == nil {
		return nil, errors.New("api: ledger store is required")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	corsMiddleware := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedMethods:   []string{"HEAD", "OPTIONS", "GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowOriginFunc:  func(origin string) bool { return true },
		MaxAge:           300,
		Debug:            false,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler(s.checks...)
	versionHandler := handlers.NewVersionHandler(s.version)
	ledgerHandler := handlers.NewLedgerHandler(s.ledger)
	cyclesHandler := handlers.NewCyclesHandler(s.cycles)

	r.Route("/health", healthHandler.Routes)

	r.Route("/api", func(r chi.Router) {
		r.Use(requestLogger(s.logger))

		r.Get("/version", versionHandler.GetVersion)
		r.Get("/ledger", ledgerHandler.ListProcessed)
		r.Route("/cycles", cyclesHandler.Routes)
	})

	return r, nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Str("requestId", middleware.GetReqID(r.Context())).
					Dur("duration", time.Since(start)).
					Msg("api: request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

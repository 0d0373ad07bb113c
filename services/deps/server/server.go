// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a loaded analysis over HTTP.
//
// The server analyses one document at start-up and answers queries from
// that run. With watching enabled it re-analyses the document whenever the
// file (or its measurement table) changes and swaps the run atomically; a
// failed reload keeps the previous run.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/watch"
)

// ErrNoDocument is returned by New without a document path.
var ErrNoDocument = errors.New("document path is required")

// Config configures a Server.
type Config struct {
	// Document is the pattern file to serve.
	Document string

	// Addr is the listen address, for example ":12230".
	Addr string

	// Watch re-analyses the document when it changes on disk.
	Watch bool

	// WatchPaths are additional files whose change triggers a reload,
	// such as the measurement table.
	WatchPaths []string

	// WatchDebounce coalesces bursts of writes. Default: the watcher's.
	WatchDebounce time.Duration

	// Debug enables gin debug mode and request logging.
	Debug bool

	// MetricsHandler serves /metrics. Default: promhttp.Handler().
	MetricsHandler http.Handler

	// ShutdownTimeout bounds graceful shutdown. Default: 5s.
	ShutdownTimeout time.Duration
}

// loaded is one immutable server state.
type loaded struct {
	run        *deps.Run
	loadedAt   time.Time
	snapshotID string
}

// Server serves the query API.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	cfg       Config
	service   *deps.Service
	snapshots *graph.SnapshotManager
	logger    *slog.Logger

	state   atomic.Pointer[loaded]
	reloads atomic.Int64

	mu        sync.Mutex
	reloadMu  sync.Mutex
	lastError string

	router  *gin.Engine
	watcher *watch.Watcher
}

// Option configures a Server.
type Option func(*Server)

// WithSnapshots saves a snapshot after every successful load.
func WithSnapshots(m *graph.SnapshotManager) Option {
	return func(s *Server) { s.snapshots = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server. The document is not analysed until Load or Run.
func New(cfg Config, service *deps.Service, opts ...Option) (*Server, error) {
	if cfg.Document == "" {
		return nil, ErrNoDocument
	}
	if service == nil {
		return nil, fmt.Errorf("service must not be nil")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	s := &Server{cfg: cfg, service: service, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.newRouter()
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	if s.cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("seamlydeps"))
	if s.cfg.Debug {
		router.Use(gin.Logger())
	}

	router.GET("/metrics", gin.WrapH(s.cfg.MetricsHandler))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, &Handlers{srv: s, logger: s.logger})
	return router
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Load analyses the document for the first time.
func (s *Server) Load(ctx context.Context) error {
	_, err := s.Reload(ctx)
	return err
}

// Reload re-analyses the document and swaps the served run.
//
// Description:
//
//	Reloads are serialized. On failure the previous run keeps serving and
//	the error is reported by the ready endpoint.
func (s *Server) Reload(ctx context.Context) (*deps.Run, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	run, err := s.service.AnalyzeFile(ctx, s.cfg.Document)
	if err != nil {
		s.setLastError(err.Error())
		return nil, err
	}

	next := &loaded{run: run, loadedAt: time.Now()}
	if s.snapshots != nil {
		meta, err := s.snapshots.Save(ctx, run.Graph, "serve:"+run.ID)
		if err != nil {
			s.logger.Warn("snapshot save failed", slog.String("error", err.Error()))
		} else {
			next.snapshotID = meta.SnapshotID
		}
	}

	prev := s.state.Swap(next)
	s.reloads.Add(1)
	s.setLastError("")

	changed := prev == nil || prev.run.Graph.Hash() != run.Graph.Hash()
	s.logger.Info("document loaded",
		slog.String("document", s.cfg.Document),
		slog.String("run_id", run.ID),
		slog.Bool("changed", changed),
	)
	return run, nil
}

// Status reports the load state.
func (s *Server) Status() ReadyResponse {
	resp := ReadyResponse{Reloads: s.reloads.Load()}
	s.mu.Lock()
	resp.LastError = s.lastError
	s.mu.Unlock()

	if st := s.state.Load(); st != nil {
		resp.Ready = true
		resp.RunID = st.run.ID
		resp.Source = st.run.Source
		resp.LoadedAt = st.loadedAt.UnixMilli()
		resp.GraphHash = st.run.Graph.Hash()
		resp.SnapshotID = st.snapshotID
	}
	return resp
}

func (s *Server) setLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// StartWatching starts the file watcher when Config.Watch is set.
func (s *Server) StartWatching(ctx context.Context) error {
	if !s.cfg.Watch {
		return nil
	}
	paths := append([]string{s.cfg.Document}, s.cfg.WatchPaths...)
	w, err := watch.New(paths, func(changes []watch.Change) {
		s.logger.Info("change detected, reloading",
			slog.String("path", changes[0].Path),
			slog.Int("changes", len(changes)),
		)
		if _, err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload failed", slog.String("error", err.Error()))
		}
	}, watch.WithLogger(s.logger), watch.WithDebounce(s.cfg.WatchDebounce))
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	s.watcher = w
	return nil
}

// Run loads the document, starts watching and serves until ctx ends.
//
// Outputs:
//
//	error - Load, watcher or listen failure. nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	if err := s.StartWatching(ctx); err != nil {
		return err
	}
	defer func() {
		if s.watcher != nil {
			s.watcher.Stop()
		}
	}()

	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting seamlydeps server", slog.String("address", s.cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down seamlydeps server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

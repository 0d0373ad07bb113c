// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// copyFixture copies a testdata file into dir and returns its path.
func copyFixture(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", name))
	require.NoError(t, err)
	dst := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(dst, data, 0o644))
	return dst
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()
	if cfg.Document == "" {
		cfg.Document = filepath.Join("..", "testdata", "bodice.sm2d")
	}
	opts = append([]Option{WithLogger(quiet)}, opts...)
	srv, err := New(cfg, deps.NewService(deps.WithLogger(quiet)), opts...)
	require.NoError(t, err)
	return srv
}

func loadedServer(t *testing.T) *Server {
	t.Helper()
	srv := newTestServer(t, Config{})
	require.NoError(t, srv.Load(context.Background()))
	return srv
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, deps.NewService())
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = New(Config{Document: "x.sm2d"}, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{})
	w := do(t, srv, http.MethodGet, "/v1/deps/health")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestNotLoaded(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, http.MethodGet, "/v1/deps/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, decode[ReadyResponse](t, w).Ready)

	w = do(t, srv, http.MethodGet, "/v1/deps/summary")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeNotLoaded, decode[ErrorResponse](t, w).Code)
}

func TestReady(t *testing.T) {
	srv := loadedServer(t)
	w := do(t, srv, http.MethodGet, "/v1/deps/ready")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ReadyResponse](t, w)
	assert.True(t, resp.Ready)
	assert.Equal(t, int64(1), resp.Reloads)
	assert.NotEmpty(t, resp.RunID)
	assert.NotEmpty(t, resp.GraphHash)
	assert.Empty(t, resp.LastError)
}

func TestSummaryAndObjects(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, http.MethodGet, "/v1/deps/summary")
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[graph.Summary](t, w)
	assert.Equal(t, 30, sum.TotalObjects)
	assert.Equal(t, 3, sum.HashVariableCount)

	w = do(t, srv, http.MethodGet, "/v1/deps/objects")
	require.Equal(t, http.StatusOK, w.Code)
	objs := decode[ObjectsResponse](t, w)
	assert.Equal(t, 30, objs.Total)
	assert.Equal(t, []string{"#EaseRatioBust", "#HalfBust", "#Dart"}, objs.Categories[model.CategoryVariable])
}

func TestObjectsByCategory(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, http.MethodGet, "/v1/deps/objects/variable")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CategoryResponse](t, w)
	assert.Equal(t, model.CategoryVariable, resp.Category)
	assert.Len(t, resp.Objects, 3)

	w = do(t, srv, http.MethodGet, "/v1/deps/objects/widgets")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeUnknownCategory, decode[ErrorResponse](t, w).Code)
}

func TestRecordTraceDependents(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, http.MethodGet, "/v1/deps/records/B1")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/v1/deps/trace/%23Dart")
	require.Equal(t, http.StatusOK, w.Code)
	trace := decode[DependenciesResponse](t, w)
	assert.Equal(t, "-3", trace.ID)
	assert.Len(t, trace.Dependencies, 4)

	w = do(t, srv, http.MethodGet, "/v1/deps/dependents/-2")
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[DependenciesResponse](t, w)
	assert.Equal(t, "#HalfBust", users.Name)
	require.Len(t, users.Dependencies, 2)
	assert.Equal(t, "-3", users.Dependencies[0].ID)

	w = do(t, srv, http.MethodGet, "/v1/deps/trace/NoSuchThing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, w).Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAnalyze(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, http.MethodGet, "/v1/deps/analyze/%23Dart")
	require.Equal(t, http.StatusOK, w.Code)
	a := decode[graph.Analysis](t, w)
	assert.True(t, a.Found)
	assert.Equal(t, model.CategoryVariable, a.Category)

	w = do(t, srv, http.MethodGet, "/v1/deps/analyze/%23Ghost")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[graph.Analysis](t, w).Found)
}

func TestVariablesAndWarnings(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, http.MethodGet, "/v1/deps/variables")
	require.Equal(t, http.StatusOK, w.Code)
	vars := decode[VariablesResponse](t, w)
	assert.Equal(t, "#", vars.Prefix)
	assert.Len(t, vars.Variables, 3)

	w = do(t, srv, http.MethodGet, "/v1/deps/warnings")
	require.Equal(t, http.StatusOK, w.Code)
	warnings := decode[[]model.Warning](t, w)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnUnresolvedReference, warnings[0].Kind)
}

func TestGraph(t *testing.T) {
	srv := loadedServer(t)
	w := do(t, srv, http.MethodGet, "/v1/deps/graph")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[GraphResponse](t, w)
	require.NotNil(t, resp.Graph)
	assert.Equal(t, 30, resp.Summary.TotalObjects)
}

func TestReload_KeepsPreviousRunOnFailure(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "bodice.smis")
	doc := copyFixture(t, dir, "bodice.sm2d")
	srv := newTestServer(t, Config{Document: doc})
	require.NoError(t, srv.Load(context.Background()))
	before := srv.Status()

	w := do(t, srv, http.MethodPost, "/v1/deps/reload")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[ReloadResponse](t, w).Changed)

	require.NoError(t, os.WriteFile(doc, []byte("<pattern><draw"), 0o644))
	w = do(t, srv, http.MethodPost, "/v1/deps/reload")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeReloadFailed, decode[ErrorResponse](t, w).Code)

	after := srv.Status()
	assert.True(t, after.Ready)
	assert.Equal(t, before.GraphHash, after.GraphHash)
	assert.NotEmpty(t, after.LastError)
	assert.Equal(t, int64(2), after.Reloads)
}

func TestReload_SavesSnapshot(t *testing.T) {
	db, err := graph.OpenStore("")
	require.NoError(t, err)
	defer db.Close()
	snaps, err := graph.NewSnapshotManager(db, quiet)
	require.NoError(t, err)

	srv := newTestServer(t, Config{}, WithSnapshots(snaps))
	require.NoError(t, srv.Load(context.Background()))

	id := srv.Status().SnapshotID
	require.NotEmpty(t, id)
	g, meta, err := snaps.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, srv.Status().GraphHash, g.Hash())
	assert.Contains(t, meta.Label, "serve:")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	doc := copyFixture(t, dir, "bodice.sm2d")
	copyFixture(t, dir, "bodice.smis")

	srv := newTestServer(t, Config{Document: doc, Watch: true, WatchDebounce: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Load(ctx))
	require.NoError(t, srv.StartWatching(ctx))
	defer srv.watcher.Stop()
	before := srv.Status().GraphHash

	cycle, err := os.ReadFile(filepath.Join("..", "testdata", "cycle.sm2d"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(doc, cycle, 0o644))

	require.Eventually(t, func() bool {
		st := srv.Status()
		return st.Reloads >= 2 && st.GraphHash != before
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Config{})
	w := do(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

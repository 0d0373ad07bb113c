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
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// Handlers serves the query API over the currently loaded run.
//
// Thread Safety: Safe for concurrent use. Every handler reads one run
// snapshot, so a reload never mixes two runs within a request.
type Handlers struct {
	srv    *Server
	logger *slog.Logger
}

// current returns the loaded run or writes a 503.
func (h *Handlers) current(c *gin.Context) (*deps.Run, bool) {
	st := h.srv.state.Load()
	if st == nil || st.run == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no document loaded",
			Code:  CodeNotLoaded,
		})
		return nil, false
	}
	return st.run, true
}

// resolve maps the :id parameter to a graph id or writes a 404.
func (h *Handlers) resolve(c *gin.Context, run *deps.Run) (string, bool) {
	ref := c.Param("id")
	id, ok := run.ResolveRef(ref)
	if !ok {
		h.logger.Debug("object not found",
			slog.String("request_id", requestID(c)),
			slog.String("ref", ref),
		)
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no object with id or name " + ref,
			Code:  CodeNotFound,
		})
		return "", false
	}
	return id, true
}

// HandleHealth handles GET /v1/deps/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleReady handles GET /v1/deps/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false) before the first load
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := h.srv.Status()
	if !resp.Ready {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSummary handles GET /v1/deps/summary.
func (h *Handlers) HandleSummary(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run.Summary)
}

// HandleObjects handles GET /v1/deps/objects.
//
// Description:
//
//	Lists object keys per category in document order.
func (h *Handlers) HandleObjects(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	resp := ObjectsResponse{
		Categories: make(map[model.Category][]string),
		Total:      run.Objects.Len(),
	}
	for _, cat := range run.Objects.Categories() {
		b, _ := run.Objects.Bucket(cat)
		resp.Categories[cat] = b.Keys()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleObjectsByCategory handles GET /v1/deps/objects/:category.
//
// Response:
//
//	200 OK: CategoryResponse, empty for a known category with no objects
//	400 Bad Request: unknown category
func (h *Handlers) HandleObjectsByCategory(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	cat := model.Category(c.Param("category"))
	if !slices.Contains(model.Categories, cat) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown category " + string(cat),
			Code:  CodeUnknownCategory,
		})
		return
	}

	resp := CategoryResponse{Category: cat, Objects: []*model.FilteredElement{}}
	if b, ok := run.Objects.Bucket(cat); ok {
		for _, key := range b.Keys() {
			e, _ := b.Get(key)
			resp.Objects = append(resp.Objects, e)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGraph handles GET /v1/deps/graph.
func (h *Handlers) HandleGraph(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GraphResponse{
		Graph:   run.Graph.ToSerializable(),
		Summary: run.Summary,
	})
}

// HandleRecord handles GET /v1/deps/records/:id. The id may also be an
// object name.
func (h *Handlers) HandleRecord(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	id, ok := h.resolve(c, run)
	if !ok {
		return
	}
	rec, ok := run.Graph.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no record for " + id, Code: CodeNotFound})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleTrace handles GET /v1/deps/trace/:id.
func (h *Handlers) HandleTrace(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	id, ok := h.resolve(c, run)
	if !ok {
		return
	}
	a := run.Graph.Analyze(c.Request.Context(), run.Objects, id)
	c.JSON(http.StatusOK, DependenciesResponse{ID: a.ID, Name: a.Name, Dependencies: a.Transitive})
}

// HandleDependents handles GET /v1/deps/dependents/:id.
func (h *Handlers) HandleDependents(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	id, ok := h.resolve(c, run)
	if !ok {
		return
	}
	a := run.Graph.Analyze(c.Request.Context(), run.Objects, id)
	c.JSON(http.StatusOK, DependenciesResponse{ID: a.ID, Name: a.Name, Dependencies: a.Dependents})
}

// HandleAnalyze handles GET /v1/deps/analyze/:id.
//
// Description:
//
//	Unlike the other per-object endpoints, an unknown reference is not an
//	error: the analysis is returned with found=false, matching how
//	implicit variables are reported in the text report.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run.Analyze(c.Request.Context(), c.Param("id")))
}

// HandleVariables handles GET /v1/deps/variables.
func (h *Handlers) HandleVariables(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, VariablesResponse{
		Prefix:    run.VariablePrefix,
		Variables: run.Variables(c.Request.Context()),
	})
}

// HandleWarnings handles GET /v1/deps/warnings.
func (h *Handlers) HandleWarnings(c *gin.Context) {
	run, ok := h.current(c)
	if !ok {
		return
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []model.Warning{}
	}
	c.JSON(http.StatusOK, warnings)
}

// HandleReload handles POST /v1/deps/reload.
//
// Response:
//
//	200 OK: ReloadResponse
//	500 Internal Server Error: the document could not be analysed; the
//	    previous run stays loaded
func (h *Handlers) HandleReload(c *gin.Context) {
	before := h.srv.Status().GraphHash
	run, err := h.srv.Reload(c.Request.Context())
	if err != nil {
		h.logger.Warn("reload failed",
			slog.String("request_id", requestID(c)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeReloadFailed})
		return
	}
	hash := run.Graph.Hash()
	c.JSON(http.StatusOK, ReloadResponse{RunID: run.ID, GraphHash: hash, Changed: hash != before})
}

// requestID returns the X-Request-ID header, generating one if absent.
func requestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header("X-Request-ID", id)
	return id
}

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
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Error codes returned in ErrorResponse.Code.
const (
	CodeNotLoaded       = "NOT_LOADED"
	CodeNotFound        = "NOT_FOUND"
	CodeUnknownCategory = "UNKNOWN_CATEGORY"
	CodeReloadFailed    = "RELOAD_FAILED"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by GET /v1/deps/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /v1/deps/ready.
type ReadyResponse struct {
	Ready      bool   `json:"ready"`
	RunID      string `json:"run_id,omitempty"`
	Source     string `json:"source,omitempty"`
	LoadedAt   int64  `json:"loaded_at_milli,omitempty"`
	Reloads    int64  `json:"reloads"`
	LastError  string `json:"last_error,omitempty"`
	GraphHash  string `json:"graph_hash,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// ObjectsResponse is returned by GET /v1/deps/objects.
type ObjectsResponse struct {
	Categories map[model.Category][]string `json:"categories"`
	Total      int                         `json:"total"`
}

// CategoryResponse is returned by GET /v1/deps/objects/:category.
type CategoryResponse struct {
	Category model.Category           `json:"category"`
	Objects  []*model.FilteredElement `json:"objects"`
}

// GraphResponse is returned by GET /v1/deps/graph.
type GraphResponse struct {
	Graph   *graph.SerializableGraph `json:"graph"`
	Summary graph.Summary            `json:"summary"`
}

// DependenciesResponse is returned by the trace and dependents endpoints.
type DependenciesResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Dependencies []model.Dependency `json:"dependencies"`
}

// VariablesResponse is returned by GET /v1/deps/variables.
type VariablesResponse struct {
	Prefix    string           `json:"prefix"`
	Variables []graph.Analysis `json:"variables"`
}

// ReloadResponse is returned by POST /v1/deps/reload.
type ReloadResponse struct {
	RunID     string `json:"run_id"`
	GraphHash string `json:"graph_hash"`
	Changed   bool   `json:"changed"`
}

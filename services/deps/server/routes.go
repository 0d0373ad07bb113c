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

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the /v1/deps endpoints.
//
// Endpoints:
//
//	GET  /v1/deps/health - Liveness
//	GET  /v1/deps/ready - Readiness and load status
//	GET  /v1/deps/summary - Summary statistics
//	GET  /v1/deps/objects - Object keys by category
//	GET  /v1/deps/objects/:category - Objects of one category
//	GET  /v1/deps/graph - The serialized dependency graph
//	GET  /v1/deps/records/:id - Direct dependencies of one object
//	GET  /v1/deps/trace/:id - Transitive dependencies
//	GET  /v1/deps/dependents/:id - Direct users
//	GET  /v1/deps/analyze/:id - Full per-object analysis
//	GET  /v1/deps/variables - Analysis of every prefixed variable
//	GET  /v1/deps/warnings - Warnings of the loaded run
//	POST /v1/deps/reload - Re-analyse the document
//
// Example:
//
//	v1 := router.Group("/v1")
//	server.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	d := rg.Group("/deps")
	{
		d.GET("/health", h.HandleHealth)
		d.GET("/ready", h.HandleReady)

		d.GET("/summary", h.HandleSummary)
		d.GET("/objects", h.HandleObjects)
		d.GET("/objects/:category", h.HandleObjectsByCategory)
		d.GET("/graph", h.HandleGraph)
		d.GET("/warnings", h.HandleWarnings)
		d.GET("/variables", h.HandleVariables)

		d.GET("/records/:id", h.HandleRecord)
		d.GET("/trace/:id", h.HandleTrace)
		d.GET("/dependents/:id", h.HandleDependents)
		d.GET("/analyze/:id", h.HandleAnalyze)

		d.POST("/reload", h.HandleReload)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/report"
)

func newTraceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <pattern> <id-or-name>",
		Short: "List everything an object depends on, directly or transitively",
		Example: `  seamlydeps trace bodice.sm2d '#Dart'
  seamlydeps trace bodice.sm2d 18`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, args[0], args[1], report.WriteTrace)
		},
	}
}

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "users <pattern> <id-or-name>",
		Short:   "List the objects that use an object directly",
		Aliases: []string{"dependents"},
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, args[0], args[1], report.WriteDependents)
		},
	}
}

// runQuery analyses path and writes one analysis of ref. An unknown ref is
// still written, reported as not found.
func (a *app) runQuery(cmd *cobra.Command, path, ref string,
	write func(io.Writer, graph.Analysis, report.Format) error) error {
	ctx := cmd.Context()
	run, err := a.service().AnalyzeFile(ctx, path)
	if err != nil {
		return err
	}
	analysis := run.Analyze(ctx, ref)
	if !analysis.Found {
		a.logger.Debug("object not found", "ref", ref)
	}
	return write(a.stdout, analysis, a.format())
}

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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/report"
)

// errGraphsDiffer is returned by diff --exit-code when the graphs differ.
var errGraphsDiffer = errors.New("dependency graphs differ")

func newDiffCmd(a *app) *cobra.Command {
	var exitOnChange bool
	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two dependency graphs",
		Long: `Diff compares two dependency graphs. Each operand is a pattern file,
which is analysed, or the id of a snapshot in the store.`,
		Example: `  seamlydeps diff bodice-v1.sm2d bodice-v2.sm2d
  seamlydeps diff --store ./snapshots 3f2a9c1e bodice.sm2d`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiff(cmd.Context(), args[0], args[1], exitOnChange)
		},
	}
	cmd.Flags().BoolVar(&exitOnChange, "exit-code", false, "Exit with status 1 when the graphs differ")
	return cmd
}

func (a *app) runDiff(ctx context.Context, oldRef, newRef string, exitOnChange bool) error {
	var snaps *graph.SnapshotManager
	if a.cfg.Store != "" {
		m, closeStore, err := a.openSnapshots()
		if err != nil {
			return err
		}
		defer closeStore()
		snaps = m
	}

	base, err := a.loadGraph(ctx, snaps, oldRef)
	if err != nil {
		return err
	}
	target, err := a.loadGraph(ctx, snaps, newRef)
	if err != nil {
		return err
	}

	d, err := graph.DiffGraphs(base, target, oldRef, newRef)
	if err != nil {
		return err
	}
	if err := report.WriteDiff(a.stdout, d, a.format()); err != nil {
		return err
	}
	if exitOnChange && !d.Empty() {
		return errGraphsDiffer
	}
	return nil
}

// loadGraph resolves ref to a graph: an existing file is analysed, anything
// else is looked up as a snapshot id.
func (a *app) loadGraph(ctx context.Context, snaps *graph.SnapshotManager, ref string) (*graph.Graph, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		run, err := a.service().AnalyzeFile(ctx, ref)
		if err != nil {
			return nil, err
		}
		return run.Graph, nil
	}
	if snaps == nil {
		return nil, usageErrorf("%s is not a file, and no snapshot store is configured", ref)
	}
	g, _, err := snaps.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", ref, err)
	}
	return g, nil
}

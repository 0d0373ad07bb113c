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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/seamlydeps/pkg/ux"
	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/report"
	"github.com/AleutianAI/seamlydeps/services/deps/telemetry"
)

type analyzeFlags struct {
	out         string
	save        bool
	label       string
	metricsFile string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze <pattern>",
		Short: "Categorize every object and report its dependencies",
		Long: `Analyze parses the pattern, groups its objects by category, extracts the
dependencies of each one and prints the full report: objects by category,
the dependency list, an analysis of every variable and summary statistics.`,
		Aliases: []string{"a"},
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd.Context(), args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&f.save, "save", false, "Save a graph snapshot to the store")
	cmd.Flags().StringVar(&f.label, "label", "", "Label for the saved snapshot")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, path string, f analyzeFlags) error {
	run, err := a.service().AnalyzeFile(ctx, path)
	if err != nil {
		return err
	}

	if err := a.writeOutput(f.out, func(w io.Writer) error {
		return report.Write(ctx, w, run, a.format())
	}); err != nil {
		return err
	}

	if f.save {
		if err := a.saveSnapshot(ctx, run, f.label); err != nil {
			return err
		}
	}
	if f.metricsFile != "" {
		if err := telemetry.WriteMetrics(f.metricsFile); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) saveSnapshot(ctx context.Context, run *deps.Run, label string) error {
	snaps, closeStore, err := a.openSnapshots()
	if err != nil {
		return err
	}
	defer closeStore()

	if label == "" {
		label = "analyze:" + run.ID
	}
	meta, err := snaps.Save(ctx, run.Graph, label)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	ux.NewPrinter(a.stderr).Success(fmt.Sprintf("saved snapshot %s (%d records)", meta.SnapshotID, meta.RecordCount))
	return nil
}

// writeOutput runs fn against stdout, or against the file at path.
func (a *app) writeOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(a.stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	a.logger.Info("report written", "path", path)
	return nil
}

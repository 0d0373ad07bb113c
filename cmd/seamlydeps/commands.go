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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/seamlydeps/pkg/logging"
	"github.com/AleutianAI/seamlydeps/pkg/ux"
	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/config"
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/report"
	"github.com/AleutianAI/seamlydeps/services/deps/telemetry"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath       string
	logLevel         string
	logJSON          bool
	logDir           string
	workers          int
	measurements     string
	prefix           string
	store            string
	personalityLevel string
	jsonOutput       bool
}

// app carries per-invocation state from PersistentPreRunE to the commands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flags      globalFlags
	cfg        config.Config
	configFile string
	logger     *logging.Logger
	shutdown   func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// newRootCmd builds the command tree. Callers run a.teardown after
// Execute, including on failure.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seamlydeps",
		Short: "Extract object dependencies from Seamly2D pattern files",
		Long: `seamlydeps reads a Seamly2D pattern (.sm2d or .val), categorizes every
object it defines and reports which objects each one depends on.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return asUsage(err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (default ./"+config.DefaultFileName+" when present)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&a.flags.logJSON, "log-json", false, "Write logs as JSON")
	pf.StringVar(&a.flags.logDir, "log-dir", "", "Also write JSON logs to this directory")
	pf.IntVar(&a.flags.workers, "workers", 0, "Dependency extraction workers (0 = one per CPU)")
	pf.StringVar(&a.flags.measurements, "measurements", "", "Measurement table (CSV, .smis or .vit)")
	pf.StringVar(&a.flags.prefix, "prefix", "", "Variable name prefix (default \"#\")")
	pf.StringVar(&a.flags.store, "store", "", "Snapshot database directory")
	pf.StringVar(&a.flags.personalityLevel, "personality", "", "Output style: standard, minimal or machine")
	pf.BoolVar(&a.flags.jsonOutput, "json", false, "Write JSON instead of text")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newTraceCmd(a),
		newUsersCmd(a),
		newDiffCmd(a),
		newSnapshotCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

// setup loads configuration, applies flag overrides and starts logging and
// telemetry.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.flags.personalityLevel != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(a.flags.personalityLevel))
	} else {
		ux.InitPersonality()
	}

	cfg, file, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	a.configFile = file

	flags := cmd.Flags()
	if flags.Changed("measurements") {
		cfg.Measurements = a.flags.measurements
	}
	if flags.Changed("workers") {
		if a.flags.workers < 0 {
			return usageErrorf("--workers must not be negative")
		}
		cfg.Workers = a.flags.workers
	}
	if flags.Changed("prefix") {
		cfg.VariablePrefix = a.flags.prefix
	}
	if flags.Changed("store") {
		cfg.Store = a.flags.store
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = a.flags.logJSON
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = a.flags.logDir
	}
	if err := cfg.Validate(); err != nil {
		return asUsage(err)
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return asUsage(err)
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "seamlydeps",
		JSON:    cfg.Log.JSON,
		Output:  a.stderr,
	})
	if file != "" {
		a.logger.Debug("configuration loaded", "path", file)
	}

	tcfg := telemetry.DefaultConfig()
	if _, ok := os.LookupEnv("OTEL_TRACES_EXPORTER"); !ok {
		tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if _, ok := os.LookupEnv("OTEL_METRICS_EXPORTER"); !ok {
		tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	tcfg.Output = a.stderr
	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var err error
	if a.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		err = a.shutdown(shutdownCtx)
		cancel()
		a.shutdown = nil
	}
	if a.logger != nil {
		if cerr := a.logger.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// service builds the analysis service from the merged configuration.
func (a *app) service() *deps.Service {
	opts := deps.OptionsFromConfig(a.cfg)
	opts = append(opts,
		deps.WithLogger(a.logger.Slog()),
		deps.WithProgress(func(p graph.BuildProgress) {
			a.logger.Debug("build progress",
				"phase", p.Phase.String(),
				"done", p.Done,
				"total", p.Total,
			)
		}),
	)
	return deps.NewService(opts...)
}

func (a *app) format() report.Format {
	if a.flags.jsonOutput {
		return report.FormatJSON
	}
	return report.FormatText
}

// openSnapshots opens the configured snapshot store. The caller closes the
// returned function.
func (a *app) openSnapshots() (*graph.SnapshotManager, func() error, error) {
	if a.cfg.Store == "" {
		return nil, nil, usageErrorf("no snapshot store configured: pass --store or set store in %s", config.DefaultFileName)
	}
	db, err := graph.OpenStore(a.cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	m, err := graph.NewSnapshotManager(db, a.logger.Slog())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, db.Close, nil
}

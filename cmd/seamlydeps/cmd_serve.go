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
	"sync"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/seamlydeps/pkg/ux"
	"github.com/AleutianAI/seamlydeps/services/deps/report"
	"github.com/AleutianAI/seamlydeps/services/deps/server"
	"github.com/AleutianAI/seamlydeps/services/deps/telemetry"
	"github.com/AleutianAI/seamlydeps/services/deps/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host      string
		port      int
		watchFlag bool
		debug     bool
	)
	cmd := &cobra.Command{
		Use:   "serve <pattern>",
		Short: "Serve the dependency graph over HTTP",
		Long: `Serve analyses the pattern once and answers queries under /v1/deps.
With --watch the pattern is re-analysed whenever it changes on disk.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Server.Watch = watchFlag
			}
			if err := a.cfg.Validate(); err != nil {
				return asUsage(err)
			}
			return a.runServe(cmd.Context(), args[0], host, debug)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (default all interfaces)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config, 12230)")
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Reload when the pattern changes")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable gin debug mode and request logging")
	return cmd
}

func (a *app) runServe(ctx context.Context, path, host string, debug bool) error {
	cfg := server.Config{
		Document:       path,
		Addr:           fmt.Sprintf("%s:%d", host, a.cfg.Server.Port),
		Watch:          a.cfg.Server.Watch,
		Debug:          debug,
		MetricsHandler: telemetry.MetricsHandler(),
	}
	if a.cfg.Measurements != "" {
		cfg.WatchPaths = []string{a.cfg.Measurements}
	}

	opts := []server.Option{server.WithLogger(a.logger.Slog())}
	if a.cfg.Store != "" {
		snaps, closeStore, err := a.openSnapshots()
		if err != nil {
			return err
		}
		defer closeStore()
		opts = append(opts, server.WithSnapshots(snaps))
	}

	srv, err := server.New(cfg, a.service(), opts...)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <pattern>",
		Short: "Re-run the analysis every time the pattern is saved",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), args[0])
		},
	}
}

// runWatch prints a report, then a fresh one after every change, until ctx
// ends. Analysis failures after the first run are reported and watching
// continues.
func (a *app) runWatch(ctx context.Context, path string) error {
	svc := a.service()
	var mu sync.Mutex
	analyze := func() error {
		mu.Lock()
		defer mu.Unlock()
		run, err := svc.AnalyzeFile(ctx, path)
		if err != nil {
			return err
		}
		return report.Write(ctx, a.stdout, run, a.format())
	}
	if err := analyze(); err != nil {
		return err
	}

	paths := []string{path}
	if a.cfg.Measurements != "" {
		paths = append(paths, a.cfg.Measurements)
	}
	errOut := ux.NewPrinter(a.stderr)
	w, err := watch.New(paths, func(changes []watch.Change) {
		errOut.Line("%s %s changed, re-analysing", errOut.Icon(ux.IconArrow), changes[0].Path)
		if err := analyze(); err != nil {
			errOut.Error(err.Error())
		}
	}, watch.WithLogger(a.logger.Slog()))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	a.logger.Info("watching for changes", "paths", paths)
	<-ctx.Done()
	return nil
}

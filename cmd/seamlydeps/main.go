// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command seamlydeps extracts and queries the dependency graph of a
// Seamly2D pattern.
//
// Usage:
//
//	seamlydeps analyze pattern.sm2d [--json] [--out report.txt] [--save]
//	seamlydeps trace pattern.sm2d '#Dart'
//	seamlydeps users pattern.sm2d A1
//	seamlydeps diff old.sm2d new.sm2d
//	seamlydeps snapshot list --store ./snapshots
//	seamlydeps serve pattern.sm2d --port 12230 --watch
//	seamlydeps watch pattern.sm2d
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/seamlydeps/pkg/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs one invocation and returns its exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if terr := a.teardown(ctx); terr != nil && err == nil {
		err = terr
	}
	if err != nil {
		ux.NewPrinter(stderr).Error(err.Error())
	}
	return exitCode(err)
}

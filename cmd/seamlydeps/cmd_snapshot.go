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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/seamlydeps/pkg/ux"
	"github.com/AleutianAI/seamlydeps/services/deps/report"
)

func newSnapshotCmd(a *app) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage stored dependency graph snapshots",
		Long: `Snapshots are saved by "analyze --save" and by "serve" when a store is
configured. They can be listed, shown, deleted and used as diff operands.`,
	}

	var source string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return usageErrorf("--limit must not be negative")
			}
			snaps, closeStore, err := a.openSnapshots()
			if err != nil {
				return err
			}
			defer closeStore()

			metas, err := snaps.List(cmd.Context(), source, limit)
			if err != nil {
				return err
			}
			return report.WriteSnapshots(a.stdout, metas, a.format())
		},
	}
	listCmd.Flags().StringVar(&source, "source", "", "Only snapshots of this pattern file")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of snapshots (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show <snapshot-id>",
		Short: "Show a snapshot's metadata and records",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, closeStore, err := a.openSnapshots()
			if err != nil {
				return err
			}
			defer closeStore()

			g, meta, err := snaps.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.WriteSnapshot(a.stdout, g, meta, a.format())
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <snapshot-id>",
		Short:   "Delete a snapshot",
		Aliases: []string{"rm"},
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, closeStore, err := a.openSnapshots()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := snaps.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			ux.NewPrinter(a.stdout).Success(fmt.Sprintf("deleted snapshot %s", args[0]))
			return nil
		},
	}

	snapshotCmd.AddCommand(listCmd, showCmd, deleteCmd)
	return snapshotCmd
}

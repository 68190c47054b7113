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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/monitor"
)

var (
	monitorMetricsFile string
	monitorRefresh     time.Duration

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Watch daemon progress in a terminal dashboard",
		Long: `Renders a live dashboard over the metrics snapshot the daemon
writes. The dashboard reacts to snapshot changes immediately and polls
as a fallback. Press q to quit, r to force a refresh.`,
		RunE: runMonitorCommand,
	}
)

func init() {
	monitorCmd.Flags().StringVar(&monitorMetricsFile, "metrics-file", "", "metrics snapshot path (defaults to the data directory)")
	monitorCmd.Flags().DurationVar(&monitorRefresh, "refresh", 0, "poll interval, e.g. 5s (default 10s)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitorCommand(cmd *cobra.Command, args []string) error {
	path := monitorMetricsFile
	if path == "" {
		path = config.Global.MetricsPath()
	}
	return monitor.Run(monitor.Config{
		MetricsPath:     path,
		RefreshInterval: monitorRefresh,
		Log:             log,
	})
}

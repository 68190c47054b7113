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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
	"github.com/AleutianAI/depsentry/pkg/telemetry"
)

var (
	batchEcosystem string
	batchLimit     int

	analyzeBatchCmd = &cobra.Command{
		Use:   "analyze-batch",
		Short: "Analyze the top packages of an ecosystem in one run",
		Long: `Runs the full pipeline over the most popular packages of one
ecosystem, assigns percentiles across the batch, and writes a summary
file next to the per-package artifacts.`,
		RunE: runAnalyzeBatchCommand,
	}
)

func init() {
	analyzeBatchCmd.Flags().StringVarP(&batchEcosystem, "ecosystem", "e", "npm", "ecosystem to analyze (npm, pypi, homebrew)")
	analyzeBatchCmd.Flags().IntVarP(&batchLimit, "limit", "n", 100, "number of packages to analyze (0 for all)")
	rootCmd.AddCommand(analyzeBatchCmd)
}

func runAnalyzeBatchCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Service:      "depsentry",
		OTLPEndpoint: config.Global.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	f, err := newFactory(log)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := f.pipeline(batchEcosystem)
	if err != nil {
		return err
	}

	results, err := p.AnalyzeBatch(ctx, batchLimit, func(current, total int, name string) {
		fmt.Printf("[%d/%d] %s\n", current, total, name)
	})
	if err != nil {
		return fmt.Errorf("analyze %s batch: %w", batchEcosystem, err)
	}

	scored := 0
	for _, a := range results {
		if a.Scores != nil {
			scored++
		}
	}
	fmt.Printf("\nDone: %d analyzed, %d scored. Artifacts under %s\n",
		len(results), scored, f.cfg.DataDir)
	return nil
}

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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/telemetry"
)

var (
	analyzeEcosystem string
	analyzeJSON      bool
	analyzeNoSave    bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze [package]",
		Short: "Run the full analysis pipeline for one package",
		Long: `Fetches registry metadata, repository activity, CVE history,
supply-chain signals and aggregator data for a package, runs the LLM
assessments when a backend is configured, and prints the scored result.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyzeCommand,
	}
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeEcosystem, "ecosystem", "e", "npm", "ecosystem of the package (npm, pypi, homebrew)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full analysis artifact as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "skip writing the artifact to the data directory")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

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

	p, err := f.pipeline(analyzeEcosystem)
	if err != nil {
		return err
	}

	artifact, err := p.AnalyzePackage(ctx, name, !analyzeNoSave)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", name, err)
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(artifact)
	}
	printAnalysis(artifact)
	return nil
}

func printAnalysis(a *model.PackageAnalysis) {
	fmt.Printf("Package:  %s (%s)\n", a.Name, a.Ecosystem)
	if a.Version != "" {
		fmt.Printf("Version:  %s\n", a.Version)
	}
	if a.Repository != nil {
		fmt.Printf("Repo:     %s\n", a.Repository.URL())
	}

	if a.Scores == nil {
		reason := a.UnavailableReason
		if reason == "" {
			reason = "insufficient data"
		}
		fmt.Printf("Scores:   unavailable (%s)\n", reason)
		return
	}

	s := a.Scores
	fmt.Printf("Score:    %.1f (%s, %s risk)\n", s.Overall, s.Grade, s.RiskTier)
	fmt.Printf("  Security:    %.1f\n", s.Security.Score)
	fmt.Printf("  Maintenance: %.1f\n", s.Maintenance.Score)
	fmt.Printf("  Community:   %.1f\n", s.Community.Score)
	fmt.Printf("Confidence:  %s\n", s.Confidence)

	if sum := a.AnalysisSummary; sum != nil {
		if sum.MaintenanceStatus != "" {
			fmt.Printf("\nMaintenance: %s\n", sum.MaintenanceStatus)
		}
		for _, h := range sum.Highlights {
			fmt.Printf("  + %s\n", h)
		}
		for _, c := range sum.Concerns {
			fmt.Printf("  - %s\n", c)
		}
	}
}

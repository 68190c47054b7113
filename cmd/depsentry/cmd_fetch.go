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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	fetchEcosystem string
	fetchJSON      bool

	fetchCmd = &cobra.Command{
		Use:   "fetch [package]",
		Short: "Fetch the registry metadata for a single package",
		Long:  `Fetches and prints the normalized registry record plus install statistics, without running an analysis.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runFetchCommand,
	}
)

func init() {
	fetchCmd.Flags().StringVarP(&fetchEcosystem, "ecosystem", "e", "npm", "ecosystem of the package (npm, pypi, homebrew)")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the raw record as JSON")
	rootCmd.AddCommand(fetchCmd)
}

func runFetchCommand(cmd *cobra.Command, args []string) error {
	name := args[0]

	f, err := newFactory(log)
	if err != nil {
		return err
	}
	defer f.Close()

	adapter, err := f.adapter(fetchEcosystem)
	if err != nil {
		return err
	}

	meta, err := adapter.Metadata(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("fetch metadata for %s: %w", name, err)
	}
	stats, err := adapter.InstallStats(cmd.Context(), name)
	if err != nil {
		log.Warn("failed to fetch install stats", "package", name, "error", err)
	}

	if fetchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"metadata":      meta,
			"install_stats": stats,
		})
	}

	fmt.Printf("Package:     %s (%s)\n", meta.Name, meta.Ecosystem)
	fmt.Printf("Version:     %s\n", meta.Version)
	if meta.Description != "" {
		fmt.Printf("Description: %s\n", meta.Description)
	}
	if meta.License != "" {
		fmt.Printf("License:     %s\n", meta.License)
	}
	if ref := adapter.SourceRepo(meta); ref != nil {
		fmt.Printf("Repository:  %s\n", ref.URL())
	}
	if stats != nil && stats.DownloadsLast30d != nil {
		fmt.Printf("Downloads:   %d (30d)\n", *stats.DownloadsLast30d)
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Depsentry analyzes the health and supply-chain risk of open source
// packages across the npm, PyPI and Homebrew ecosystems.
package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

var (
	verbose bool

	// log is the process-wide logger, initialized before any command runs.
	log = logging.Default()

	rootCmd = &cobra.Command{
		Use:   "depsentry",
		Short: "A CLI to analyze the risk of open source packages",
		Long: `Depsentry fetches registry metadata, repository activity, CVE history
and supply-chain signals for open source packages, scores them, and can
run continuously as a daemon publishing results.`,
		SilenceUsage: true,
	}
)

func main() {
	defer memguard.Purge()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		memguard.Purge()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		log = logging.New(logging.Config{
			Level:   level,
			Service: "depsentry",
		})

		// Version and configure work without an existing config file.
		switch cmd.Name() {
		case "version", "configure":
			return nil
		}
		return config.Load()
	}
}

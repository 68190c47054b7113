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
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactively create or update the config file",
	Long: `Walks through the configuration options in a terminal form and
writes the result to the config file. API tokens are never stored in the
file; only the name of the environment variable holding them is.`,
	RunE: runConfigureCommand,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigureCommand(cmd *cobra.Command, args []string) error {
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}

	// Seed the form with the existing config, or defaults on first run.
	cfg, err := config.LoadFrom(path)
	if err != nil {
		log.Warn("existing config could not be loaded, starting from defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	selected := func(eco string) bool {
		for _, e := range cfg.Ecosystems {
			if e == eco {
				return true
			}
		}
		return false
	}
	ecosystems := cfg.Ecosystems

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Description("Analysis artifacts, cache and metrics live here.").
				Value(&cfg.DataDir),
			huh.NewMultiSelect[string]().
				Title("Ecosystems").
				Options(
					huh.NewOption("npm", "npm").Selected(selected("npm")),
					huh.NewOption("PyPI", "pypi").Selected(selected("pypi")),
					huh.NewOption("Homebrew", "homebrew").Selected(selected("homebrew")),
				).
				Value(&ecosystems),
			huh.NewInput().
				Title("GitHub token environment variable").
				Description("The token itself is read from the environment at runtime.").
				Value(&cfg.GitHub.TokenEnv),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM backend").
				Options(
					huh.NewOption("Ollama (local)", "ollama"),
					huh.NewOption("OpenAI-compatible server", "openai"),
					huh.NewOption("None (skip LLM assessments)", "none"),
				).
				Value(&cfg.LLM.Backend),
			huh.NewInput().
				Title("LLM server URL").
				Value(&cfg.LLM.URL),
			huh.NewInput().
				Title("API key environment variable").
				Description("Used by the openai backend; the key itself is read at runtime.").
				Value(&cfg.LLM.APIKeyEnv),
			huh.NewInput().
				Title("Primary model").
				Value(&cfg.LLM.Model),
			huh.NewInput().
				Title("Fast model").
				Description("Used for the lighter assessments.").
				Value(&cfg.LLM.FastModel),
			huh.NewConfirm().
				Title("Run assessments in parallel?").
				Value(&cfg.LLM.Parallel),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("GCS bucket").
				Description("Leave empty to disable result publication.").
				Value(&cfg.GCS.Bucket),
			huh.NewInput().
				Title("Status server address").
				Description("Leave empty to disable the status server.").
				Value(&cfg.Daemon.StatusAddr),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if len(ecosystems) > 0 {
		cfg.Ecosystems = ecosystems
	}

	if err := config.Write(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", path)

	tokenPresent := os.Getenv(cfg.GitHub.TokenEnv) != ""
	fmt.Printf("GitHub token (%s): present=%t\n", cfg.GitHub.TokenEnv, tokenPresent)
	if !tokenPresent {
		fmt.Println("Without a token, GitHub requests run at the unauthenticated rate limit.")
	}
	return nil
}

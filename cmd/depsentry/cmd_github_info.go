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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

var (
	githubInfoJSON bool

	githubInfoCmd = &cobra.Command{
		Use:   "github-info [owner/repo]",
		Short: "Fetch the repository signals for a GitHub repository",
		Long:  `Fetches repository activity, contributor, issue, PR and release signals directly, without going through a package registry.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runGithubInfoCommand,
	}
)

func init() {
	githubInfoCmd.Flags().BoolVar(&githubInfoJSON, "json", false, "print the raw signals as JSON")
	rootCmd.AddCommand(githubInfoCmd)
}

func runGithubInfoCommand(cmd *cobra.Command, args []string) error {
	owner, repo, ok := strings.Cut(args[0], "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("expected owner/repo, got %q", args[0])
	}

	f, err := newFactory(log)
	if err != nil {
		return err
	}
	defer f.Close()

	ref := &model.RepoRef{Platform: model.PlatformGitHub, Owner: owner, Repo: repo}
	facts, partial, err := f.forge.FetchRepoData(cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", args[0], err)
	}
	if partial {
		log.Warn("some signals could not be fetched; output is partial")
	}

	if githubInfoJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(facts)
	}

	info := facts.Repo
	fmt.Printf("Repository: %s\n", info.FullName)
	if info.Description != "" {
		fmt.Printf("About:      %s\n", info.Description)
	}
	fmt.Printf("Stars:      %d   Forks: %d   Open issues: %d\n", info.Stars, info.Forks, info.OpenIssues)
	if info.Language != "" {
		fmt.Printf("Language:   %s\n", info.Language)
	}
	if info.License != "" {
		fmt.Printf("License:    %s\n", info.License)
	}
	if info.PushedAt != nil {
		fmt.Printf("Last push:  %s\n", info.PushedAt.Format(time.DateOnly))
	}
	if info.IsArchived {
		fmt.Println("Status:     ARCHIVED")
	}

	rl := f.forge.RateLimit()
	if rl.Total > 0 {
		fmt.Printf("\nAPI quota:  %d/%d remaining\n", rl.Remaining, rl.Total)
	}
	return nil
}

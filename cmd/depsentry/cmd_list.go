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
)

var (
	listEcosystem string
	listLimit     int

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the most popular packages in an ecosystem",
		Long:  `Fetches the package universe for one ecosystem, ordered by install count.`,
		RunE:  runListCommand,
	}
)

func init() {
	listCmd.Flags().StringVarP(&listEcosystem, "ecosystem", "e", "npm", "ecosystem to list (npm, pypi, homebrew)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum packages to list (0 for all)")
	rootCmd.AddCommand(listCmd)
}

func runListCommand(cmd *cobra.Command, args []string) error {
	f, err := newFactory(log)
	if err != nil {
		return err
	}
	defer f.Close()

	adapter, err := f.adapter(listEcosystem)
	if err != nil {
		return err
	}
	names, err := adapter.ListPackages(cmd.Context(), listLimit)
	if err != nil {
		return fmt.Errorf("list %s packages: %w", listEcosystem, err)
	}
	for i, name := range names {
		fmt.Printf("%4d  %s\n", i+1, name)
	}
	return nil
}

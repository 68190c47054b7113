// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// SummaryEntry is one row of the lightweight per-ecosystem summary
// written to <dataDir>/final/<ecosystem>.json.
type SummaryEntry struct {
	Name              string                 `json:"name"`
	Version           string                 `json:"version,omitempty"`
	Description       string                 `json:"description,omitempty"`
	InstallCount30d   *int64                 `json:"install_count_30d,omitempty"`
	DataAvailability  model.DataAvailability `json:"data_availability"`
	UnavailableReason string                 `json:"unavailable_reason,omitempty"`
	Scores            *model.Scores          `json:"scores,omitempty"`
	AnalysisSummary   *model.AnalysisSummary `json:"analysis_summary,omitempty"`
	Repository        *model.RepoRef         `json:"repository,omitempty"`
	AnalyzedAt        time.Time              `json:"analyzed_at"`
}

// EcosystemStats is the per-ecosystem block of
// <dataDir>/final/stats.json.
type EcosystemStats struct {
	TotalPackages       int       `json:"total_packages"`
	AvailablePackages   int       `json:"available_packages"`
	UnavailablePackages int       `json:"unavailable_packages"`
	AvgScore            *float64  `json:"avg_score,omitempty"`
	LastUpdated         time.Time `json:"last_updated"`
}

// sanitizeName makes a package name filesystem-safe. Scoped npm names
// contain a slash ("@scope/pkg" becomes "@scope__pkg").
func sanitizeName(name string) string {
	return strings.ReplaceAll(name, "/", "__")
}

// ArtifactPath returns the canonical location of a package's artifact.
func ArtifactPath(dataDir string, eco model.Ecosystem, name string) string {
	return filepath.Join(dataDir, "analyzed", string(eco), sanitizeName(name)+".json")
}

// SaveAnalysis writes the artifact atomically under
// <dataDir>/analyzed/<ecosystem>/.
func SaveAnalysis(dataDir string, a *model.PackageAnalysis) error {
	path := ArtifactPath(dataDir, a.Ecosystem, a.Name)
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis for %s: %w", a.Name, err)
	}
	return writeAtomic(path, data)
}

// LoadAnalysis reads a previously saved artifact. Returns an
// os.ErrNotExist wrapped error when no artifact exists.
func LoadAnalysis(dataDir string, eco model.Ecosystem, name string) (*model.PackageAnalysis, error) {
	data, err := os.ReadFile(ArtifactPath(dataDir, eco, name))
	if err != nil {
		return nil, fmt.Errorf("read analysis for %s: %w", name, err)
	}
	var a model.PackageAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode analysis for %s: %w", name, err)
	}
	return &a, nil
}

// WriteEcosystemSummary writes the lightweight summary array for the
// ecosystem and folds its aggregate numbers into stats.json. Averages
// cover only packages with full repository coverage.
func WriteEcosystemSummary(dataDir string, eco model.Ecosystem, analyses []*model.PackageAnalysis) error {
	if len(analyses) == 0 {
		return nil
	}
	finalDir := filepath.Join(dataDir, "final")

	entries := make([]SummaryEntry, 0, len(analyses))
	for _, a := range analyses {
		entries = append(entries, SummaryEntry{
			Name:              a.Name,
			Version:           a.Version,
			Description:       a.Description,
			InstallCount30d:   a.InstallCount30d,
			DataAvailability:  a.DataAvailability,
			UnavailableReason: a.UnavailableReason,
			Scores:            a.Scores,
			AnalysisSummary:   a.AnalysisSummary,
			Repository:        a.Repository,
			AnalyzedAt:        a.AnalyzedAt,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s summary: %w", eco, err)
	}
	if err := writeAtomic(filepath.Join(finalDir, string(eco)+".json"), data); err != nil {
		return err
	}
	return updateStats(finalDir, eco, analyses)
}

func updateStats(finalDir string, eco model.Ecosystem, analyses []*model.PackageAnalysis) error {
	statsPath := filepath.Join(finalDir, "stats.json")
	stats := map[string]EcosystemStats{}
	if data, err := os.ReadFile(statsPath); err == nil {
		// A corrupt stats file is rebuilt from scratch.
		_ = json.Unmarshal(data, &stats)
	}

	var available, scoreSum float64
	availableCount := 0
	for _, a := range analyses {
		if a.DataAvailability != model.AvailabilityAvailable {
			continue
		}
		availableCount++
		if a.Scores != nil {
			scoreSum += a.Scores.Overall
			available++
		}
	}
	entry := EcosystemStats{
		TotalPackages:       len(analyses),
		AvailablePackages:   availableCount,
		UnavailablePackages: len(analyses) - availableCount,
		LastUpdated:         time.Now().UTC(),
	}
	if available > 0 {
		avg := scoreSum / available
		entry.AvgScore = &avg
	}
	stats[string(eco)] = entry

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	return writeAtomic(statsPath, data)
}

// writeAtomic writes via a temp file and rename so readers never see a
// half-written document.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

func TestArtifactPathSanitizesScopedNames(t *testing.T) {
	path := ArtifactPath("/data", model.EcosystemNPM, "@babel/core")
	assert.Equal(t, filepath.Join("/data", "analyzed", "npm", "@babel__core.json"), path)

	plain := ArtifactPath("/data", model.EcosystemHomebrew, "jq")
	assert.Equal(t, filepath.Join("/data", "analyzed", "homebrew", "jq.json"), plain)
}

func TestSaveAndLoadAnalysis(t *testing.T) {
	dataDir := t.TempDir()
	artifact := &model.PackageAnalysis{
		Ecosystem:        model.EcosystemNPM,
		Name:             "@scope/widget",
		Version:          "1.2.3",
		DataAvailability: model.AvailabilityAvailable,
		RunID:            "run-1",
		AnalyzedAt:       time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, SaveAnalysis(dataDir, artifact))

	// No stray temp file remains after the rename.
	entries, err := os.ReadDir(filepath.Join(dataDir, "analyzed", "npm"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "@scope__widget.json", entries[0].Name())

	loaded, err := LoadAnalysis(dataDir, model.EcosystemNPM, "@scope/widget")
	require.NoError(t, err)
	assert.Equal(t, artifact.Name, loaded.Name)
	assert.Equal(t, artifact.RunID, loaded.RunID)
	assert.True(t, artifact.AnalyzedAt.Equal(loaded.AnalyzedAt))
}

func TestLoadAnalysisMissing(t *testing.T) {
	_, err := LoadAnalysis(t.TempDir(), model.EcosystemNPM, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteEcosystemSummary(t *testing.T) {
	dataDir := t.TempDir()
	scoreA := &model.Scores{Overall: 80, Grade: "B"}
	scoreB := &model.Scores{Overall: 60, Grade: "D"}
	analyses := []*model.PackageAnalysis{
		{
			Ecosystem:        model.EcosystemNPM,
			Name:             "alpha",
			Version:          "1.0.0",
			DataAvailability: model.AvailabilityAvailable,
			Scores:           scoreA,
			AnalyzedAt:       time.Now().UTC(),
		},
		{
			Ecosystem:        model.EcosystemNPM,
			Name:             "beta",
			DataAvailability: model.AvailabilityAvailable,
			Scores:           scoreB,
			AnalyzedAt:       time.Now().UTC(),
		},
		{
			Ecosystem:         model.EcosystemNPM,
			Name:              "gamma",
			DataAvailability:  model.AvailabilityNoRepo,
			UnavailableReason: "No source repository URL found in package metadata",
			AnalyzedAt:        time.Now().UTC(),
		},
	}

	require.NoError(t, WriteEcosystemSummary(dataDir, model.EcosystemNPM, analyses))

	var entries []SummaryEntry
	data, err := os.ReadFile(filepath.Join(dataDir, "final", "npm.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "B", entries[0].Scores.Grade)
	assert.Equal(t, model.AvailabilityNoRepo, entries[2].DataAvailability)
	assert.Nil(t, entries[2].Scores)

	var stats map[string]EcosystemStats
	data, err = os.ReadFile(filepath.Join(dataDir, "final", "stats.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &stats))
	npm := stats["npm"]
	assert.Equal(t, 3, npm.TotalPackages)
	assert.Equal(t, 2, npm.AvailablePackages)
	assert.Equal(t, 1, npm.UnavailablePackages)
	require.NotNil(t, npm.AvgScore)
	assert.InDelta(t, 70.0, *npm.AvgScore, 0.001)
}

func TestWriteEcosystemSummaryPreservesOtherEcosystems(t *testing.T) {
	dataDir := t.TempDir()
	npm := []*model.PackageAnalysis{{
		Ecosystem:        model.EcosystemNPM,
		Name:             "alpha",
		DataAvailability: model.AvailabilityAvailable,
		Scores:           &model.Scores{Overall: 90, Grade: "A"},
		AnalyzedAt:       time.Now().UTC(),
	}}
	brew := []*model.PackageAnalysis{{
		Ecosystem:        model.EcosystemHomebrew,
		Name:             "jq",
		DataAvailability: model.AvailabilityAvailable,
		Scores:           &model.Scores{Overall: 70, Grade: "C"},
		AnalyzedAt:       time.Now().UTC(),
	}}

	require.NoError(t, WriteEcosystemSummary(dataDir, model.EcosystemNPM, npm))
	require.NoError(t, WriteEcosystemSummary(dataDir, model.EcosystemHomebrew, brew))

	var stats map[string]EcosystemStats
	data, err := os.ReadFile(filepath.Join(dataDir, "final", "stats.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Contains(t, stats, "npm")
	assert.Contains(t, stats, "homebrew")
}

func TestWriteEcosystemSummaryEmptyBatch(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, WriteEcosystemSummary(dataDir, model.EcosystemNPM, nil))
	_, err := os.Stat(filepath.Join(dataDir, "final"))
	assert.True(t, os.IsNotExist(err))
}

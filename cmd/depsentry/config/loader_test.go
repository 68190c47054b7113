// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depsentry.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, []string{"npm", "pypi", "homebrew"}, cfg.Ecosystems)
	assert.Equal(t, "GITHUB_TOKEN", cfg.GitHub.TokenEnv)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, 7, cfg.Daemon.StaleThresholdDays)
	assert.Equal(t, 50, cfg.GCS.PublishInterval)
}

func TestLoadFromReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depsentry.yaml")
	custom := DefaultConfig()
	custom.DataDir = "/srv/depsentry"
	custom.Ecosystems = []string{"npm"}
	custom.LLM.Backend = "openai"
	custom.LLM.URL = "http://llm.internal:8000"
	require.NoError(t, Write(path, custom))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/depsentry", cfg.DataDir)
	assert.Equal(t, []string{"npm"}, cfg.Ecosystems)
	assert.Equal(t, "openai", cfg.LLM.Backend)
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depsentry.yaml")
	bad := DefaultConfig()
	bad.Ecosystems = []string{"cargo"}
	require.NoError(t, Write(path, bad))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadFromRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depsentry.yaml")
	bad := DefaultConfig()
	bad.LLM.Backend = "claude"
	require.NoError(t, Write(path, bad))

	_, err := LoadFrom(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEPSENTRY_DATA_DIR", "/tmp/override")
	t.Setenv("DEPSENTRY_LLM_MODEL", "llama3.1:70b")

	path := filepath.Join(t.TempDir(), "depsentry.yaml")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.DataDir)
	assert.Equal(t, "llama3.1:70b", cfg.LLM.Model)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.FastModel)
}

func TestMetricsPath(t *testing.T) {
	cfg := DepsentryConfig{DataDir: "/srv/data"}
	assert.Equal(t, filepath.Join("/srv/data", ".metrics.json"), cfg.MetricsPath())
}

func TestSecretsStayOutOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depsentry.yaml")
	_, err := LoadFrom(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ghp_")
	assert.NotContains(t, string(data), "sk-")
	assert.Contains(t, string(data), "token_env: GITHUB_TOKEN")
	assert.Contains(t, string(data), "api_key_env: OPENAI_API_KEY")
}

func TestInfluxSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depsentry.yaml")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Influx.URL)
	assert.Equal(t, "INFLUX_TOKEN", cfg.Influx.TokenEnv)

	bad := DefaultConfig()
	bad.Influx.URL = "not a url"
	require.NoError(t, Write(path, bad))
	_, err = LoadFrom(path)
	require.Error(t, err)
}

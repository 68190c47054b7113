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
)

// DepsentryConfig is the full on-disk configuration.
type DepsentryConfig struct {
	// DataDir holds analysis artifacts, summaries, the HTTP cache and
	// the metrics snapshot.
	DataDir string `yaml:"data_dir" validate:"required"`

	// Ecosystems lists the registries the daemon analyzes.
	Ecosystems []string `yaml:"ecosystems" validate:"required,min=1,dive,oneof=npm pypi homebrew"`

	GitHub GitHubConfig `yaml:"github"`
	LLM    LLMConfig    `yaml:"llm"`
	GCS    GCSConfig    `yaml:"gcs"`
	Influx InfluxConfig `yaml:"influx"`
	Daemon DaemonConfig `yaml:"daemon"`

	// OTLPEndpoint enables trace export when set, e.g. "localhost:4317".
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

type GitHubConfig struct {
	// TokenEnv names the environment variable holding the API token.
	// The token itself never appears in the config file.
	TokenEnv string `yaml:"token_env" validate:"required"`
}

type LLMConfig struct {
	// Backend selects the assessment provider. "none" disables the
	// LLM stage entirely.
	Backend string `yaml:"backend" validate:"oneof=ollama openai none"`

	// URL is the backend endpoint, e.g. "http://localhost:11434".
	URL string `yaml:"url" validate:"omitempty,url"`

	// APIKeyEnv names the environment variable holding the key for the
	// openai backend. The key itself never appears in the config file;
	// an unset variable means an unauthenticated endpoint.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Model handles the content-heavy assessments; FastModel the rest.
	Model     string `yaml:"model"`
	FastModel string `yaml:"fast_model"`

	// Parallel fans the assessments out concurrently.
	Parallel bool `yaml:"parallel"`
}

type GCSConfig struct {
	// Bucket enables result publication when non-empty.
	Bucket          string `yaml:"bucket,omitempty"`
	ProjectID       string `yaml:"project_id,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	// PublishInterval is the package count between uploads.
	PublishInterval int `yaml:"publish_interval" validate:"min=0"`
}

type InfluxConfig struct {
	// URL enables batch summary export when non-empty.
	URL string `yaml:"url,omitempty" validate:"omitempty,url"`

	// TokenEnv names the environment variable holding the API token.
	// The token itself never appears in the config file.
	TokenEnv string `yaml:"token_env,omitempty"`
	Org      string `yaml:"org,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
}

type DaemonConfig struct {
	// StaleThresholdDays is the re-analysis age for known packages.
	StaleThresholdDays int `yaml:"stale_threshold_days" validate:"min=1"`

	// NewRatio : StaleRatio is the queue interleave.
	NewRatio   int `yaml:"new_ratio" validate:"min=1"`
	StaleRatio int `yaml:"stale_ratio" validate:"min=1"`

	// StatusAddr serves the monitoring HTTP surface when non-empty.
	StatusAddr string `yaml:"status_addr,omitempty"`
}

// MetricsPath returns the snapshot file under the data directory.
func (c DepsentryConfig) MetricsPath() string {
	return filepath.Join(c.DataDir, ".metrics.json")
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() DepsentryConfig {
	dataDir := filepath.Join("data")
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".depsentry", "data")
	}
	return DepsentryConfig{
		DataDir:    dataDir,
		Ecosystems: []string{"npm", "pypi", "homebrew"},
		GitHub: GitHubConfig{
			TokenEnv: "GITHUB_TOKEN",
		},
		LLM: LLMConfig{
			Backend:   "ollama",
			URL:       "http://localhost:11434",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "qwen2.5-coder:32b",
			FastModel: "qwen2.5:7b",
		},
		GCS: GCSConfig{
			PublishInterval: 50,
		},
		Influx: InfluxConfig{
			TokenEnv: "INFLUX_TOKEN",
		},
		Daemon: DaemonConfig{
			StaleThresholdDays: 7,
			NewRatio:           3,
			StaleRatio:         1,
			StatusAddr:         ":12220",
		},
	}
}

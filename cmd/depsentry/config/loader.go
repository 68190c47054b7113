// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the YAML configuration from the user's home
// directory, creating a default file on first run. Environment
// variables override individual fields; secrets stay out of the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// Global is the singleton configuration, populated by Load.
	Global DepsentryConfig
	once   sync.Once

	validate = validator.New()
)

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".depsentry", "depsentry.yaml"), nil
}

// Load populates Global from the default path, creating a default
// config on first run. Safe to call repeatedly; the file is read once.
func Load() error {
	var err error
	once.Do(func() {
		var path string
		path, err = DefaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

// LoadFrom reads, overrides and validates the config at path. A missing
// file is created with defaults first.
func LoadFrom(path string) (DepsentryConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := Write(path, DefaultConfig()); err != nil {
			return DepsentryConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DepsentryConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	var cfg DepsentryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DepsentryConfig{}, fmt.Errorf("failed to parse the config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return DepsentryConfig{}, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return cfg, nil
}

// Write marshals cfg to path, creating parent directories.
func Write(path string, cfg DepsentryConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides lets deployment environments steer individual
// fields without editing the file.
func applyEnvOverrides(cfg *DepsentryConfig) {
	if v := os.Getenv("DEPSENTRY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DEPSENTRY_LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("DEPSENTRY_LLM_URL"); v != "" {
		cfg.LLM.URL = v
	}
	if v := os.Getenv("DEPSENTRY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("DEPSENTRY_LLM_FAST_MODEL"); v != "" {
		cfg.LLM.FastModel = v
	}
}

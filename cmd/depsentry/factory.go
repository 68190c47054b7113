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
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/aggregator"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/httpcache"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/llm"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/metrics"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/pipeline"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/supplychain"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/vulns"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

const (
	registryHTTPTimeout = 30 * time.Second
	forgeHTTPTimeout    = 60 * time.Second
	llmHTTPTimeout      = 300 * time.Second
	cacheTTL            = 24 * time.Hour
)

// factory wires the analysis stack from the global config. The GitHub
// fetcher, HTTP cache and metrics collector are shared across all
// ecosystem pipelines so rate limit state and progress are tracked once
// per process.
type factory struct {
	cfg       config.DepsentryConfig
	log       *logging.Logger
	cache     *httpcache.Cache
	forge     *forge.Fetcher
	collector *metrics.Collector
	influx    *metrics.InfluxExporter
}

func newFactory(log *logging.Logger) (*factory, error) {
	cfg := config.Global

	cache, err := httpcache.Open(
		filepath.Join(cfg.DataDir, "cache"),
		&http.Client{Timeout: registryHTTPTimeout},
		cacheTTL,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("open http cache: %w", err)
	}

	// The forge client bypasses the cache so rate limit headers reflect
	// live quota.
	forgeClient := &http.Client{Timeout: forgeHTTPTimeout}

	f := &factory{
		cfg:       cfg,
		log:       log,
		cache:     cache,
		forge:     forge.NewFetcher(forgeClient, githubToken(), log),
		collector: metrics.NewCollector(cfg.MetricsPath()),
	}

	if cfg.Influx.URL != "" {
		token := os.Getenv(cfg.Influx.TokenEnv)
		log.Info("influx export enabled",
			"url", cfg.Influx.URL,
			"bucket", cfg.Influx.Bucket,
			"token_present", token != "")
		f.influx = metrics.NewInfluxExporter(cfg.Influx.URL, token, cfg.Influx.Org, cfg.Influx.Bucket)
		f.collector.SetExporter(f.influx)
	}
	return f, nil
}

// Close releases the cache and the influx client. Call once when the
// process is done.
func (f *factory) Close() {
	if err := f.cache.Close(); err != nil {
		f.log.Warn("failed to close http cache", "error", err)
	}
	if f.influx != nil {
		f.influx.Close()
	}
}

func (f *factory) adapter(eco string) (registry.Adapter, error) {
	switch eco {
	case "npm":
		return registry.NewNPM(f.cache, f.log), nil
	case "pypi":
		return registry.NewPyPI(f.cache, f.log), nil
	case "homebrew":
		return registry.NewHomebrew(f.cache, f.log), nil
	default:
		return nil, fmt.Errorf("unknown ecosystem %q (expected npm, pypi or homebrew)", eco)
	}
}

func (f *factory) assessor() pipeline.Assessor {
	llmCfg := f.cfg.LLM
	switch llmCfg.Backend {
	case "ollama":
		backend := llm.NewOllamaBackend(llmCfg.URL, &http.Client{Timeout: llmHTTPTimeout})
		return llm.NewOrchestrator(backend, llmCfg.Model, llmCfg.FastModel, f.log)
	case "openai":
		apiKey := os.Getenv(llmCfg.APIKeyEnv)
		f.log.Debug("openai backend key lookup", "env", llmCfg.APIKeyEnv, "present", apiKey != "")
		backend := llm.NewOpenAIBackend(llmCfg.URL, apiKey)
		return llm.NewOrchestrator(backend, llmCfg.Model, llmCfg.FastModel, f.log)
	default:
		return nil
	}
}

// pipeline assembles the full analysis pipeline for one ecosystem. The
// supply-chain stage only applies to npm, where the registry exposes
// packument-level signals.
func (f *factory) pipeline(eco string) (*pipeline.Pipeline, error) {
	adapter, err := f.adapter(eco)
	if err != nil {
		return nil, err
	}

	cfg := pipeline.Config{
		Adapter:     adapter,
		Forge:       f.forge,
		Vulns:       vulns.NewFetcher(f.cache, f.log),
		Depsdev:     aggregator.NewFetcher(f.cache, f.log),
		LLM:         f.assessor(),
		LLMParallel: f.cfg.LLM.Parallel,
		Metrics:     f.collector,
		DataDir:     f.cfg.DataDir,
		Log:         f.log,
	}
	if npm, ok := adapter.(*registry.NPM); ok {
		cfg.Supply = npm
		cfg.SupplyAnalyzer = supplychain.New(f.cache, f.log)
	}
	return pipeline.New(cfg), nil
}

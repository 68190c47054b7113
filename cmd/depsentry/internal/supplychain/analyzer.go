// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package supplychain

import (
	"context"
	"net/http"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// HTTPClient is the request executor used for tarball downloads.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Analyzer runs the four supply-chain sub-analyses and aggregates them
// into one risk verdict.
type Analyzer struct {
	client HTTPClient
	log    *logging.Logger
}

// New builds an analyzer. A nil client disables tarball inspection.
func New(client HTTPClient, log *logging.Logger) *Analyzer {
	if log == nil {
		log = logging.Default()
	}
	return &Analyzer{client: client, log: log}
}

// Input carries everything one analysis run consumes.
type Input struct {
	// Registry is the packument extract for the package.
	Registry *registry.NPMSupplyChainData
	// RepoFiles is the set of paths in the source repository, used to
	// spot files injected into the tarball. Nil skips the comparison.
	RepoFiles map[string]struct{}
	// SkipTarball disables the archive download even when a URL is
	// known.
	SkipTarball bool
}

// Analyze runs every applicable sub-analysis. The overall score is the
// worst component score, bumped when several components look bad at
// once: one red flag is a finding, several are an incident.
func (a *Analyzer) Analyze(ctx context.Context, in Input) *model.SupplyChainData {
	if in.Registry == nil || in.Registry.Current == nil {
		return nil
	}
	current := in.Registry.Current

	data := &model.SupplyChainData{}
	data.Lifecycle = AnalyzeScripts(current.Scripts)

	if !in.SkipTarball && current.TarballURL != "" && a.client != nil {
		data.Tarball = a.AnalyzeTarball(ctx, current.TarballURL, in.RepoFiles)
	}

	data.VersionDiff = DiffVersions(current, in.Registry.Previous)
	data.Publishing = AnalyzePublishing(in.Registry.Maintainers, current)

	data.AllPatterns = append(data.AllPatterns, data.Lifecycle.Patterns...)
	if data.Tarball != nil {
		data.AllPatterns = append(data.AllPatterns, data.Tarball.Patterns...)
	}
	for _, p := range data.AllPatterns {
		if p.Severity == model.PatternCritical {
			data.CriticalFindings = append(data.CriticalFindings, p.Description+" in "+p.File)
		}
	}

	if data.Lifecycle.InstallsRuntime {
		data.BehavioralFlags = append(data.BehavioralFlags, model.FlagInstallsRuntime)
	}
	if data.Lifecycle.AccessesCreds {
		data.BehavioralFlags = append(data.BehavioralFlags, model.FlagAccessesCreds)
	}
	if data.Lifecycle.MakesNetworkCalls {
		data.BehavioralFlags = append(data.BehavioralFlags, model.FlagMakesNetworkCalls)
	}
	if data.Lifecycle.Obfuscated {
		data.BehavioralFlags = append(data.BehavioralFlags, model.FlagContainsObfuscation)
	}

	scores := []float64{data.Lifecycle.RiskScore}
	if data.Tarball != nil {
		scores = append(scores, data.Tarball.RiskScore)
	}
	if data.VersionDiff != nil {
		scores = append(scores, data.VersionDiff.RiskScore)
	}
	scores = append(scores, data.Publishing.RiskScore)

	overall := 0.0
	high := 0
	for _, s := range scores {
		if s > overall {
			overall = s
		}
		if s >= 50 {
			high++
		}
	}
	if high >= 2 {
		overall = min100(overall + 20)
	}
	data.OverallScore = overall
	data.RiskLevel = riskLevel(overall)
	return data
}

func riskLevel(score float64) model.SupplyChainRiskLevel {
	switch {
	case score >= 75:
		return model.SupplyRiskCritical
	case score >= 50:
		return model.SupplyRiskHigh
	case score >= 25:
		return model.SupplyRiskMedium
	default:
		return model.SupplyRiskLow
	}
}

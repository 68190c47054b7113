// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregator pulls cross-forge package intelligence from the
// deps.dev API (Open Source Insights): OpenSSF Scorecard, SLSA
// attestations, and resolved dependency graphs. No authentication is
// required.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// HTTPClient is the request executor injected into the fetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// depsDevSystems maps our ecosystem names to deps.dev system names.
// Homebrew is absent; formulas only resolve via the project endpoint.
var depsDevSystems = map[model.Ecosystem]string{
	model.EcosystemNPM:    "npm",
	model.EcosystemPyPI:   "pypi",
	model.EcosystemCrates: "cargo",
}

// projectKeyPrefixes maps forge platforms to deps.dev project key
// domains ("github.com/owner/repo").
var projectKeyPrefixes = map[model.Platform]string{
	model.PlatformGitHub:    "github.com",
	model.PlatformGitLab:    "gitlab.com",
	model.PlatformBitbucket: "bitbucket.org",
}

// Fetcher queries the deps.dev v3 API.
type Fetcher struct {
	client  HTTPClient
	log     *logging.Logger
	baseURL string
}

// NewFetcher builds a deps.dev fetcher backed by client.
func NewFetcher(client HTTPClient, log *logging.Logger) *Fetcher {
	if log == nil {
		log = logging.Default()
	}
	return &Fetcher{client: client, log: log, baseURL: "https://api.deps.dev/v3"}
}

// get fetches endpoint and decodes into out; 404 and transport errors
// degrade to (false, nil) because every deps.dev signal is optional.
func (f *Fetcher) get(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build deps.dev request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("deps.dev request failed", "endpoint", endpoint, "error", err.Error())
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode != http.StatusNotFound {
			f.log.Warn("deps.dev API error", "endpoint", endpoint, "status", resp.StatusCode)
		}
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		f.log.Warn("deps.dev decode failed", "endpoint", endpoint, "error", err.Error())
		return false, nil
	}
	return true, nil
}

func encode(s string) string {
	return url.QueryEscape(s)
}

// ============================================================================
// RESPONSE SHAPES
// ============================================================================

type versionResponse struct {
	Attestations []struct {
		Type string `json:"type"`
	} `json:"attestations"`
}

type dependenciesResponse struct {
	Nodes []struct {
		AdvisoryKeys []json.RawMessage `json:"advisoryKeys"`
	} `json:"nodes"`
	Edges []struct {
		FromNode int `json:"fromNode"`
		ToNode   int `json:"toNode"`
	} `json:"edges"`
}

type projectResponse struct {
	StarsCount      *int   `json:"starsCount"`
	ForksCount      *int   `json:"forksCount"`
	OpenIssuesCount *int   `json:"openIssuesCount"`
	License         string `json:"license"`
	OSSFuzz         *struct {
		LineCount      int `json:"lineCount"`
		LineCoverCount int `json:"lineCoverCount"`
	} `json:"ossFuzz"`
	Scorecard *struct {
		OverallScore *float64 `json:"overallScore"`
		Checks       []struct {
			Name   string   `json:"name"`
			Score  *float64 `json:"score"`
			Reason string   `json:"reason"`
		} `json:"checks"`
	} `json:"scorecard"`
}

// ============================================================================
// PARSING
// ============================================================================

// parseScorecard converts the project Scorecard block; nil when absent
// or missing an overall score.
func parseScorecard(project *projectResponse) *model.Scorecard {
	if project.Scorecard == nil || project.Scorecard.OverallScore == nil {
		return nil
	}
	sc := &model.Scorecard{OverallScore: *project.Scorecard.OverallScore}
	byName := make(map[string]float64)
	for _, check := range project.Scorecard.Checks {
		if check.Name == "" || check.Score == nil {
			continue
		}
		byName[check.Name] = *check.Score
		sc.Checks = append(sc.Checks, model.ScorecardCheck{
			Name:   check.Name,
			Score:  *check.Score,
			Reason: check.Reason,
		})
	}
	sc.FuzzingEnabled = byName["Fuzzing"] >= 5
	sc.SASTEnabled = byName["SAST"] >= 5
	sc.CIIBadge = byName["CII-Best-Practices"] >= 5
	return sc
}

// parseProjectMetrics extracts the forge-agnostic counters; nil when
// the project record carries none.
func parseProjectMetrics(project *projectResponse) *model.BasicProjectMetrics {
	if project.StarsCount == nil && project.ForksCount == nil && project.OpenIssuesCount == nil {
		return nil
	}
	metrics := &model.BasicProjectMetrics{License: project.License}
	if project.StarsCount != nil {
		metrics.Stars = *project.StarsCount
	}
	if project.ForksCount != nil {
		metrics.Forks = *project.ForksCount
	}
	if project.OpenIssuesCount != nil {
		metrics.OpenIssues = *project.OpenIssuesCount
	}
	metrics.OSSFuzz = project.OSSFuzz != nil && project.OSSFuzz.LineCount > 0
	return metrics
}

// parseDependencyGraph summarizes the resolved graph. Node 0 is the
// root package; depth 1 nodes are direct dependencies. Depths come
// from a BFS over the edge list.
func parseDependencyGraph(deps *dependenciesResponse) *model.DependencyGraphSummary {
	if len(deps.Nodes) == 0 {
		return nil
	}

	children := make(map[int][]int)
	for _, edge := range deps.Edges {
		children[edge.FromNode] = append(children[edge.FromNode], edge.ToNode)
	}

	depths := map[int]int{0: 0}
	queue := []int{0}
	maxDepth := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if _, seen := depths[child]; seen {
				continue
			}
			depths[child] = depths[current] + 1
			if depths[child] > maxDepth {
				maxDepth = depths[child]
			}
			queue = append(queue, child)
		}
	}

	summary := &model.DependencyGraphSummary{MaxDepth: maxDepth}
	for i, node := range deps.Nodes {
		if i == 0 {
			continue
		}
		vulnerable := len(node.AdvisoryKeys) > 0
		if depths[i] == 1 {
			summary.DirectCount++
			if vulnerable {
				summary.VulnerableDirect++
			}
		} else {
			summary.TransitiveCount++
			if vulnerable {
				summary.VulnerableTransitive++
			}
		}
	}
	return summary
}

// parseSLSA inspects version attestations for SLSA provenance; types
// look like "SLSA_BUILD_LEVEL_3" or "SLSA_PROVENANCE".
func parseSLSA(version *versionResponse) (bool, int) {
	for _, att := range version.Attestations {
		if !strings.Contains(att.Type, "SLSA") {
			continue
		}
		for level := 1; level <= 4; level++ {
			if strings.Contains(att.Type, fmt.Sprintf("LEVEL_%d", level)) {
				return true, level
			}
		}
		return true, 0
	}
	return false, 0
}

// ============================================================================
// FETCHING
// ============================================================================

// FetchIntelligence assembles all available deps.dev signals for one
// package version. Every signal is optional; a fully empty result is
// returned when nothing resolves.
func (f *Fetcher) FetchIntelligence(ctx context.Context, name, version string, eco model.Ecosystem, ref *model.RepoRef) (*model.AggregatorData, error) {
	data := &model.AggregatorData{}

	if system, ok := depsDevSystems[eco]; ok && version != "" {
		versionPath := fmt.Sprintf("/systems/%s/packages/%s/versions/%s", system, encode(name), encode(version))

		var vr versionResponse
		if found, _ := f.get(ctx, versionPath, &vr); found {
			data.SLSAAttestation, data.SLSALevel = parseSLSA(&vr)
		}

		var dr dependenciesResponse
		if found, _ := f.get(ctx, versionPath+":dependencies", &dr); found {
			data.Dependencies = parseDependencyGraph(&dr)
		}
	}

	if ref != nil {
		if prefix, ok := projectKeyPrefixes[ref.Platform]; ok {
			key := encode(prefix + "/" + ref.Owner + "/" + ref.Repo)
			var pr projectResponse
			if found, _ := f.get(ctx, "/projects/"+key, &pr); found {
				data.Scorecard = parseScorecard(&pr)
				data.ProjectMetrics = parseProjectMetrics(&pr)
			}
		}
	}

	return data, nil
}

// Empty reports whether no signal resolved at all.
func Empty(data *model.AggregatorData) bool {
	return data == nil ||
		(data.Scorecard == nil && data.ProjectMetrics == nil &&
			data.Dependencies == nil && !data.SLSAAttestation)
}

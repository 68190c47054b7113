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
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// buildSummary distills an artifact into the human-readable digest.
// Supply-chain critical findings are pushed to the front of the
// concerns list so a reader sees them before anything else.
func buildSummary(a *model.PackageAnalysis) *model.AnalysisSummary {
	s := &model.AnalysisSummary{MaintenanceStatus: "unknown"}
	summarizeLLM(s, a.LLMAssessments)
	summarizeRepo(s, a.GitHubData)
	summarizeSupplyChain(s, a.SupplyChain)
	summarizeAggregator(s, a.AggregatorData)
	return s
}

func summarizeLLM(s *model.AnalysisSummary, llm *model.LLMAssessments) {
	if llm == nil {
		return
	}
	if m := llm.Maintenance; m != nil {
		s.MaintenanceStatus = m.Status
		s.Concerns = append(s.Concerns, m.Concerns...)
		s.Highlights = append(s.Highlights, m.PositiveSignals...)
	}
	if r := llm.Readme; r != nil {
		s.DocSummary = r.Summary
		if r.TopIssue != "" {
			s.Concerns = append(s.Concerns, "Docs: "+r.TopIssue)
		}
	}
	if sent := llm.Sentiment; sent != nil {
		s.CommunitySentiment = sent.Sentiment
		if sent.AbandonmentSignals {
			s.Concerns = append(s.Concerns, "Possible abandonment signals detected")
		}
		for _, complaint := range firstN(sent.CommonComplaints, 2) {
			s.Concerns = append(s.Concerns, "Community: "+complaint)
		}
	}
	if c := llm.Communication; c != nil {
		s.CommunicationStyle = c.CommunicationStyle
		switch c.CommunicationStyle {
		case "exemplary":
			s.Highlights = append(s.Highlights, "Excellent maintainer communication")
		case "poor", "hostile":
			s.Concerns = append(s.Concerns, "Communication: "+c.Summary)
		}
		for _, flag := range firstN(c.RedFlags, 2) {
			s.Concerns = append(s.Concerns, "Communication: "+flag)
		}
	}
	if ch := llm.Changelog; ch != nil {
		if ch.BreakingChangesMarked {
			s.Highlights = append(s.Highlights, "Breaking changes clearly marked in changelog")
		}
		if ch.HasMigrationGuides {
			s.Highlights = append(s.Highlights, "Has migration guides for upgrades")
		}
	}
	if g := llm.Governance; g != nil {
		if g.HasSuccessionPlan {
			s.Highlights = append(s.Highlights, "Has succession plan for maintainers")
		}
		if g.BusFactorRisk == "high" {
			s.Concerns = append(s.Concerns, "Governance: High bus factor risk identified")
		}
	}
	if sec := llm.Security; sec != nil {
		for _, finding := range firstN(sec.CriticalFindings, 3) {
			s.Concerns = append(s.Concerns, "Security: "+finding)
		}
		added := 0
		for _, risk := range sec.InjectionRisks {
			if added == 2 {
				break
			}
			if sev, _ := risk["severity"].(string); sev != "high" {
				continue
			}
			desc, _ := risk["description"].(string)
			if desc == "" {
				desc = "Injection risk detected"
			}
			s.Concerns = append(s.Concerns, "Security: "+desc)
			added++
		}
		switch {
		case sec.OverallScore >= 8:
			s.Highlights = append(s.Highlights, "Code follows security best practices")
		case sec.OverallScore <= 4:
			s.Concerns = append(s.Concerns, "Security: "+sec.Summary)
		}
	}
}

func summarizeRepo(s *model.AnalysisSummary, facts *model.RepoFacts) {
	if facts == nil {
		return
	}
	var items []string
	if facts.Security.CVEs != nil && facts.Security.CVEs.Total > 0 {
		items = append(items, fmt.Sprintf("%d known CVEs", facts.Security.CVEs.Total))
	}
	if facts.Security.HasSecurityMD {
		items = append(items, "has SECURITY.md")
	}
	if facts.Security.HasDependabot {
		items = append(items, "Dependabot enabled")
	}
	if len(items) > 0 {
		s.SecuritySummary = strings.Join(items, ", ")
	} else {
		s.SecuritySummary = "No issues"
	}

	if pct := facts.Contributors.TopContributorPct; pct > 80 {
		s.Concerns = append(s.Concerns, fmt.Sprintf("High bus factor risk (%.0f%% from top contributor)", pct))
	}
	if facts.Commits.CommitsLast6mo > 20 {
		s.Highlights = append(s.Highlights, "Actively maintained")
	}
	if facts.CI.HasGitHubActions {
		s.Highlights = append(s.Highlights, "CI/CD configured")
	}
}

func summarizeSupplyChain(s *model.AnalysisSummary, sc *model.SupplyChainData) {
	if sc == nil {
		return
	}
	s.SupplyChainRisk = sc.RiskLevel

	for _, finding := range firstN(sc.CriticalFindings, 3) {
		prependConcern(s, "SUPPLY CHAIN: "+finding)
	}
	if sc.Lifecycle.HasPreinstall {
		s.Concerns = append(s.Concerns, "Supply Chain: Has preinstall script")
	}
	if sc.Lifecycle.HasPostinstall {
		s.Concerns = append(s.Concerns, "Supply Chain: Has postinstall script")
	}
	if sc.Lifecycle.InstallsRuntime {
		prependConcern(s, "SUPPLY CHAIN: Installs alternative runtime (Shai-Hulud indicator)")
	}
	if sc.Lifecycle.AccessesCreds {
		prependConcern(s, "SUPPLY CHAIN: Accesses credential files")
	}
	if sc.Lifecycle.Obfuscated {
		s.Concerns = append(s.Concerns, "Supply Chain: Contains obfuscated code")
	}
	if vd := sc.VersionDiff; vd != nil {
		if vd.SuspiciousJump {
			s.Concerns = append(s.Concerns, "Supply Chain: Suspicious version jump detected")
		}
		if len(vd.AddedScripts) > 0 {
			names := make([]string, 0, len(vd.AddedScripts))
			for name := range vd.AddedScripts {
				names = append(names, name)
			}
			sort.Strings(names)
			s.Concerns = append(s.Concerns, "Supply Chain: New scripts added: "+strings.Join(firstN(names, 3), ", "))
		}
	}
	if tb := sc.Tarball; tb != nil && len(tb.SuspiciousFiles) > 0 {
		prependConcern(s, "SUPPLY CHAIN: Suspicious files in package: "+strings.Join(firstN(tb.SuspiciousFiles, 3), ", "))
	}
	if !sc.Publishing.PublisherIsMaintainer {
		s.Concerns = append(s.Concerns, "Supply Chain: Publisher not in maintainers list")
	}
	if sc.Publishing.HasProvenance {
		s.Highlights = append(s.Highlights, "Has npm provenance attestation")
	}
	if sc.OverallScore == 0 {
		s.Highlights = append(s.Highlights, "No supply chain risks detected")
	}
}

func summarizeAggregator(s *model.AnalysisSummary, agg *model.AggregatorData) {
	if agg == nil {
		return
	}
	if agg.ProjectMetrics != nil && agg.Scorecard == nil {
		s.ForgeMetrics = agg.ProjectMetrics
		if agg.ProjectMetrics.OSSFuzz {
			s.Highlights = append(s.Highlights, "Enrolled in OSS-Fuzz")
		}
	}
	if sc := agg.Scorecard; sc != nil {
		score := sc.OverallScore
		s.ScorecardScore = &score
		switch {
		case score >= 7:
			s.Highlights = append(s.Highlights, fmt.Sprintf("OpenSSF Scorecard: %.1f/10", score))
		case score < 4:
			s.Concerns = append(s.Concerns, fmt.Sprintf("Low OpenSSF Scorecard: %.1f/10", score))
		}
		if sc.CIIBadge {
			s.Highlights = append(s.Highlights, "Has CII Best Practices badge")
		}
		if sc.FuzzingEnabled {
			s.Highlights = append(s.Highlights, "Fuzzing enabled")
		}
		if sc.SASTEnabled {
			s.Highlights = append(s.Highlights, "SAST enabled")
		}
	}
	if agg.SLSAAttestation {
		if agg.SLSALevel > 0 {
			s.Highlights = append(s.Highlights, fmt.Sprintf("SLSA Level %d provenance", agg.SLSALevel))
		} else {
			s.Highlights = append(s.Highlights, "Has SLSA provenance attestation")
		}
	}
	if dg := agg.Dependencies; dg != nil {
		total := dg.DirectCount + dg.TransitiveCount
		s.DependencyCount = &total
		if dg.VulnerableTransitive > 0 {
			s.Concerns = append(s.Concerns, fmt.Sprintf("Transitive deps with vulnerabilities: %d", dg.VulnerableTransitive))
		}
		if dg.MaxDepth > 10 {
			s.Concerns = append(s.Concerns, fmt.Sprintf("Deep dependency tree (depth: %d)", dg.MaxDepth))
		}
	}
}

func prependConcern(s *model.AnalysisSummary, msg string) {
	s.Concerns = append([]string{msg}, s.Concerns...)
}

func firstN[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return list[:n]
}

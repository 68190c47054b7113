// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

var scoringNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func f64(v float64) *float64    { return &v }
func i64(v int64) *int64        { return &v }
func at(t time.Time) *time.Time { return &t }

// healthyFacts models a popular, well-run npm project.
func healthyFacts() *model.RepoFacts {
	return &model.RepoFacts{
		Repo: model.RepoInfo{
			Stars:          5000,
			Forks:          600,
			CreatedAt:      at(scoringNow.AddDate(-2, 0, 0)),
			HasDiscussions: true,
		},
		Contributors: model.ContributorStats{
			TotalContributors:     12,
			ActiveContributors6mo: 8,
			TopContributorPct:     35,
			GrowthTrend:           model.TrendGrowing,
			FirstTimeContributors: 6,
			ContributionEntropy:   3.0,
		},
		Commits: model.CommitActivity{
			LastCommitAt:     at(scoringNow.AddDate(0, 0, -10)),
			CommitsLast6mo:   50,
			SignedCommitsPct: 85,
		},
		Issues: model.IssueStats{
			OpenIssues:       40,
			ClosedIssues6mo:  160,
			AvgResponseHours: f64(12),
			AvgCloseHours:    f64(100),
			GoodFirstIssues:  6,
		},
		Releases: model.ReleaseStats{
			ReleasesLastYear: 20,
			LatestVersion:    "2.1.0",
			PrereleaseRatio:  0.05,
		},
		Security: model.SecurityFacts{
			HasSecurityMD: true,
			HasDependabot: true,
			HasCodeQL:     true,
			HasSecurityCI: true,
		},
		Files: model.RepoFiles{
			HasReadme:         true,
			ReadmeSize:        8000,
			HasChangelog:      true,
			HasContributing:   true,
			HasCodeOfConduct:  true,
			HasDocsDir:        true,
			HasExamplesDir:    true,
			HasTestsDir:       true,
			HasCodeowners:     true,
			HasGovernance:     true,
			HasIssueTemplates: true,
			HasPRTemplate:     true,
		},
		CI: model.CIStatus{
			HasGitHubActions:    true,
			HasTestWorkflow:     true,
			HasLintWorkflow:     true,
			HasSecurityWorkflow: true,
			HasReleaseWorkflow:  true,
			MultiPlatform:       true,
			RecentRunsPassRate:  f64(98),
		},
	}
}

func TestScoreNoRepoData(t *testing.T) {
	s := Score(Input{Ecosystem: model.EcosystemNPM, Now: scoringNow})
	require.NotNil(t, s)

	for _, c := range []model.ScoreComponent{
		s.Security, s.Maintenance, s.Community,
		s.BusFactor, s.Documentation, s.Stability,
	} {
		assert.Equal(t, 50.0, c.Score)
	}
	assert.Equal(t, 50.0, s.Overall)
	assert.Equal(t, "F", s.Grade)
	assert.Equal(t, model.TierRestricted, s.RiskTier)
	assert.Equal(t, model.UrgencyLow, s.UpdateUrgency)
	assert.Equal(t, model.ConfidenceLow, s.Confidence)
	assert.Equal(t, model.AgeBand(""), s.ProjectAgeBand)
}

func TestScoreHealthyNPMPackage(t *testing.T) {
	s := Score(Input{
		Facts:        healthyFacts(),
		Metadata:     &model.PackageMetadata{Ecosystem: model.EcosystemNPM, NPMMaintainerCount: 4},
		InstallCount: i64(2_000_000),
		Ecosystem:    model.EcosystemNPM,
		Now:          scoringNow,
	})

	assert.Equal(t, 100.0, s.Security.Score)
	assert.Equal(t, 100.0, s.Maintenance.Score)
	assert.Equal(t, 100.0, s.Community.Score)
	assert.Equal(t, 100.0, s.BusFactor.Score)
	assert.Equal(t, 100.0, s.Stability.Score)
	// Presence 40 + changelog baseline 7.5 + readme baseline 30.
	assert.Equal(t, 77.5, s.Documentation.Score)

	assert.InDelta(t, 97.8, s.Overall, 0.001)
	assert.Equal(t, "A", s.Grade)
	assert.Equal(t, model.TierApproved, s.RiskTier)
	assert.Equal(t, model.UrgencyLow, s.UpdateUrgency)
	assert.Equal(t, model.ConfidenceMedium, s.Confidence)
	assert.Equal(t, []string{"No LLM assessment available"}, s.ConfidenceFactors)
	assert.Equal(t, model.AgeEstablished, s.ProjectAgeBand)
}

func TestScoreCompromisedPackage(t *testing.T) {
	worm := &model.SupplyChainData{
		Lifecycle: model.LifecycleScriptRisk{
			HasPreinstall:     true,
			InstallsRuntime:   true,
			AccessesCreds:     true,
			MakesNetworkCalls: true,
			SpawnsProcesses:   true,
			Obfuscated:        true,
		},
		Publishing: model.PublishingInfo{PublisherIsMaintainer: false},
		RiskLevel:  model.SupplyRiskCritical,
	}

	s := Score(Input{
		Facts:       healthyFacts(),
		SupplyChain: worm,
		Ecosystem:   model.EcosystemNPM,
		Now:         scoringNow,
	})

	// Healthy baseline 120, floored supply-chain penalty -80.
	assert.Equal(t, 40.0, s.Security.Score)
	assert.Equal(t, model.TierProhibited, s.RiskTier)
	assert.Equal(t, model.UrgencyCritical, s.UpdateUrgency)
}

func TestCVEPenalty(t *testing.T) {
	sec := func(severities ...model.Severity) model.SecurityFacts {
		hist := &model.CVEHistory{Total: len(severities)}
		for _, sev := range severities {
			hist.CVEs = append(hist.CVEs, model.CVEDetail{Severity: sev})
		}
		return model.SecurityFacts{CVEs: hist}
	}

	assert.Equal(t, 0.0, cvePenalty(model.SecurityFacts{}))
	assert.Equal(t, -35.0, cvePenalty(sec(model.SeverityCritical, model.SeverityHigh)))
	assert.Equal(t, -11.0, cvePenalty(sec(model.SeverityMedium, model.SeverityLow)))
	assert.Equal(t, -60.0, cvePenalty(sec(
		model.SeverityCritical, model.SeverityCritical,
		model.SeverityCritical, model.SeverityCritical,
	)), "penalty caps at -60")

	// Count-only fallback: -10 per CVE, same cap.
	assert.Equal(t, -30.0, cvePenalty(model.SecurityFacts{CVEs: &model.CVEHistory{Total: 3}}))
	assert.Equal(t, -60.0, cvePenalty(model.SecurityFacts{CVEs: &model.CVEHistory{Total: 10}}))
}

func TestPatchTimeAdjustment(t *testing.T) {
	hist := func(avg float64) model.SecurityFacts {
		return model.SecurityFacts{CVEs: &model.CVEHistory{AvgDaysToPatch: f64(avg)}}
	}

	assert.Equal(t, 10.0, patchTimeAdjustment(hist(5), scoringNow))
	assert.Equal(t, 5.0, patchTimeAdjustment(hist(20), scoringNow))
	assert.Equal(t, 0.0, patchTimeAdjustment(hist(60), scoringNow))
	assert.Equal(t, -10.0, patchTimeAdjustment(hist(120), scoringNow))

	// Two long-unpatched CVEs still incur the -15 only once.
	old := at(scoringNow.AddDate(0, -3, 0))
	unpatched := model.SecurityFacts{CVEs: &model.CVEHistory{
		HasUnpatched: true,
		CVEs: []model.CVEDetail{
			{Severity: model.SeverityHigh, PublishedAt: old},
			{Severity: model.SeverityMedium, PublishedAt: old},
		},
	}}
	assert.Equal(t, -15.0, patchTimeAdjustment(unpatched, scoringNow))
}

func TestSupplyChainRiskPenalty(t *testing.T) {
	clean := &model.SupplyChainData{
		Publishing: model.PublishingInfo{
			PublisherIsMaintainer: true,
			HasProvenance:         true,
			ProvenanceVerified:    true,
		},
	}
	// Verified provenance +10, no lifecycle scripts +5.
	assert.Equal(t, 15.0, supplyChainRiskPenalty(clean))

	worm := &model.SupplyChainData{
		Lifecycle: model.LifecycleScriptRisk{
			HasPreinstall:     true,
			InstallsRuntime:   true,
			AccessesCreds:     true,
			MakesNetworkCalls: true,
			Obfuscated:        true,
		},
	}
	assert.Equal(t, -80.0, supplyChainRiskPenalty(worm), "penalty floors at -80")

	injected := &model.SupplyChainData{
		VersionDiff: &model.VersionDiff{
			SuspiciousJump: true,
			AddedScripts:   map[string]string{"preinstall": "node x.js", "postinstall": "node y.js"},
		},
		Publishing: model.PublishingInfo{PublisherIsMaintainer: true},
	}
	assert.Equal(t, -40.0, supplyChainRiskPenalty(injected))
}

func TestReleaseCadenceAdjustment(t *testing.T) {
	npm := thresholdsFor(model.EcosystemNPM)
	brew := thresholdsFor(model.EcosystemHomebrew)
	active := model.CommitActivity{CommitsLast6mo: 10}
	idle := model.CommitActivity{}
	rel := func(n int) model.ReleaseStats { return model.ReleaseStats{ReleasesLastYear: n} }

	assert.Equal(t, 10.0, releaseCadenceAdjustment(rel(20), active, npm))
	assert.Equal(t, 5.0, releaseCadenceAdjustment(rel(5), active, npm))
	assert.Equal(t, -5.0, releaseCadenceAdjustment(rel(0), active, npm))
	assert.Equal(t, -10.0, releaseCadenceAdjustment(rel(0), idle, npm))
	assert.Equal(t, 0.0, releaseCadenceAdjustment(rel(60), active, npm))

	// Homebrew's sweet spot sits lower than npm's.
	assert.Equal(t, 10.0, releaseCadenceAdjustment(rel(8), active, brew))
	assert.Equal(t, 0.0, releaseCadenceAdjustment(rel(20), active, brew))
}

func TestIssueResponseAdjustment(t *testing.T) {
	npm := thresholdsFor(model.EcosystemNPM)
	stats := func(respond, close float64) model.IssueStats {
		return model.IssueStats{AvgResponseHours: f64(respond), AvgCloseHours: f64(close)}
	}

	assert.Equal(t, 15.0, issueResponseAdjustment(stats(12, 500), npm))
	assert.Equal(t, 5.0, issueResponseAdjustment(stats(100, 900), npm))
	assert.Equal(t, -10.0, issueResponseAdjustment(stats(800, 900), npm))
	assert.Equal(t, 0.0, issueResponseAdjustment(model.IssueStats{}, npm))
}

func TestRiskTierBoundaries(t *testing.T) {
	archived := healthyFacts()
	archived.Repo.IsArchived = true
	assert.Equal(t, model.TierProhibited, riskTier(90, 90, Input{Facts: archived, Now: scoringNow}))

	unpatchedCritical := healthyFacts()
	unpatchedCritical.Security.CVEs = &model.CVEHistory{
		HasUnpatched: true,
		CVEs:         []model.CVEDetail{{Severity: model.SeverityCritical}},
	}
	assert.Equal(t, model.TierProhibited, riskTier(90, 90, Input{Facts: unpatchedCritical, Now: scoringNow}))

	in := Input{Facts: healthyFacts(), Now: scoringNow}
	assert.Equal(t, model.TierRestricted, riskTier(85, 39, in))
	assert.Equal(t, model.TierApproved, riskTier(80, 70, in))
	assert.Equal(t, model.TierConditional, riskTier(79.9, 70, in))
	assert.Equal(t, model.TierConditional, riskTier(60, 70, in))
	assert.Equal(t, model.TierRestricted, riskTier(59.9, 70, in))

	// Medium supply-chain risk downgrades an otherwise approved package.
	in.SupplyChain = &model.SupplyChainData{
		RiskLevel:  model.SupplyRiskMedium,
		Publishing: model.PublishingInfo{PublisherIsMaintainer: true},
	}
	assert.Equal(t, model.TierConditional, riskTier(90, 90, in))

	in.SupplyChain.RiskLevel = model.SupplyRiskHigh
	assert.Equal(t, model.TierRestricted, riskTier(90, 90, in))
}

func TestUpdateUrgency(t *testing.T) {
	assert.Equal(t, model.UrgencyLow, updateUrgency(Input{Facts: healthyFacts(), Now: scoringNow}))

	unpatched := healthyFacts()
	unpatched.Security.CVEs = &model.CVEHistory{HasUnpatched: true}
	assert.Equal(t, model.UrgencyCritical, updateUrgency(Input{Facts: unpatched, Now: scoringNow}))

	patched := healthyFacts()
	patched.Security.CVEs = &model.CVEHistory{
		CVEs: []model.CVEDetail{{Severity: model.SeverityHigh, FixedVersion: "2.0.1"}},
	}
	assert.Equal(t, model.UrgencyHigh, updateUrgency(Input{Facts: patched, Now: scoringNow}))

	dormant := healthyFacts()
	dormant.Commits.CommitsLast6mo = 0
	assert.Equal(t, model.UrgencyMedium, updateUrgency(Input{Facts: dormant, Now: scoringNow}))

	supplyRisk := Input{
		Facts:       healthyFacts(),
		SupplyChain: &model.SupplyChainData{RiskLevel: model.SupplyRiskMedium},
		Now:         scoringNow,
	}
	assert.Equal(t, model.UrgencyHigh, updateUrgency(supplyRisk))

	supplyRisk.SupplyChain.Lifecycle.AccessesCreds = true
	assert.Equal(t, model.UrgencyCritical, updateUrgency(supplyRisk))
}

func TestConfidence(t *testing.T) {
	full := Input{
		Facts: healthyFacts(),
		LLM:   &model.LLMAssessments{Readme: &model.ReadmeAssessment{}},
		Now:   scoringNow,
	}
	level, factors := scoreConfidence(full)
	assert.Equal(t, model.ConfidenceHigh, level)
	assert.Empty(t, factors)

	sparse := healthyFacts()
	sparse.Repo.CreatedAt = at(scoringNow.AddDate(0, -2, 0))
	sparse.Contributors.TotalContributors = 1
	sparse.Issues = model.IssueStats{OpenIssues: 1}
	level, factors = scoreConfidence(Input{Facts: sparse, Now: scoringNow})
	assert.Equal(t, model.ConfidenceLow, level)
	assert.Len(t, factors, 4)
}

func TestProjectAgeBand(t *testing.T) {
	band := func(years, months int) model.AgeBand {
		facts := healthyFacts()
		facts.Repo.CreatedAt = at(scoringNow.AddDate(-years, -months, 0))
		return projectAgeBand(Input{Facts: facts, Now: scoringNow})
	}

	assert.Equal(t, model.AgeNew, band(0, 6))
	assert.Equal(t, model.AgeEstablished, band(1, 1))
	assert.Equal(t, model.AgeMature, band(3, 1))
	assert.Equal(t, model.AgeLegacy, band(10, 0))
}

func TestScoreToGrade(t *testing.T) {
	assert.Equal(t, "A", scoreToGrade(90))
	assert.Equal(t, "B", scoreToGrade(89.9))
	assert.Equal(t, "B", scoreToGrade(80))
	assert.Equal(t, "C", scoreToGrade(79.9))
	assert.Equal(t, "D", scoreToGrade(60))
	assert.Equal(t, "F", scoreToGrade(59.9))
}

func TestMajorVersion(t *testing.T) {
	for _, tc := range []struct {
		version string
		major   int
		ok      bool
	}{
		{"2.1.0", 2, true},
		{"v1.0.0", 1, true},
		{"0.9.1", 0, true},
		{"", 0, false},
		{"snapshot", 0, false},
	} {
		major, ok := majorVersion(tc.version)
		assert.Equal(t, tc.ok, ok, tc.version)
		assert.Equal(t, tc.major, major, tc.version)
	}
}

func TestAssignPercentiles(t *testing.T) {
	a := &model.Scores{Overall: 90}
	b := &model.Scores{Overall: 50}
	c := &model.Scores{Overall: 70}
	AssignPercentiles([]*model.Scores{a, b, c})

	require.NotNil(t, a.Percentile)
	assert.Equal(t, 100.0, *a.Percentile)
	assert.InDelta(t, 33.3, *b.Percentile, 0.001)
	assert.InDelta(t, 66.7, *c.Percentile, 0.001)
}

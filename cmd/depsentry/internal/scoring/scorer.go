// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring turns collected package facts into a weighted composite
// health score with risk tier, update urgency, and confidence grading.
// Scoring is pure: the same Input always yields the same Scores.
package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// ===== WEIGHTS AND PENALTIES =====

// Component weights, integer percent, sum 100.
const (
	weightSecurity      = 30
	weightMaintenance   = 25
	weightCommunity     = 15
	weightBusFactor     = 10
	weightDocumentation = 10
	weightStability     = 10
)

// Severity-weighted CVE penalties, capped at cveMaxPenalty total.
var cveSeverityPenalties = map[model.Severity]float64{
	model.SeverityCritical: -20,
	model.SeverityHigh:     -15,
	model.SeverityMedium:   -8,
	model.SeverityLow:      -3,
	model.SeverityUnknown:  -10,
}

const (
	cveMaxPenalty         = -60
	supplyChainMaxPenalty = -80
)

// thresholds tunes scoring to what an ecosystem considers healthy. npm
// moves far faster than Homebrew, so its expectations are tighter.
type thresholds struct {
	sweetSpotMin      int
	sweetSpotMax      int
	responseGoodHours float64
	downloadHigh      int64
	downloadMedium    int64
}

var ecosystemThresholds = map[model.Ecosystem]thresholds{
	model.EcosystemNPM: {
		sweetSpotMin:      12,
		sweetSpotMax:      52,
		responseGoodHours: 24,
		downloadHigh:      1_000_000,
		downloadMedium:    100_000,
	},
	model.EcosystemHomebrew: {
		sweetSpotMin:      4,
		sweetSpotMax:      12,
		responseGoodHours: 48,
		downloadHigh:      100_000,
		downloadMedium:    10_000,
	},
}

func thresholdsFor(eco model.Ecosystem) thresholds {
	if t, ok := ecosystemThresholds[eco]; ok {
		return t
	}
	return ecosystemThresholds[model.EcosystemHomebrew]
}

// ===== INPUT =====

// Input bundles everything scoring consumes. Any pointer may be nil;
// missing data lowers confidence rather than failing the calculation.
type Input struct {
	Facts        *model.RepoFacts
	LLM          *model.LLMAssessments
	SupplyChain  *model.SupplyChainData
	Aggregator   *model.AggregatorData
	Metadata     *model.PackageMetadata
	InstallCount *int64
	Ecosystem    model.Ecosystem

	// Now anchors age and recency math. Zero means time.Now().
	Now time.Time
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now().UTC()
	}
	return in.Now
}

// ===== SCORE =====

// Score computes all six components and the derived classifications.
// Percentile is left nil; AssignPercentiles fills it once a whole batch
// has been scored.
func Score(in Input) *model.Scores {
	th := thresholdsFor(in.Ecosystem)

	security := securityScore(in)
	maintenance := maintenanceScore(in, th)
	community := communityScore(in, th)
	busFactor := busFactorScore(in)
	documentation := documentationScore(in)
	stability := stabilityScore(in)

	overall := (security.Score*float64(security.Weight) +
		maintenance.Score*float64(maintenance.Weight) +
		community.Score*float64(community.Weight) +
		busFactor.Score*float64(busFactor.Weight) +
		documentation.Score*float64(documentation.Weight) +
		stability.Score*float64(stability.Weight)) / 100

	confidence, factors := scoreConfidence(in)

	return &model.Scores{
		Overall:           round1(overall),
		Grade:             scoreToGrade(overall),
		RiskTier:          riskTier(overall, security.Score, in),
		UpdateUrgency:     updateUrgency(in),
		Confidence:        confidence,
		ConfidenceFactors: factors,
		ProjectAgeBand:    projectAgeBand(in),
		Security:          security,
		Maintenance:       maintenance,
		Community:         community,
		BusFactor:         busFactor,
		Documentation:     documentation,
		Stability:         stability,
	}
}

// AssignPercentiles fills each score's percentile rank within the batch.
func AssignPercentiles(batch []*model.Scores) {
	ranked := make([]*model.Scores, 0, len(batch))
	for _, s := range batch {
		if s != nil {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Overall < ranked[j].Overall
	})
	n := len(ranked)
	for i, s := range ranked {
		p := round1(float64(i+1) / float64(n) * 100)
		s.Percentile = &p
	}
}

// ===== SECURITY (30%) =====

func securityScore(in Input) model.ScoreComponent {
	if in.Facts == nil {
		return model.ScoreComponent{Score: 50, Weight: weightSecurity}
	}

	score := 100.0
	sec := in.Facts.Security

	score += cvePenalty(sec)
	score += patchTimeAdjustment(sec, in.now())

	if vulnDeps := vulnerableDeps(in.Aggregator); vulnDeps > 0 {
		score -= math.Min(20, float64(vulnDeps)*5)
	}

	if !sec.HasSecurityMD {
		score -= 10
	}

	switch tools := sec.ToolCount(); {
	case tools == 0:
		score -= 10
	case tools >= 3:
		score += 10
	case tools >= 2:
		score += 5
	}

	if pct := in.Facts.Commits.SignedCommitsPct; pct >= 80 {
		score += 10
	} else if pct >= 50 {
		score += 5
	}

	score += supplyChainBonus(sec, in.Aggregator)

	if in.SupplyChain != nil {
		score += supplyChainRiskPenalty(in.SupplyChain)
	}

	if in.LLM != nil && in.LLM.Security != nil {
		llm := in.LLM.Security
		score = score*0.8 + float64(llm.OverallScore*10)*0.2
		if n := len(llm.CriticalFindings); n > 0 {
			score -= math.Min(20, float64(n)*10)
		}
	}

	return model.ScoreComponent{Score: clampScore(score), Weight: weightSecurity}
}

func cvePenalty(sec model.SecurityFacts) float64 {
	hist := sec.CVEs
	if hist == nil || len(hist.CVEs) == 0 {
		if hist != nil && hist.Total > 0 {
			return math.Max(cveMaxPenalty, -float64(hist.Total)*10)
		}
		return 0
	}
	total := 0.0
	for _, cve := range hist.CVEs {
		penalty, ok := cveSeverityPenalties[cve.Severity]
		if !ok {
			penalty = -10
		}
		total += penalty
	}
	return math.Max(cveMaxPenalty, total)
}

func patchTimeAdjustment(sec model.SecurityFacts, now time.Time) float64 {
	hist := sec.CVEs
	if hist == nil {
		return 0
	}
	adjustment := 0.0
	if hist.AvgDaysToPatch != nil {
		switch avg := *hist.AvgDaysToPatch; {
		case avg < 7:
			adjustment += 10
		case avg < 30:
			adjustment += 5
		case avg > 90:
			adjustment -= 10
		}
	}
	if hist.HasUnpatched {
		for _, cve := range hist.CVEs {
			if cve.FixedVersion != "" || cve.PublishedAt == nil {
				continue
			}
			if now.Sub(*cve.PublishedAt) > 30*24*time.Hour {
				adjustment -= 15
				break
			}
		}
	}
	return adjustment
}

func vulnerableDeps(agg *model.AggregatorData) int {
	if agg == nil || agg.Dependencies == nil {
		return 0
	}
	return agg.Dependencies.VulnerableDirect + agg.Dependencies.VulnerableTransitive
}

func supplyChainBonus(sec model.SecurityFacts, agg *model.AggregatorData) float64 {
	bonus := 0.0
	level := sec.SLSALevel
	if agg != nil && agg.SLSALevel > level {
		level = agg.SLSALevel
	}
	switch level {
	case 1:
		bonus += 5
	case 2:
		bonus += 10
	case 3, 4:
		bonus += 15
	}
	if sec.UsesSigstore {
		bonus += 10
	}
	if sec.GeneratesSBOM {
		bonus += 5
	}
	return bonus
}

// supplyChainRiskPenalty converts lifecycle, tarball, version-diff, and
// publishing findings into score penalties, floored at -80 so other
// factors still move the needle.
func supplyChainRiskPenalty(sc *model.SupplyChainData) float64 {
	penalty := 0.0
	ls := sc.Lifecycle

	if ls.InstallsRuntime {
		penalty -= 50
	}
	if ls.AccessesCreds {
		penalty -= 40
	}
	if ls.Obfuscated {
		penalty -= 30
	}
	if ls.MakesNetworkCalls && ls.HasPreinstall {
		penalty -= 25
	} else if ls.MakesNetworkCalls {
		penalty -= 15
	}
	if ls.SpawnsProcesses && ls.HasPreinstall {
		penalty -= 20
	}
	if ls.HasPreinstall {
		penalty -= 10
	} else if ls.HasPostinstall {
		penalty -= 5
	}
	// Exfiltration pattern: read credentials, then phone home.
	if ls.AccessesCreds && ls.MakesNetworkCalls {
		penalty -= 20
	}

	if tb := sc.Tarball; tb != nil {
		if n := len(tb.SuspiciousFiles); n > 0 {
			penalty -= math.Min(40, float64(n)*20)
		}
		if len(tb.FilesNotInRepo) > 10 {
			penalty -= 15
		}
	}

	if vd := sc.VersionDiff; vd != nil {
		if vd.SuspiciousJump {
			penalty -= 15
		}
		for name := range vd.AddedScripts {
			switch name {
			case "preinstall", "install":
				penalty -= 20
			case "postinstall":
				penalty -= 10
			}
		}
	}

	if !sc.Publishing.PublisherIsMaintainer {
		penalty -= 15
	}
	if sc.Publishing.HasProvenance && sc.Publishing.ProvenanceVerified {
		penalty += 10
	} else if sc.Publishing.HasProvenance {
		penalty += 5
	}
	if !ls.HasPreinstall && !ls.HasPostinstall && !ls.HasInstall {
		penalty += 5
	}

	return math.Max(supplyChainMaxPenalty, penalty)
}

// ===== MAINTENANCE (25%) =====

func maintenanceScore(in Input, th thresholds) model.ScoreComponent {
	if in.Facts == nil {
		return model.ScoreComponent{Score: 50, Weight: weightMaintenance}
	}

	score := 100.0
	commits := in.Facts.Commits
	issues := in.Facts.Issues
	prs := in.Facts.PRs
	repo := in.Facts.Repo

	if repo.IsArchived {
		score -= 40
	}
	if repo.IsDeprecated {
		score -= 30
	}

	// Exponential recency decay: 50% at ~125 days, 75% gone at ~250.
	// Recency gates at most 70% of the score.
	if commits.LastCommitAt != nil {
		days := in.now().Sub(*commits.LastCommitAt).Hours() / 24
		recency := math.Exp(-days / 180)
		score *= 0.3 + 0.7*recency
	}

	if commits.CommitsLast6mo == 0 {
		score -= 20
	} else {
		score += 5
		if commits.CommitsLast6mo >= 10 {
			score += 3
		}
	}

	score += issueResponseAdjustment(issues, th)

	if total := issues.OpenIssues + issues.ClosedIssues6mo; total > 0 {
		closeRate := float64(issues.ClosedIssues6mo) / float64(total)
		if closeRate < 0.3 {
			score -= 15
		} else if closeRate > 0.7 {
			score += 5
		}
	}

	if prs.StalePRs > 5 {
		score -= math.Min(15, float64(prs.StalePRs)*2)
	}

	score += releaseCadenceAdjustment(in.Facts.Releases, commits, th)

	if in.LLM != nil && in.LLM.Maintenance != nil {
		llmScore := maintenanceStatusScore(in.LLM.Maintenance.Status)
		score = score*0.7 + llmScore*0.3
	}

	return model.ScoreComponent{Score: clampScore(score), Weight: weightMaintenance}
}

func maintenanceStatusScore(status string) float64 {
	switch status {
	case "actively-maintained":
		return 100
	case "maintained":
		return 80
	case "minimal-maintenance":
		return 60
	case "stale":
		return 40
	case "abandoned":
		return 20
	default:
		return 50
	}
}

func issueResponseAdjustment(issues model.IssueStats, th thresholds) float64 {
	adjustment := 0.0
	if issues.AvgResponseHours != nil {
		switch hours := *issues.AvgResponseHours; {
		case hours < th.responseGoodHours:
			adjustment += 10
		case hours < 168:
			adjustment += 5
		case hours > 720:
			adjustment -= 10
		}
	}
	if issues.AvgCloseHours != nil && *issues.AvgCloseHours < 720 {
		adjustment += 5
	}
	return adjustment
}

// releaseCadenceAdjustment rewards the ecosystem's sweet spot. Zero
// releases with active commits signals missing release discipline;
// zero releases on a dead repo is worse.
func releaseCadenceAdjustment(releases model.ReleaseStats, commits model.CommitActivity, th thresholds) float64 {
	perYear := releases.ReleasesLastYear
	switch {
	case perYear >= th.sweetSpotMin && perYear <= th.sweetSpotMax:
		return 10
	case perYear >= 1 && perYear < th.sweetSpotMin:
		return 5
	case perYear == 0:
		if commits.CommitsLast6mo > 0 {
			return -5
		}
		return -10
	default:
		return 0
	}
}

// ===== COMMUNITY (15%) =====

func communityScore(in Input, th thresholds) model.ScoreComponent {
	if in.Facts == nil {
		return model.ScoreComponent{Score: 50, Weight: weightCommunity}
	}

	score := 70.0
	repo := in.Facts.Repo
	contributors := in.Facts.Contributors
	issues := in.Facts.Issues
	files := in.Facts.Files

	if repo.Stars > 0 && repo.CreatedAt != nil {
		ageYears := math.Max(1, in.now().Sub(*repo.CreatedAt).Hours()/24/365)
		switch starsPerYear := float64(repo.Stars) / ageYears; {
		case starsPerYear > 1000:
			score += 15
		case starsPerYear > 100:
			score += 10
		case starsPerYear > 10:
			score += 5
		}
	}

	if repo.Stars > 0 && float64(repo.Forks)/float64(repo.Stars) > 0.1 {
		score += 5
	}

	switch contributors.GrowthTrend {
	case model.TrendGrowing:
		score += 10
	case model.TrendDeclining:
		score -= 15
	}

	if contributors.FirstTimeContributors >= 5 {
		score += 5
	} else if contributors.FirstTimeContributors >= 1 {
		score += 2
	}

	if issues.GoodFirstIssues >= 5 {
		score += 5
	} else if issues.GoodFirstIssues >= 1 {
		score += 2
	}

	score += communityHealthBonus(files, repo)

	if in.InstallCount != nil {
		if *in.InstallCount > th.downloadHigh {
			score += 10
		} else if *in.InstallCount > th.downloadMedium {
			score += 5
		}
	}

	if in.LLM != nil && in.LLM.Sentiment != nil {
		sentiment := in.LLM.Sentiment
		switch sentiment.Sentiment {
		case "positive":
			score += 10
		case "mixed":
			score -= 5
		case "negative":
			score -= 15
		}
		if sentiment.FrustrationLevel >= 7 {
			score -= 10
		} else if sentiment.FrustrationLevel >= 5 {
			score -= 5
		}
	}

	return model.ScoreComponent{Score: clampScore(score), Weight: weightCommunity}
}

func communityHealthBonus(files model.RepoFiles, repo model.RepoInfo) float64 {
	bonus := 0.0
	if files.HasContributing {
		bonus += 5
	}
	if files.HasIssueTemplates {
		bonus += 3
	}
	if files.HasPRTemplate {
		bonus += 3
	}
	if files.HasCodeOfConduct {
		bonus += 3
	}
	if repo.HasDiscussions {
		bonus += 5
	}
	return bonus
}

// ===== BUS FACTOR (10%) =====

func busFactorScore(in Input) model.ScoreComponent {
	if in.Facts == nil {
		return model.ScoreComponent{Score: 50, Weight: weightBusFactor}
	}

	score := 50.0
	contributors := in.Facts.Contributors
	files := in.Facts.Files

	// Shannon entropy of the contribution distribution. Roughly 3 bits
	// of entropy (eight evenly-loaded contributors) maxes the bonus.
	if contributors.TotalContributors > 0 {
		score += math.Min(25, contributors.ContributionEntropy*8)
	} else {
		switch {
		case contributors.ContributorsWith5Pct >= 3:
			score += 25
		case contributors.ContributorsWith5Pct >= 2:
			score += 15
		case contributors.ContributorsWith5Pct == 1:
			score -= 10
		}
	}

	switch pct := contributors.TopContributorPct; {
	case pct > 90:
		score -= 20
	case pct > 75:
		score -= 10
	case pct < 50:
		score += 10
	}

	switch active := contributors.ActiveContributors6mo; {
	case active >= 5:
		score += 10
	case active >= 2:
		score += 5
	case active == 1:
		score -= 10
	}

	switch contributors.GrowthTrend {
	case model.TrendGrowing:
		score += 5
	case model.TrendDeclining:
		score -= 10
	}

	if files.HasCodeowners {
		score += 5
	}
	if files.HasGovernance {
		score += 5
	}

	if in.Metadata != nil && in.Metadata.Ecosystem == model.EcosystemNPM {
		switch n := in.Metadata.NPMMaintainerCount; {
		case n >= 3:
			score += 10
		case n >= 2:
			score += 5
		case n == 1:
			score -= 5
		}
	}

	if in.LLM != nil && in.LLM.Governance != nil {
		gov := in.LLM.Governance
		if gov.HasSuccessionPlan {
			score += 10
		}
		if gov.IndicatesMultipleMaintainers {
			score += 5
		}
		switch gov.BusFactorRisk {
		case "high":
			score -= 15
		case "low":
			score += 10
		}
	}

	return model.ScoreComponent{Score: clampScore(score), Weight: weightBusFactor}
}

// ===== DOCUMENTATION (10%) =====

// documentationScore splits 40 points of presence signals from 60 points
// of LLM-judged quality signals.
func documentationScore(in Input) model.ScoreComponent {
	if in.Facts == nil {
		return model.ScoreComponent{Score: 50, Weight: weightDocumentation}
	}

	files := in.Facts.Files

	presence := 0.0
	if files.HasReadme {
		presence += 10
		if files.ReadmeSize > 5000 {
			presence += 5
		} else if files.ReadmeSize > 1000 {
			presence += 3
		}
	}
	if files.HasDocsDir {
		presence += 10
	}
	if files.HasExamplesDir {
		presence += 10
	}
	if files.HasChangelog {
		presence += 5
	}

	quality := 0.0
	if in.LLM != nil && in.LLM.Readme != nil {
		readme := in.LLM.Readme
		quality += float64(readme.Installation) * 1.5
		quality += float64(readme.QuickStart) * 1.5
		quality += float64(readme.Examples) * 1.5
	}

	if in.LLM != nil && in.LLM.Changelog != nil {
		quality += changelogQualityScore(in.LLM.Changelog)
	} else if files.HasChangelog {
		quality += 7.5
	}

	if in.LLM.Empty() && files.HasReadme {
		quality += 30
	}

	if in.Metadata != nil && in.Metadata.HasTypes {
		quality += 5
	}

	return model.ScoreComponent{Score: clampScore(presence + quality), Weight: weightDocumentation}
}

func changelogQualityScore(changelog *model.ChangelogAssessment) float64 {
	quality := 5.0
	if changelog.BreakingChangesMarked {
		quality += 5
	}
	if changelog.HasMigrationGuides {
		quality += 5
	}
	return quality
}

// ===== STABILITY (10%) =====

func stabilityScore(in Input) model.ScoreComponent {
	if in.Facts == nil {
		return model.ScoreComponent{Score: 50, Weight: weightStability}
	}

	score := 60.0
	releases := in.Facts.Releases
	files := in.Facts.Files
	issues := in.Facts.Issues

	if major, ok := majorVersion(releases.LatestVersion); ok && major >= 1 {
		score += 15
	}

	if releases.PrereleaseRatio > 0.5 {
		score -= 10
	} else if releases.PrereleaseRatio < 0.1 {
		score += 5
	}

	if files.HasTestsDir {
		score += 5
	}

	score += ciDepthAdjustment(in.Facts.CI)

	if issues.RegressionIssues > 5 {
		score -= 10
	} else if issues.RegressionIssues > 0 {
		score -= 5
	}

	if in.LLM != nil && in.LLM.Changelog != nil {
		if in.LLM.Changelog.BreakingChangesMarked {
			score += 5
		}
		if in.LLM.Changelog.HasMigrationGuides {
			score += 5
		}
	}

	return model.ScoreComponent{Score: clampScore(score), Weight: weightStability}
}

func majorVersion(version string) (int, bool) {
	version = strings.TrimPrefix(version, "v")
	if version == "" {
		return 0, false
	}
	major, err := strconv.Atoi(strings.SplitN(version, ".", 2)[0])
	if err != nil {
		return 0, false
	}
	return major, true
}

func ciDepthAdjustment(ci model.CIStatus) float64 {
	if !ci.HasGitHubActions {
		return -5
	}
	score := 5.0
	if ci.HasTestWorkflow {
		score += 5
	}
	if ci.HasLintWorkflow {
		score += 3
	}
	if ci.HasSecurityWorkflow {
		score += 5
	}
	if ci.HasReleaseWorkflow {
		score += 3
	}
	if ci.MultiPlatform {
		score += 5
	}
	if ci.RecentRunsPassRate != nil {
		if *ci.RecentRunsPassRate >= 95 {
			score += 5
		} else if *ci.RecentRunsPassRate < 70 {
			score -= 10
		}
	}
	return score
}

// ===== TIER, URGENCY, CONFIDENCE, AGE =====

// riskTier classifies the package for policy decisions. Supply-chain
// attack indicators and unpatched critical CVEs prohibit outright
// regardless of the numeric score.
func riskTier(overall, securityScore float64, in Input) model.RiskTier {
	if sc := in.SupplyChain; sc != nil {
		if sc.RiskLevel == model.SupplyRiskCritical {
			return model.TierProhibited
		}
		if sc.Lifecycle.InstallsRuntime {
			return model.TierProhibited
		}
		if sc.Lifecycle.AccessesCreds && sc.Lifecycle.MakesNetworkCalls {
			return model.TierProhibited
		}
		if sc.Tarball != nil && len(sc.Tarball.SuspiciousFiles) > 0 {
			return model.TierProhibited
		}
		if sc.RiskLevel == model.SupplyRiskHigh {
			return model.TierRestricted
		}
	}

	if in.Facts != nil {
		if in.Facts.Repo.IsArchived {
			return model.TierProhibited
		}
		if hist := in.Facts.Security.CVEs; hist != nil && hist.HasUnpatched {
			for _, cve := range hist.CVEs {
				if cve.Severity == model.SeverityCritical && cve.FixedVersion == "" {
					return model.TierProhibited
				}
			}
		}
		if securityScore < 40 {
			return model.TierRestricted
		}
	}

	switch {
	case overall >= 80 && securityScore >= 70:
		if in.SupplyChain != nil && in.SupplyChain.RiskLevel != model.SupplyRiskLow {
			return model.TierConditional
		}
		return model.TierApproved
	case overall >= 60:
		return model.TierConditional
	default:
		return model.TierRestricted
	}
}

func updateUrgency(in Input) model.UpdateUrgency {
	if sc := in.SupplyChain; sc != nil {
		switch {
		case sc.RiskLevel == model.SupplyRiskCritical,
			sc.Lifecycle.InstallsRuntime,
			sc.Lifecycle.AccessesCreds,
			sc.Tarball != nil && len(sc.Tarball.SuspiciousFiles) > 0:
			return model.UrgencyCritical
		case sc.RiskLevel == model.SupplyRiskHigh, sc.RiskLevel == model.SupplyRiskMedium:
			return model.UrgencyHigh
		}
	}

	if in.Facts == nil {
		return model.UrgencyLow
	}

	if hist := in.Facts.Security.CVEs; hist != nil {
		if hist.HasUnpatched {
			return model.UrgencyCritical
		}
		for _, cve := range hist.CVEs {
			if cve.FixedVersion != "" {
				return model.UrgencyHigh
			}
		}
	}

	if in.Facts.Repo.IsArchived || in.Facts.Repo.IsDeprecated {
		return model.UrgencyMedium
	}
	if in.Facts.Commits.CommitsLast6mo == 0 {
		return model.UrgencyMedium
	}
	return model.UrgencyLow
}

func scoreConfidence(in Input) (model.Confidence, []string) {
	if in.Facts == nil {
		return model.ConfidenceLow, []string{"No repository data available"}
	}

	var factors []string
	if in.LLM.Empty() {
		factors = append(factors, "No LLM assessment available")
	}
	if created := in.Facts.Repo.CreatedAt; created != nil {
		if in.now().Sub(*created) < 180*24*time.Hour {
			factors = append(factors, "Very new package (<6 months)")
		}
	}
	if in.Facts.Contributors.TotalContributors < 2 {
		factors = append(factors, "Limited contributor data")
	}
	if in.Facts.Issues.OpenIssues+in.Facts.Issues.ClosedIssues6mo < 5 {
		factors = append(factors, "Limited issue history")
	}

	switch {
	case len(factors) == 0:
		return model.ConfidenceHigh, nil
	case len(factors) <= 2:
		return model.ConfidenceMedium, factors
	default:
		return model.ConfidenceLow, factors
	}
}

func projectAgeBand(in Input) model.AgeBand {
	if in.Facts == nil || in.Facts.Repo.CreatedAt == nil {
		return ""
	}
	ageYears := in.now().Sub(*in.Facts.Repo.CreatedAt).Hours() / 24 / 365
	switch {
	case ageYears < 1:
		return model.AgeNew
	case ageYears < 3:
		return model.AgeEstablished
	case ageYears < 7:
		return model.AgeMature
	default:
		return model.AgeLegacy
	}
}

func scoreToGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, s))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the shared value objects exchanged between the
// registry adapters, fetchers, analyzers, scorer and pipeline. Everything
// here is an immutable record once embedded in a PackageAnalysis.
package model

import (
	"fmt"
	"time"
)

// Ecosystem identifies a package registry.
type Ecosystem string

const (
	EcosystemHomebrew Ecosystem = "homebrew"
	EcosystemNPM      Ecosystem = "npm"
	EcosystemPyPI     Ecosystem = "pypi"
	EcosystemCrates   Ecosystem = "crates"
)

// Platform identifies a source forge.
type Platform string

const (
	PlatformGitHub    Platform = "github"
	PlatformGitLab    Platform = "gitlab"
	PlatformBitbucket Platform = "bitbucket"
	PlatformOther     Platform = "other"
)

// DataAvailability classifies how much evidence an analysis could gather.
// Only AvailabilityAvailable and AvailabilityPartialForge produce scores.
type DataAvailability string

const (
	AvailabilityAvailable    DataAvailability = "available"
	AvailabilityNoRepo       DataAvailability = "no_repo"
	AvailabilityRepoNotFound DataAvailability = "repo_not_found"
	AvailabilityPrivateRepo  DataAvailability = "private_repo"
	AvailabilityNotGitHub    DataAvailability = "not_github"
	AvailabilityPartialForge DataAvailability = "partial_forge"
)

// Scorable reports whether this availability state yields scores.
func (d DataAvailability) Scorable() bool {
	return d == AvailabilityAvailable || d == AvailabilityPartialForge
}

// PackageRef is the stable identity of a package across runs.
type PackageRef struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Name      string    `json:"name"`
}

func (p PackageRef) String() string {
	return fmt.Sprintf("%s/%s", p.Ecosystem, p.Name)
}

// RepoRef points at a source repository on a forge.
type RepoRef struct {
	Platform Platform `json:"platform"`
	Owner    string   `json:"owner"`
	Repo     string   `json:"repo"`
	Subpath  string   `json:"subpath,omitempty"`
}

// URL returns the canonical browse URL for the reference.
func (r RepoRef) URL() string {
	switch r.Platform {
	case PlatformGitHub:
		return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Repo)
	case PlatformGitLab:
		return fmt.Sprintf("https://gitlab.com/%s/%s", r.Owner, r.Repo)
	case PlatformBitbucket:
		return fmt.Sprintf("https://bitbucket.org/%s/%s", r.Owner, r.Repo)
	default:
		return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
	}
}

// PackageMetadata is the ecosystem-normalized registry record.
type PackageMetadata struct {
	Ecosystem     Ecosystem `json:"ecosystem"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Version       string    `json:"version"`
	Homepage      string    `json:"homepage,omitempty"`
	RepositoryURL string    `json:"repository_url,omitempty"`
	License       string    `json:"license,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	Dependencies  []string  `json:"dependencies,omitempty"`

	// npm extensions.
	NPMMaintainers     []string `json:"npm_maintainers,omitempty"`
	NPMMaintainerCount int      `json:"npm_maintainer_count,omitempty"`
	HasTypes           bool     `json:"has_types,omitempty"`
	IsScoped           bool     `json:"is_scoped,omitempty"`

	// PyPI extensions.
	PyPIAuthor         string `json:"pypi_author,omitempty"`
	PyPIAuthorEmail    string `json:"pypi_author_email,omitempty"`
	PyPIRequiresPython string `json:"pypi_requires_python,omitempty"`
}

// InstallStats carries download windows. Estimated marks 90d/365d values
// synthesized from the 30d window by adapters that only expose one window.
type InstallStats struct {
	DownloadsLast30d  *int64 `json:"downloads_last_30d,omitempty"`
	DownloadsLast90d  *int64 `json:"downloads_last_90d,omitempty"`
	DownloadsLast365d *int64 `json:"downloads_last_365d,omitempty"`
	DependentPackages *int64 `json:"dependent_packages,omitempty"`
	Estimated         bool   `json:"estimated,omitempty"`
}

// ============================================================================
// REPOSITORY FACTS
// ============================================================================

// RepoInfo holds the top-level repository record.
// Invariant: PushedAt >= CreatedAt when both are set.
type RepoInfo struct {
	Name           string     `json:"name"`
	FullName       string     `json:"full_name"`
	Description    string     `json:"description,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	PushedAt       *time.Time `json:"pushed_at,omitempty"`
	Stars          int        `json:"stars"`
	Forks          int        `json:"forks"`
	OpenIssues     int        `json:"open_issues"`
	Watchers       int        `json:"watchers"`
	Language       string     `json:"language,omitempty"`
	License        string     `json:"license,omitempty"`
	Topics         []string   `json:"topics,omitempty"`
	DefaultBranch  string     `json:"default_branch,omitempty"`
	IsArchived     bool       `json:"is_archived"`
	IsFork         bool       `json:"is_fork"`
	HasDiscussions bool       `json:"has_discussions"`
	IsDeprecated   bool       `json:"is_deprecated"`
}

// ContributorTrend classifies the half-year-over-half-year change in the
// active contributor count.
type ContributorTrend string

const (
	TrendGrowing   ContributorTrend = "growing"
	TrendStable    ContributorTrend = "stable"
	TrendDeclining ContributorTrend = "declining"
)

// ContributorStats aggregates the contributor distribution.
// ContributionEntropy is the Shannon entropy in bits over contributors with
// at least one contribution; zero means a single contributor.
type ContributorStats struct {
	TotalContributors      int              `json:"total_contributors"`
	ActiveContributors6mo  int              `json:"active_contributors_6mo"`
	PrevActiveContributors int              `json:"prev_active_contributors_6mo"`
	TopContributorPct      float64          `json:"top_contributor_pct"`
	ContributorsWith5Pct   int              `json:"contributors_with_5pct"`
	GrowthTrend            ContributorTrend `json:"contributor_growth_trend"`
	FirstTimeContributors  int              `json:"first_time_contributors_6mo"`
	ContributionEntropy    float64          `json:"contribution_entropy"`
}

// CommitActivity summarizes the commit stream.
type CommitActivity struct {
	LastCommitAt     *time.Time `json:"last_commit_at,omitempty"`
	CommitsLast6mo   int        `json:"commits_last_6mo"`
	CommitsLastYear  int        `json:"commits_last_year"`
	SignedCommitsPct float64    `json:"signed_commits_pct"`
}

// IssueStats summarizes issue health.
type IssueStats struct {
	OpenIssues       int      `json:"open_issues"`
	ClosedIssues6mo  int      `json:"closed_issues_6mo"`
	AvgResponseHours *float64 `json:"avg_response_hours,omitempty"`
	AvgCloseHours    *float64 `json:"avg_close_hours,omitempty"`
	CloseRatePct     *float64 `json:"close_rate_pct,omitempty"`
	GoodFirstIssues  int      `json:"good_first_issues"`
	RegressionIssues int      `json:"regression_issues"`
}

// PRStats summarizes pull request health.
type PRStats struct {
	OpenPRs      int `json:"open_prs"`
	MergedPRs6mo int `json:"merged_prs_6mo"`
	StalePRs     int `json:"stale_prs"`
}

// ReleaseStats summarizes release cadence. ReleaseDates maps tag name to
// publish time and feeds CVE patch-time lookup.
type ReleaseStats struct {
	TotalReleases    int                  `json:"total_releases"`
	ReleasesLastYear int                  `json:"releases_last_year"`
	LatestVersion    string               `json:"latest_version,omitempty"`
	LatestReleaseAt  *time.Time           `json:"latest_release_at,omitempty"`
	PrereleaseRatio  float64              `json:"prerelease_ratio"`
	ReleaseDates     map[string]time.Time `json:"release_dates,omitempty"`
}

// Severity ranks a vulnerability.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Rank orders severities, most severe first (CRITICAL=0 .. UNKNOWN=4).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// CVEDetail is a single vulnerability record.
type CVEDetail struct {
	ID             string     `json:"id"`
	Summary        string     `json:"summary,omitempty"`
	Severity       Severity   `json:"severity"`
	CVSS           *float64   `json:"cvss,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FixedVersion   string     `json:"fixed_version,omitempty"`
	PatchReleaseAt *time.Time `json:"patch_release_at,omitempty"`
	DaysToPatch    *float64   `json:"days_to_patch,omitempty"`
	References     []string   `json:"references,omitempty"`
}

// CVEHistory is the vulnerability history of a package.
// Invariant: HasUnpatched iff some CVE has no FixedVersion.
type CVEHistory struct {
	CVEs           []CVEDetail `json:"cves"`
	Total          int         `json:"total"`
	AvgDaysToPatch *float64    `json:"avg_days_to_patch,omitempty"`
	HasUnpatched   bool        `json:"has_unpatched"`
}

// SecurityFacts collects repository security signals.
type SecurityFacts struct {
	HasSecurityMD bool        `json:"has_security_md"`
	HasDependabot bool        `json:"has_dependabot"`
	HasCodeQL     bool        `json:"has_codeql"`
	HasSnyk       bool        `json:"has_snyk"`
	HasRenovate   bool        `json:"has_renovate"`
	HasTrivy      bool        `json:"has_trivy"`
	HasSemgrep    bool        `json:"has_semgrep"`
	HasSecurityCI bool        `json:"has_security_ci"`
	UsesSigstore  bool        `json:"uses_sigstore"`
	GeneratesSBOM bool        `json:"generates_sbom"`
	SLSALevel     int         `json:"slsa_level,omitempty"`
	CVEs          *CVEHistory `json:"cve_history,omitempty"`
}

// ToolCount returns how many distinct security tools are in use.
func (s SecurityFacts) ToolCount() int {
	n := 0
	for _, on := range []bool{
		s.HasDependabot, s.HasCodeQL, s.HasSnyk,
		s.HasRenovate, s.HasTrivy, s.HasSemgrep, s.HasSecurityCI,
	} {
		if on {
			n++
		}
	}
	return n
}

// RepoFiles records hygiene-file presence.
type RepoFiles struct {
	HasReadme         bool `json:"has_readme"`
	ReadmeSize        int  `json:"readme_size"`
	HasLicense        bool `json:"has_license"`
	HasChangelog      bool `json:"has_changelog"`
	HasContributing   bool `json:"has_contributing"`
	HasCodeOfConduct  bool `json:"has_code_of_conduct"`
	HasDocsDir        bool `json:"has_docs_dir"`
	HasExamplesDir    bool `json:"has_examples_dir"`
	HasTestsDir       bool `json:"has_tests_dir"`
	HasCodeowners     bool `json:"has_codeowners"`
	HasGovernance     bool `json:"has_governance"`
	HasIssueTemplates bool `json:"has_issue_templates"`
	HasPRTemplate     bool `json:"has_pr_template"`
}

// CIStatus describes continuous integration depth.
type CIStatus struct {
	HasGitHubActions    bool     `json:"has_github_actions"`
	WorkflowCount       int      `json:"workflow_count"`
	HasTestWorkflow     bool     `json:"has_test_workflow"`
	HasLintWorkflow     bool     `json:"has_lint_workflow"`
	HasSecurityWorkflow bool     `json:"has_security_workflow"`
	HasReleaseWorkflow  bool     `json:"has_release_workflow"`
	MultiPlatform       bool     `json:"multi_platform"`
	RecentRunsPassRate  *float64 `json:"recent_runs_pass_rate,omitempty"`
}

// RepoFacts is the composite repository-host record. Any sub-record may be
// default-valued when its fetch failed transiently.
type RepoFacts struct {
	Repo         RepoInfo         `json:"repo"`
	Contributors ContributorStats `json:"contributors"`
	Commits      CommitActivity   `json:"commits"`
	Issues       IssueStats       `json:"issues"`
	PRs          PRStats          `json:"prs"`
	Releases     ReleaseStats     `json:"releases"`
	Security     SecurityFacts    `json:"security"`
	Files        RepoFiles        `json:"files"`
	CI           CIStatus         `json:"ci"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// ============================================================================
// SUPPLY CHAIN
// ============================================================================

// PatternSeverity grades a heuristic pattern match.
type PatternSeverity string

const (
	PatternCritical PatternSeverity = "critical"
	PatternHigh     PatternSeverity = "high"
	PatternMedium   PatternSeverity = "medium"
	PatternLow      PatternSeverity = "low"
)

// PatternMatch is one heuristic hit in a script or tarball file.
type PatternMatch struct {
	Type        string          `json:"type"`
	Severity    PatternSeverity `json:"severity"`
	Description string          `json:"description"`
	File        string          `json:"file,omitempty"`
}

// LifecycleScriptRisk is the result of manifest lifecycle-script inspection.
type LifecycleScriptRisk struct {
	HasPreinstall     bool              `json:"has_preinstall"`
	HasInstall        bool              `json:"has_install"`
	HasPostinstall    bool              `json:"has_postinstall"`
	HasPreuninstall   bool              `json:"has_preuninstall"`
	HasPostuninstall  bool              `json:"has_postuninstall"`
	HasPrepare        bool              `json:"has_prepare"`
	HasPrepublish     bool              `json:"has_prepublish"`
	Scripts           map[string]string `json:"scripts,omitempty"`
	Patterns          []PatternMatch    `json:"suspicious_patterns,omitempty"`
	MakesNetworkCalls bool              `json:"makes_network_calls"`
	PipesToShell      bool              `json:"pipes_to_shell"`
	ExecutesFiles     bool              `json:"executes_files"`
	ReferencesEnv     bool              `json:"references_env"`
	ContainsURL       bool              `json:"contains_url"`
	DecodesBase64     bool              `json:"decodes_base64"`
	InstallsRuntime   bool              `json:"installs_runtime"`
	AccessesCreds     bool              `json:"accesses_credentials"`
	SpawnsProcesses   bool              `json:"spawns_processes"`
	Obfuscated        bool              `json:"contains_obfuscation"`
	RiskScore         float64           `json:"risk_score"`
}

// TarballFile is one member of a published archive.
type TarballFile struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Executable bool   `json:"executable"`
	Binary     bool   `json:"binary"`
}

// TarballAnalysis is the result of archive inspection.
type TarballAnalysis struct {
	TotalFiles      int            `json:"total_files"`
	TotalSize       int64          `json:"total_size"`
	Files           []TarballFile  `json:"files,omitempty"`
	SuspiciousFiles []string       `json:"suspicious_files,omitempty"`
	FilesNotInRepo  []string       `json:"files_not_in_repo,omitempty"`
	NotInRepoCount  int            `json:"not_in_repo_count"`
	HasNativeCode   bool           `json:"has_native_code"`
	MinifiedFiles   int            `json:"minified_files"`
	Patterns        []PatternMatch `json:"patterns,omitempty"`
	RiskScore       float64        `json:"risk_score"`
}

// VersionDiff compares the current manifest with the previous release.
type VersionDiff struct {
	PreviousVersion string            `json:"previous_version"`
	CurrentVersion  string            `json:"current_version"`
	BumpType        string            `json:"bump_type"`
	SuspiciousJump  bool              `json:"suspicious_jump"`
	AddedScripts    map[string]string `json:"added_scripts,omitempty"`
	RemovedScripts  []string          `json:"removed_scripts,omitempty"`
	ChangedScripts  []string          `json:"changed_scripts,omitempty"`
	AddedDeps       []string          `json:"added_dependencies,omitempty"`
	RemovedDeps     []string          `json:"removed_dependencies,omitempty"`
	RiskScore       float64           `json:"risk_score"`
}

// PublishingInfo describes who published the analyzed version.
type PublishingInfo struct {
	Maintainers           []string `json:"maintainers,omitempty"`
	MaintainerCount       int      `json:"maintainer_count"`
	Publisher             string   `json:"publisher,omitempty"`
	PublisherIsMaintainer bool     `json:"publisher_is_maintainer"`
	HasProvenance         bool     `json:"has_provenance"`
	ProvenanceVerified    bool     `json:"provenance_verified"`
	RiskScore             float64  `json:"risk_score"`
}

// SupplyChainRiskLevel bands the overall supply-chain score.
type SupplyChainRiskLevel string

const (
	SupplyRiskLow      SupplyChainRiskLevel = "low"
	SupplyRiskMedium   SupplyChainRiskLevel = "medium"
	SupplyRiskHigh     SupplyChainRiskLevel = "high"
	SupplyRiskCritical SupplyChainRiskLevel = "critical"
)

// SupplyChainData aggregates the four supply-chain sub-analyses.
// Invariant: RiskLevel matches the OverallRiskScore bands
// (>=75 critical, >=50 high, >=25 medium, else low).
type SupplyChainData struct {
	Lifecycle        LifecycleScriptRisk  `json:"lifecycle"`
	Tarball          *TarballAnalysis     `json:"tarball,omitempty"`
	VersionDiff      *VersionDiff         `json:"version_diff,omitempty"`
	Publishing       PublishingInfo       `json:"publishing"`
	OverallScore     float64              `json:"overall_risk_score"`
	RiskLevel        SupplyChainRiskLevel `json:"risk_level"`
	AllPatterns      []PatternMatch       `json:"all_suspicious_patterns,omitempty"`
	CriticalFindings []string             `json:"critical_findings,omitempty"`
	BehavioralFlags  []string             `json:"behavioral_flags,omitempty"`
}

// HasFlag reports whether a behavioral flag was tripped.
func (s *SupplyChainData) HasFlag(flag string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.BehavioralFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Behavioral flag names.
const (
	FlagInstallsRuntime     = "installs_alternative_runtime"
	FlagAccessesCreds       = "accesses_credentials"
	FlagMakesNetworkCalls   = "makes_network_calls"
	FlagContainsObfuscation = "contains_obfuscation"
)

// ============================================================================
// AGGREGATOR
// ============================================================================

// ScorecardCheck is one OpenSSF Scorecard check result.
type ScorecardCheck struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Scorecard is the OpenSSF Scorecard summary for a project.
type Scorecard struct {
	OverallScore   float64          `json:"overall_score"`
	Checks         []ScorecardCheck `json:"checks,omitempty"`
	FuzzingEnabled bool             `json:"fuzzing_enabled"`
	SASTEnabled    bool             `json:"sast_enabled"`
	CIIBadge       bool             `json:"cii_badge"`
}

// BasicProjectMetrics carries cross-forge project metrics when Scorecard is
// unavailable (non-GitHub forges).
type BasicProjectMetrics struct {
	Stars      int    `json:"stars"`
	Forks      int    `json:"forks"`
	OpenIssues int    `json:"open_issues"`
	License    string `json:"license,omitempty"`
	OSSFuzz    bool   `json:"oss_fuzz"`
}

// DependencyGraphSummary summarizes the resolved dependency graph.
// Invariant: MaxDepth == 0 iff the package has no dependencies;
// DirectCount + TransitiveCount equals the node count minus the root.
type DependencyGraphSummary struct {
	DirectCount          int `json:"direct_count"`
	TransitiveCount      int `json:"transitive_count"`
	VulnerableDirect     int `json:"vulnerable_direct"`
	VulnerableTransitive int `json:"vulnerable_transitive"`
	MaxDepth             int `json:"max_depth"`
}

// AggregatorData bundles the three aggregator sub-queries.
type AggregatorData struct {
	Scorecard       *Scorecard              `json:"scorecard,omitempty"`
	ProjectMetrics  *BasicProjectMetrics    `json:"project_metrics,omitempty"`
	Dependencies    *DependencyGraphSummary `json:"dependencies,omitempty"`
	SLSAAttestation bool                    `json:"slsa_attestation"`
	SLSALevel       int                     `json:"slsa_level,omitempty"`
}

// ============================================================================
// LLM ASSESSMENTS
// ============================================================================

// ReadmeAssessment scores documentation quality, each dimension 1-10.
type ReadmeAssessment struct {
	Clarity         int    `json:"clarity"`
	Installation    int    `json:"installation"`
	QuickStart      int    `json:"quick_start"`
	Examples        int    `json:"examples"`
	Configuration   int    `json:"configuration"`
	Troubleshooting int    `json:"troubleshooting"`
	Overall         int    `json:"overall"`
	Summary         string `json:"summary"`
	TopIssue        string `json:"top_issue,omitempty"`
}

// SecurityAssessment reports qualitative code security findings.
type SecurityAssessment struct {
	OverallScore         int              `json:"overall_score"`
	InjectionRisks       []map[string]any `json:"injection_risks,omitempty"`
	InputValidationScore int              `json:"input_validation_score"`
	SecretsFound         []map[string]any `json:"secrets_found,omitempty"`
	CriticalFindings     []string         `json:"critical_findings,omitempty"`
	Summary              string           `json:"summary"`
}

// SentimentAssessment reports community health from recent issues.
type SentimentAssessment struct {
	Sentiment                string   `json:"sentiment"`
	FrustrationLevel         int      `json:"frustration_level"`
	MaintainerResponsiveness string   `json:"maintainer_responsiveness"`
	CommonComplaints         []string `json:"common_complaints,omitempty"`
	PraiseThemes             []string `json:"praise_themes,omitempty"`
	AbandonmentSignals       bool     `json:"abandonment_signals"`
	Summary                  string   `json:"summary"`
}

// CommunicationAssessment grades maintainer communication quality.
type CommunicationAssessment struct {
	Helpfulness        int      `json:"helpfulness"`
	Clarity            int      `json:"clarity"`
	Patience           int      `json:"patience"`
	TechnicalDepth     int      `json:"technical_depth"`
	Welcomingness      int      `json:"welcomingness"`
	CommunicationStyle string   `json:"communication_style"`
	RedFlags           []string `json:"red_flags,omitempty"`
	Summary            string   `json:"summary"`
}

// MaintenanceAssessment classifies maintenance status from activity data.
type MaintenanceAssessment struct {
	Status          string   `json:"status"`
	Confidence      int      `json:"confidence"`
	Concerns        []string `json:"concerns,omitempty"`
	PositiveSignals []string `json:"positive_signals,omitempty"`
	Summary         string   `json:"summary"`
}

// ChangelogAssessment grades changelog quality.
type ChangelogAssessment struct {
	BreakingChangesMarked bool   `json:"breaking_changes_marked"`
	HasMigrationGuides    bool   `json:"has_migration_guides"`
	WellCategorized       bool   `json:"well_categorized"`
	AppearsComplete       bool   `json:"appears_complete"`
	ClarityScore          int    `json:"clarity_score"`
	OverallScore          int    `json:"overall_score"`
	Summary               string `json:"summary"`
}

// GovernanceAssessment reports project governance indicators.
type GovernanceAssessment struct {
	HasSuccessionPlan            bool   `json:"has_succession_plan"`
	DecisionProcessDocumented    bool   `json:"decision_process_documented"`
	ContributorLadderExists      bool   `json:"contributor_ladder_exists"`
	IndicatesMultipleMaintainers bool   `json:"indicates_multiple_maintainers"`
	BusFactorRisk                string `json:"bus_factor_risk"`
	Summary                      string `json:"summary"`
}

// LLMAssessments bundles all optional qualitative assessments.
type LLMAssessments struct {
	Readme        *ReadmeAssessment        `json:"readme,omitempty"`
	Security      *SecurityAssessment      `json:"security,omitempty"`
	Sentiment     *SentimentAssessment     `json:"sentiment,omitempty"`
	Communication *CommunicationAssessment `json:"communication,omitempty"`
	Maintenance   *MaintenanceAssessment   `json:"maintenance,omitempty"`
	Changelog     *ChangelogAssessment     `json:"changelog,omitempty"`
	Governance    *GovernanceAssessment    `json:"governance,omitempty"`
	Model         string                   `json:"model,omitempty"`
	GeneratedAt   *time.Time               `json:"generated_at,omitempty"`
}

// Empty reports whether no assessment succeeded.
func (a *LLMAssessments) Empty() bool {
	if a == nil {
		return true
	}
	return a.Readme == nil && a.Security == nil && a.Sentiment == nil &&
		a.Communication == nil && a.Maintenance == nil &&
		a.Changelog == nil && a.Governance == nil
}

// ============================================================================
// SCORES
// ============================================================================

// RiskTier is the policy classification of a package.
type RiskTier string

const (
	TierApproved    RiskTier = "approved"
	TierConditional RiskTier = "conditional"
	TierRestricted  RiskTier = "restricted"
	TierProhibited  RiskTier = "prohibited"
)

// UpdateUrgency tells consumers how quickly to act on a newer version.
type UpdateUrgency string

const (
	UrgencyCritical UpdateUrgency = "critical"
	UrgencyHigh     UpdateUrgency = "high"
	UrgencyMedium   UpdateUrgency = "medium"
	UrgencyLow      UpdateUrgency = "low"
)

// Confidence grades how much evidence backed the score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AgeBand buckets project age.
type AgeBand string

const (
	AgeNew         AgeBand = "new"
	AgeEstablished AgeBand = "established"
	AgeMature      AgeBand = "mature"
	AgeLegacy      AgeBand = "legacy"
)

// ScoreComponent is one weighted category. Weight is an integer percent;
// the six component weights sum to 100.
type ScoreComponent struct {
	Score   float64  `json:"score"`
	Weight  int      `json:"weight"`
	Details []string `json:"details,omitempty"`
}

// Scores is the full scoring output for a package.
type Scores struct {
	Overall           float64       `json:"overall"`
	Grade             string        `json:"grade"`
	Percentile        *float64      `json:"percentile,omitempty"`
	RiskTier          RiskTier      `json:"risk_tier"`
	UpdateUrgency     UpdateUrgency `json:"update_urgency"`
	Confidence        Confidence    `json:"confidence"`
	ConfidenceFactors []string      `json:"confidence_factors,omitempty"`
	ProjectAgeBand    AgeBand       `json:"project_age_band"`

	Security      ScoreComponent `json:"security"`
	Maintenance   ScoreComponent `json:"maintenance"`
	Community     ScoreComponent `json:"community"`
	BusFactor     ScoreComponent `json:"bus_factor"`
	Documentation ScoreComponent `json:"documentation"`
	Stability     ScoreComponent `json:"stability"`
}

// ============================================================================
// ANALYSIS ARTIFACT
// ============================================================================

// AnalysisSummary is the human-readable digest attached to an artifact.
// Concerns are ordered by severity; supply-chain critical findings are
// always placed first.
type AnalysisSummary struct {
	MaintenanceStatus  string               `json:"maintenance_status,omitempty"`
	SecuritySummary    string               `json:"security_summary,omitempty"`
	DocSummary         string               `json:"doc_summary,omitempty"`
	CommunitySentiment string               `json:"community_sentiment,omitempty"`
	CommunicationStyle string               `json:"communication_style,omitempty"`
	SupplyChainRisk    SupplyChainRiskLevel `json:"supply_chain_risk,omitempty"`
	ScorecardScore     *float64             `json:"scorecard_score,omitempty"`
	DependencyCount    *int                 `json:"dependency_count,omitempty"`
	Highlights         []string             `json:"highlights,omitempty"`
	Concerns           []string             `json:"concerns,omitempty"`
	ForgeMetrics       *BasicProjectMetrics `json:"forge_metrics,omitempty"`
	UnavailableReason  string               `json:"unavailable_reason,omitempty"`
}

// PackageAnalysis is the persisted per-package artifact
// (<data>/analyzed/<ecosystem>/<name>.json).
type PackageAnalysis struct {
	Ecosystem         Ecosystem        `json:"ecosystem"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Version           string           `json:"version,omitempty"`
	Homepage          string           `json:"homepage,omitempty"`
	Repository        *RepoRef         `json:"repository,omitempty"`
	InstallCount30d   *int64           `json:"install_count_30d,omitempty"`
	DataAvailability  DataAvailability `json:"data_availability"`
	UnavailableReason string           `json:"unavailable_reason,omitempty"`
	Scores            *Scores          `json:"scores,omitempty"`
	GitHubData        *RepoFacts       `json:"github_data,omitempty"`
	LLMAssessments    *LLMAssessments  `json:"llm_assessments,omitempty"`
	SupplyChain       *SupplyChainData `json:"supply_chain,omitempty"`
	AggregatorData    *AggregatorData  `json:"aggregator_data,omitempty"`
	AnalysisSummary   *AnalysisSummary `json:"analysis_summary,omitempty"`
	RunID             string           `json:"run_id,omitempty"`
	AnalyzedAt        time.Time        `json:"analyzed_at"`
	DataFetchedAt     time.Time        `json:"data_fetched_at"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

const readmePromptTmpl = `Analyze this README for a software package. Score each dimension 1-10:

1. CLARITY: Can a new user understand what this package does within 30 seconds?
2. INSTALLATION: Are installation instructions clear and complete?
3. QUICK_START: Is there a quick example showing basic usage?
4. EXAMPLES: Are there enough examples for common use cases?
5. CONFIGURATION: If configurable, is configuration documented?
6. TROUBLESHOOTING: Are common problems and solutions documented?

Package ecosystem: %s
Package name: %s
README content:
%s

Respond in JSON only:
{
  "clarity": <1-10>,
  "installation": <1-10>,
  "quick_start": <1-10>,
  "examples": <1-10>,
  "configuration": <1-10>,
  "troubleshooting": <1-10>,
  "overall": <1-10>,
  "summary": "<one sentence summary of doc quality>",
  "top_issue": "<biggest documentation problem, or null if none>"
}`

// AssessReadme scores documentation quality with the primary model.
func (o *Orchestrator) AssessReadme(ctx context.Context, readme, name string, eco model.Ecosystem) (*model.ReadmeAssessment, error) {
	prompt := fmt.Sprintf(readmePromptTmpl, eco, name, clip(readme, 8000))
	resp, err := o.backend.Generate(ctx, o.model, prompt)
	if err != nil {
		return nil, err
	}
	a := model.ReadmeAssessment{
		Clarity: 5, Installation: 5, QuickStart: 5, Examples: 5,
		Configuration: 5, Troubleshooting: 5, Overall: 5,
	}
	if err := extractJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

const securityPromptTmpl = `Analyze this code sample for security concerns. This is from the %s package "%s".

Focus on:
1. INJECTION_RISKS: eval(), exec(), shell commands with user input, SQL string concatenation, template injection
2. INPUT_VALIDATION: Are external inputs validated/sanitized before use?
3. SECRETS_HANDLING: Hardcoded credentials, API keys, tokens, passwords?
4. ERROR_EXPOSURE: Do error handlers expose stack traces, file paths, or internal details?
5. DANGEROUS_DEFAULTS: Insecure default configurations (e.g., disabled SSL verification)?

Code files:
%s

Respond in JSON only:
{
  "injection_risks": [{"file": "...", "line": <n>, "severity": "high|medium|low", "description": "..."}],
  "input_validation_score": <1-10>,
  "input_validation_issues": ["..."],
  "secrets_found": [{"file": "...", "line": <n>, "type": "..."}],
  "error_exposure_score": <1-10>,
  "dangerous_defaults": ["..."],
  "overall_security_score": <1-10>,
  "critical_findings": ["..."],
  "summary": "<one sentence security assessment>"
}`

// AssessSecurity reviews sampled source files with the primary model.
func (o *Orchestrator) AssessSecurity(ctx context.Context, codeSamples, name string, eco model.Ecosystem) (*model.SecurityAssessment, error) {
	prompt := fmt.Sprintf(securityPromptTmpl, eco, name, clip(codeSamples, 10000))
	resp, err := o.backend.Generate(ctx, o.model, prompt)
	if err != nil {
		return nil, err
	}
	wire := struct {
		OverallSecurityScore int              `json:"overall_security_score"`
		InjectionRisks       []map[string]any `json:"injection_risks"`
		InputValidationScore int              `json:"input_validation_score"`
		SecretsFound         []map[string]any `json:"secrets_found"`
		CriticalFindings     []string         `json:"critical_findings"`
		Summary              string           `json:"summary"`
	}{OverallSecurityScore: 5, InputValidationScore: 5}
	if err := extractJSON(resp, &wire); err != nil {
		return nil, err
	}
	return &model.SecurityAssessment{
		OverallScore:         wire.OverallSecurityScore,
		InjectionRisks:       wire.InjectionRisks,
		InputValidationScore: wire.InputValidationScore,
		SecretsFound:         wire.SecretsFound,
		CriticalFindings:     wire.CriticalFindings,
		Summary:              wire.Summary,
	}, nil
}

const sentimentPromptTmpl = `Analyze these recent GitHub issues for a software project. Assess overall community health.

Package: %s (%s)
Issues:
%s

Respond in JSON only:
{
  "sentiment": "<positive|neutral|negative|mixed>",
  "frustration_level": <1-10>,
  "maintainer_responsiveness": "<active|moderate|slow|unresponsive>",
  "common_complaints": ["<issue1>", "<issue2>"],
  "praise_themes": ["<theme1>", "<theme2>"],
  "abandonment_signals": <true|false>,
  "summary": "<one sentence community health summary>"
}`

// AssessSentiment reads recent issues with the fast model.
func (o *Orchestrator) AssessSentiment(ctx context.Context, issues []forge.IssueSummary, name string, eco model.Ecosystem) (*model.SentimentAssessment, error) {
	if len(issues) > 20 {
		issues = issues[:20]
	}
	issuesJSON, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal issues: %w", err)
	}
	prompt := fmt.Sprintf(sentimentPromptTmpl, name, eco, clip(string(issuesJSON), 8000))
	resp, err := o.backend.Generate(ctx, o.fastModel, prompt)
	if err != nil {
		return nil, err
	}
	a := model.SentimentAssessment{
		Sentiment:                "neutral",
		FrustrationLevel:         5,
		MaintainerResponsiveness: "moderate",
	}
	if err := extractJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

const communicationPromptTmpl = `Analyze these maintainer responses in GitHub issues and pull requests.

Package: %s (%s)
Maintainer comments:
%s

Assess:
1. HELPFULNESS: Do responses actually help resolve issues?
2. CLARITY: Are explanations clear to users of varying skill levels?
3. PATIENCE: How are repeated or basic questions handled?
4. TECHNICAL_DEPTH: Do they explain the "why" behind decisions?
5. WELCOMINGNESS: Are new contributors encouraged?

Respond in JSON only:
{
  "helpfulness": <1-10>,
  "clarity": <1-10>,
  "patience": <1-10>,
  "technical_depth": <1-10>,
  "welcomingness": <1-10>,
  "communication_style": "<exemplary|good|adequate|poor|hostile>",
  "red_flags": ["..."],
  "summary": "<one sentence assessment>"
}`

// AssessCommunication grades maintainer comments with the fast model.
func (o *Orchestrator) AssessCommunication(ctx context.Context, comments []string, name string, eco model.Ecosystem) (*model.CommunicationAssessment, error) {
	if len(comments) > 30 {
		comments = comments[:30]
	}
	prompt := fmt.Sprintf(communicationPromptTmpl, name, eco, clip(strings.Join(comments, "\n---\n"), 8000))
	resp, err := o.backend.Generate(ctx, o.fastModel, prompt)
	if err != nil {
		return nil, err
	}
	a := model.CommunicationAssessment{
		Helpfulness: 5, Clarity: 5, Patience: 5, TechnicalDepth: 5,
		Welcomingness: 5, CommunicationStyle: "adequate",
	}
	if err := extractJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

const maintenancePromptTmpl = `Based on this GitHub activity data, assess the maintenance status:

Package: %s (%s)
Last commit: %s
Commits past 6 months: %d
Open issues: %d
Closed issues past 6 months: %d
Open PRs: %d
Merged PRs past 6 months: %d
Last release: %s
Contributors active past 6 months: %d

Respond in JSON only:
{
  "status": "<actively-maintained|maintained|minimal-maintenance|stale|abandoned>",
  "confidence": <1-10>,
  "concerns": ["<concern1>", "<concern2>"],
  "positive_signals": ["<signal1>", "<signal2>"],
  "summary": "<one sentence maintenance assessment>"
}`

// AssessMaintenance classifies maintenance from activity counters with
// the fast model.
func (o *Orchestrator) AssessMaintenance(ctx context.Context, facts *model.RepoFacts, name string, eco model.Ecosystem) (*model.MaintenanceAssessment, error) {
	lastCommit := "unknown"
	if facts.Commits.LastCommitAt != nil {
		lastCommit = facts.Commits.LastCommitAt.Format(time.RFC3339)
	}
	lastRelease := "unknown"
	if facts.Releases.LatestReleaseAt != nil {
		lastRelease = facts.Releases.LatestReleaseAt.Format(time.RFC3339)
	}
	prompt := fmt.Sprintf(maintenancePromptTmpl,
		name, eco,
		lastCommit,
		facts.Commits.CommitsLast6mo,
		facts.Issues.OpenIssues,
		facts.Issues.ClosedIssues6mo,
		facts.PRs.OpenPRs,
		facts.PRs.MergedPRs6mo,
		lastRelease,
		facts.Contributors.ActiveContributors6mo,
	)
	resp, err := o.backend.Generate(ctx, o.fastModel, prompt)
	if err != nil {
		return nil, err
	}
	a := model.MaintenanceAssessment{Status: "maintained", Confidence: 5}
	if err := extractJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

const changelogPromptTmpl = `Analyze this changelog for the %s package "%s".

Assess:
1. BREAKING_CHANGES: Are breaking changes clearly marked?
2. MIGRATION_GUIDES: Are upgrade paths explained?
3. CATEGORIZATION: Are changes grouped (features, fixes, etc.)?
4. COMPLETENESS: Does it appear comprehensive?
5. CLARITY: Is it understandable to users?

CHANGELOG content (most recent entries):
%s

Respond in JSON only:
{
  "breaking_changes_marked": <true|false>,
  "has_migration_guides": <true|false>,
  "well_categorized": <true|false>,
  "appears_complete": <true|false>,
  "clarity_score": <1-10>,
  "overall_score": <1-10>,
  "summary": "<one sentence assessment>"
}`

// AssessChangelog grades the changelog with the fast model.
func (o *Orchestrator) AssessChangelog(ctx context.Context, changelog, name string, eco model.Ecosystem) (*model.ChangelogAssessment, error) {
	prompt := fmt.Sprintf(changelogPromptTmpl, eco, name, clip(changelog, 6000))
	resp, err := o.backend.Generate(ctx, o.fastModel, prompt)
	if err != nil {
		return nil, err
	}
	a := model.ChangelogAssessment{ClarityScore: 5, OverallScore: 5}
	if err := extractJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

const governancePromptTmpl = `Analyze the governance documentation for the %s package "%s".

Documents provided:
%s

Assess:
1. SUCCESSION: Is there a plan if primary maintainer leaves?
2. DECISION_MAKING: Is the decision process documented?
3. CONTRIBUTOR_PATH: Is there a path from contributor to maintainer?
4. MULTIPLE_MAINTAINERS: Does it indicate multiple people with merge rights?

Respond in JSON only:
{
  "has_succession_plan": <true|false>,
  "decision_process_documented": <true|false>,
  "contributor_ladder_exists": <true|false>,
  "indicates_multiple_maintainers": <true|false>,
  "bus_factor_risk": "<low|medium|high>",
  "summary": "<one sentence assessment>"
}`

// AssessGovernance reads governance docs with the fast model.
func (o *Orchestrator) AssessGovernance(ctx context.Context, docs, name string, eco model.Ecosystem) (*model.GovernanceAssessment, error) {
	prompt := fmt.Sprintf(governancePromptTmpl, eco, name, clip(docs, 6000))
	resp, err := o.backend.Generate(ctx, o.fastModel, prompt)
	if err != nil {
		return nil, err
	}
	a := model.GovernanceAssessment{BusFactorRisk: "unknown"}
	if err := extractJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

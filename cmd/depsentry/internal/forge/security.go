// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forge

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// ghContent is a contents-API entry; for single files Content carries
// base64-encoded bytes.
type ghContent struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

func decodeContent(c *ghContent) string {
	if c == nil || c.Content == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(c.Content, "\n", ""))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// fileExists probes a contents path; 404 means absent.
func (f *Fetcher) fileExists(ctx context.Context, owner, repo, path string) bool {
	var c ghContent
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/"+path, nil, &c)
	return err == nil && found
}

var renovateConfigPaths = []string{
	".github/renovate.json",
	".github/renovate.json5",
	"renovate.json",
	"renovate.json5",
	".renovaterc",
	".renovaterc.json",
}

// fetchSecurityFacts probes the security posture: policy files,
// dependency-update bots, scanning workflows, signing, and SBOM or
// SLSA generation.
func (f *Fetcher) fetchSecurityFacts(ctx context.Context, owner, repo string) (*model.SecurityFacts, error) {
	sec := &model.SecurityFacts{}

	sec.HasSecurityMD = f.fileExists(ctx, owner, repo, "SECURITY.md")

	sec.HasDependabot = f.fileExists(ctx, owner, repo, ".github/dependabot.yml") ||
		f.fileExists(ctx, owner, repo, ".github/dependabot.yaml")

	for _, path := range renovateConfigPaths {
		if f.fileExists(ctx, owner, repo, path) {
			sec.HasRenovate = true
			break
		}
	}
	sec.HasSecurityCI = sec.HasDependabot || sec.HasRenovate

	var workflows []ghContent
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/.github/workflows", nil, &workflows)
	if err != nil {
		return nil, err
	}
	if found {
		for _, wf := range workflows {
			name := strings.ToLower(wf.Name)
			switch {
			case strings.Contains(name, "codeql"):
				sec.HasCodeQL = true
				sec.HasSecurityCI = true
			case strings.Contains(name, "snyk"):
				sec.HasSnyk = true
				sec.HasSecurityCI = true
			case strings.Contains(name, "trivy"):
				sec.HasTrivy = true
				sec.HasSecurityCI = true
			case strings.Contains(name, "semgrep"):
				sec.HasSemgrep = true
				sec.HasSecurityCI = true
			case strings.Contains(name, "security"), strings.Contains(name, "slsa"):
				sec.HasSecurityCI = true
			}
			if strings.Contains(name, "sigstore") || strings.Contains(name, "cosign") {
				sec.UsesSigstore = true
			}
			if strings.Contains(name, "sbom") || strings.Contains(name, "cyclonedx") || strings.Contains(name, "spdx") {
				sec.GeneratesSBOM = true
			}

			if wf.Type != "file" {
				continue
			}
			var full ghContent
			found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/.github/workflows/"+wf.Name, nil, &full)
			if err != nil || !found {
				continue
			}
			content := strings.ToLower(decodeContent(&full))
			if content == "" {
				continue
			}
			inspectWorkflowContent(content, sec)
		}
	}

	return sec, nil
}

// inspectWorkflowContent refines tool detection from the workflow body.
func inspectWorkflowContent(content string, sec *model.SecurityFacts) {
	if strings.Contains(content, "github/codeql-action") {
		sec.HasCodeQL = true
		sec.HasSecurityCI = true
	}
	if strings.Contains(content, "snyk/actions") || strings.Contains(content, "snyk-") {
		sec.HasSnyk = true
		sec.HasSecurityCI = true
	}
	if strings.Contains(content, "aquasecurity/trivy") || strings.Contains(content, "trivy-action") {
		sec.HasTrivy = true
		sec.HasSecurityCI = true
	}
	if strings.Contains(content, "semgrep") {
		sec.HasSemgrep = true
		sec.HasSecurityCI = true
	}
	if strings.Contains(content, "sigstore/cosign") || strings.Contains(content, "cosign-installer") {
		sec.UsesSigstore = true
	}
	if strings.Contains(content, "anchore/sbom-action") ||
		strings.Contains(content, "cyclonedx") || strings.Contains(content, "spdx") {
		sec.GeneratesSBOM = true
	}
	if strings.Contains(content, "slsa-framework") || strings.Contains(content, "slsa-github-generator") {
		switch {
		case strings.Contains(content, "slsa-builder-go") || strings.Contains(content, "slsa-verifier"):
			sec.SLSALevel = 3
		case strings.Contains(content, "provenance"):
			sec.SLSALevel = 2
		default:
			sec.SLSALevel = 1
		}
	}
}

// ============================================================================
// REPOSITORY FILES
// ============================================================================

func (f *Fetcher) fetchRepoFiles(ctx context.Context, owner, repo string) (*model.RepoFiles, error) {
	var root []ghContent
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents", nil, &root)
	if err != nil {
		return nil, err
	}
	if !found || len(root) == 0 {
		return &model.RepoFiles{}, nil
	}

	files := &model.RepoFiles{}
	byName := make(map[string]ghContent, len(root))
	for _, item := range root {
		byName[strings.ToLower(item.Name)] = item
	}

	for _, name := range []string{"readme.md", "readme.rst", "readme.txt", "readme"} {
		if item, ok := byName[name]; ok {
			files.HasReadme = true
			files.ReadmeSize = item.Size
			break
		}
	}

	for name := range byName {
		if strings.HasPrefix(name, "license") {
			files.HasLicense = true
		}
		if strings.HasPrefix(name, "changelog") || name == "history.md" || name == "changes.md" {
			files.HasChangelog = true
		}
	}
	_, files.HasContributing = byName["contributing.md"]
	_, files.HasCodeOfConduct = byName["code_of_conduct.md"]
	_, files.HasGovernance = byName["governance.md"]

	isDir := func(names ...string) bool {
		for _, name := range names {
			if item, ok := byName[name]; ok && item.Type == "dir" {
				return true
			}
		}
		return false
	}
	files.HasDocsDir = isDir("docs", "doc", "documentation")
	files.HasExamplesDir = isDir("examples", "example", "samples")
	files.HasTestsDir = isDir("test", "tests", "__tests__", "spec", "specs")

	var githubDir []ghContent
	found, err = f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/.github", nil, &githubDir)
	if err == nil && found {
		for _, item := range githubDir {
			switch strings.ToLower(item.Name) {
			case "codeowners":
				files.HasCodeowners = true
			case "issue_template.md":
				files.HasIssueTemplates = true
			case "issue_template":
				if item.Type == "dir" {
					files.HasIssueTemplates = true
				}
			case "pull_request_template.md":
				files.HasPRTemplate = true
			}
		}
	}

	return files, nil
}

// ============================================================================
// CI STATUS
// ============================================================================

type ghWorkflow struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

var (
	testWorkflowHints     = []string{"test", "ci", "build", "check"}
	lintWorkflowHints     = []string{"lint", "format", "style", "eslint", "prettier", "ruff", "black"}
	securityWorkflowHints = []string{"security", "codeql", "snyk", "trivy", "scan"}
	releaseWorkflowHints  = []string{"release", "publish", "deploy"}

	testContentHints    = []string{"pytest", "jest", "npm test", "go test", "cargo test", "unittest"}
	lintContentHints    = []string{"eslint", "prettier", "ruff", "black", "flake8", "mypy", "clippy"}
	secContentHints     = []string{"codeql", "snyk", "trivy", "semgrep", "dependabot"}
	releaseContentHints = []string{"npm publish", "twine upload", "cargo publish", "goreleaser"}
)

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func (f *Fetcher) fetchCIStatus(ctx context.Context, owner, repo string) (*model.CIStatus, error) {
	var workflows struct {
		Workflows []ghWorkflow `json:"workflows"`
	}
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/actions/workflows", nil, &workflows)
	if err != nil {
		return nil, err
	}
	if !found || len(workflows.Workflows) == 0 {
		return &model.CIStatus{}, nil
	}

	ci := &model.CIStatus{
		HasGitHubActions: true,
		WorkflowCount:    len(workflows.Workflows),
	}

	for _, wf := range workflows.Workflows {
		name := strings.ToLower(wf.Name)
		ci.HasTestWorkflow = ci.HasTestWorkflow || containsAny(name, testWorkflowHints)
		ci.HasLintWorkflow = ci.HasLintWorkflow || containsAny(name, lintWorkflowHints)
		ci.HasSecurityWorkflow = ci.HasSecurityWorkflow || containsAny(name, securityWorkflowHints)
		ci.HasReleaseWorkflow = ci.HasReleaseWorkflow || containsAny(name, releaseWorkflowHints)

		var full ghContent
		found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/"+wf.Path, nil, &full)
		if err != nil || !found {
			continue
		}
		content := strings.ToLower(decodeContent(&full))
		if content == "" {
			continue
		}

		if strings.Contains(content, "matrix:") || strings.Contains(content, "strategy:") {
			osCount := 0
			for _, osName := range []string{"ubuntu", "windows", "macos"} {
				if strings.Contains(content, osName) {
					osCount++
				}
			}
			if osCount >= 2 {
				ci.MultiPlatform = true
			}
		}
		ci.HasTestWorkflow = ci.HasTestWorkflow || containsAny(content, testContentHints)
		ci.HasLintWorkflow = ci.HasLintWorkflow || containsAny(content, lintContentHints)
		ci.HasSecurityWorkflow = ci.HasSecurityWorkflow || containsAny(content, secContentHints)
		ci.HasReleaseWorkflow = ci.HasReleaseWorkflow || containsAny(content, releaseContentHints)
	}

	var runs struct {
		WorkflowRuns []struct {
			Status     string `json:"status"`
			Conclusion string `json:"conclusion"`
		} `json:"workflow_runs"`
	}
	found, err = f.get(ctx, "/repos/"+owner+"/"+repo+"/actions/runs",
		url.Values{"per_page": {"50"}}, &runs)
	if err == nil && found {
		completed, successful := 0, 0
		for _, run := range runs.WorkflowRuns {
			if run.Status != "completed" {
				continue
			}
			completed++
			if run.Conclusion == "success" {
				successful++
			}
		}
		if completed > 0 {
			passRate := round1(float64(successful) / float64(completed) * 100)
			ci.RecentRunsPassRate = &passRate
		}
	}

	return ci, nil
}

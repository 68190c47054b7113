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
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// IssueSummary is the trimmed issue shape handed to the language model.
type IssueSummary struct {
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Comments  int        `json:"comments"`
	Labels    []string   `json:"labels,omitempty"`
	Body      string     `json:"body,omitempty"`
}

// ReadmeContent fetches the repository README, decoded; empty when the
// repo has none.
func (f *Fetcher) ReadmeContent(ctx context.Context, owner, repo string) (string, error) {
	var c ghContent
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/readme", nil, &c)
	if err != nil || !found {
		return "", err
	}
	return decodeContent(&c), nil
}

// SecurityPolicyContent fetches SECURITY.md, decoded.
func (f *Fetcher) SecurityPolicyContent(ctx context.Context, owner, repo string) (string, error) {
	var c ghContent
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/SECURITY.md", nil, &c)
	if err != nil || !found {
		return "", err
	}
	return decodeContent(&c), nil
}

var changelogNames = []string{
	"CHANGELOG.md", "CHANGELOG", "CHANGELOG.txt",
	"CHANGES.md", "CHANGES",
	"HISTORY.md", "HISTORY",
	"NEWS.md", "NEWS",
}

// ChangelogContent fetches the first changelog found among the common
// filenames.
func (f *Fetcher) ChangelogContent(ctx context.Context, owner, repo string) (string, error) {
	for _, name := range changelogNames {
		var c ghContent
		found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/"+name, nil, &c)
		if err != nil {
			return "", err
		}
		if found {
			if content := decodeContent(&c); content != "" {
				return content, nil
			}
		}
	}
	return "", nil
}

var governanceFiles = []string{
	"GOVERNANCE.md",
	"CONTRIBUTING.md",
	"MAINTAINERS.md",
	"MAINTAINERS",
	".github/CONTRIBUTING.md",
}

// GovernanceDocs concatenates governance-related documents with file
// headers, separated by rules.
func (f *Fetcher) GovernanceDocs(ctx context.Context, owner, repo string) (string, error) {
	var docs []string
	for _, name := range governanceFiles {
		var c ghContent
		found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/contents/"+name, nil, &c)
		if err != nil {
			return "", err
		}
		if found {
			if content := decodeContent(&c); content != "" {
				docs = append(docs, fmt.Sprintf("# %s\n\n%s", name, content))
			}
		}
	}
	return strings.Join(docs, "\n\n---\n\n"), nil
}

// RecentIssues fetches up to limit recently updated issues, trimmed for
// sentiment analysis. Pull requests are filtered out.
func (f *Fetcher) RecentIssues(ctx context.Context, owner, repo string, limit int) ([]IssueSummary, error) {
	params := url.Values{
		"state":    {"all"},
		"sort":     {"updated"},
		"per_page": {fmt.Sprint(limit)},
	}
	issues, err := getPages[ghIssue](ctx, f, "/repos/"+owner+"/"+repo+"/issues", params, 1)
	if err != nil {
		return nil, err
	}

	var out []IssueSummary
	for _, issue := range withoutPRs(issues) {
		if len(out) >= limit {
			break
		}
		labels := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			labels = append(labels, l.Name)
		}
		body := issue.Body
		if len(body) > 500 {
			body = body[:500]
		}
		out = append(out, IssueSummary{
			Title:     issue.Title,
			State:     issue.State,
			CreatedAt: issue.CreatedAt,
			Comments:  issue.Comments,
			Labels:    labels,
			Body:      body,
		})
	}
	return out, nil
}

type ghComment struct {
	Body string `json:"body"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
}

// MaintainerComments fetches recent issue comments written by
// maintainers, where maintainer means the repo owner or a top
// contributor holding at least 5% of the top-ten contribution mass.
func (f *Fetcher) MaintainerComments(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	contributors, err := getPages[ghContributor](ctx, f, "/repos/"+owner+"/"+repo+"/contributors", nil, 1)
	if err != nil {
		return nil, err
	}

	maintainers := map[string]bool{strings.ToLower(owner): true}
	if len(contributors) > 10 {
		contributors = contributors[:10]
	}
	total := 0
	for _, c := range contributors {
		total += c.Contributions
	}
	threshold := float64(total) * 0.05
	if threshold < 1 {
		threshold = 1
	}
	for _, c := range contributors {
		if float64(c.Contributions) >= threshold {
			maintainers[strings.ToLower(c.Login)] = true
		}
	}

	params := url.Values{"sort": {"updated"}, "direction": {"desc"}}
	comments, err := getPages[ghComment](ctx, f, "/repos/"+owner+"/"+repo+"/issues/comments", params, 2)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, comment := range comments {
		if len(out) >= limit {
			break
		}
		if !maintainers[strings.ToLower(comment.User.Login)] {
			continue
		}
		body := comment.Body
		if len(body) <= 20 {
			continue
		}
		if len(body) > 1000 {
			body = body[:1000]
		}
		out = append(out, body)
	}
	return out, nil
}

// ============================================================================
// SOURCE SAMPLING
// ============================================================================

var languageExtensions = map[string][]string{
	"python":     {".py"},
	"javascript": {".js", ".mjs", ".cjs"},
	"typescript": {".ts", ".tsx"},
	"rust":       {".rs"},
	"go":         {".go"},
	"ruby":       {".rb"},
	"java":       {".java"},
	"c":          {".c", ".h"},
	"c++":        {".cpp", ".cc", ".cxx", ".hpp", ".h"},
	"c#":         {".cs"},
	"php":        {".php"},
	"shell":      {".sh", ".bash"},
}

// securityPriorityPatterns orders filenames by how security-relevant
// they are; earlier patterns win.
var securityPriorityPatterns = []string{
	"main", "app", "index", "server", "cli", "run",
	"config", "settings", "env", "secrets",
	"auth", "login", "session", "token", "password", "credential",
	"input", "parse", "request", "handler", "route", "api",
	"database", "db", "query", "sql", "model",
	"security", "crypto", "encrypt", "hash", "sanitize", "validate",
	"http", "client", "connection", "socket",
}

var sourceSkipPatterns = []string{
	"test", "spec", "mock", "fixture", "vendor", "node_modules",
	"dist", "build", "__pycache__", ".min.", "example", "sample",
	"benchmark", "doc/", "docs/",
}

func extensionsForLanguage(language string) []string {
	lang := strings.ToLower(language)
	if exts, ok := languageExtensions[lang]; ok {
		return exts
	}
	switch {
	case strings.Contains(lang, "python"):
		return []string{".py"}
	case strings.Contains(lang, "javascript"), strings.Contains(lang, "node"):
		return []string{".js", ".mjs"}
	case strings.Contains(lang, "typescript"):
		return []string{".ts", ".tsx"}
	case strings.Contains(lang, "rust"):
		return []string{".rs"}
	case strings.Contains(lang, "go"):
		return []string{".go"}
	}
	return nil
}

type sourceCandidate struct {
	path     string
	sha      string
	priority int
}

// SourceFilesForSecurity samples security-relevant source files from
// the repository tree, concatenated with file headers for the LLM
// security assessment. Caps: maxBytes of content across at most
// maxFiles files.
func (f *Fetcher) SourceFilesForSecurity(ctx context.Context, owner, repo, language, defaultBranch string, maxBytes, maxFiles int) (string, error) {
	exts := extensionsForLanguage(language)
	if len(exts) == 0 {
		return "", nil
	}
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
			Size int    `json:"size"`
		} `json:"tree"`
	}
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/git/trees/"+defaultBranch,
		url.Values{"recursive": {"1"}}, &tree)
	if err != nil || !found {
		return "", err
	}

	var candidates []sourceCandidate
	for _, item := range tree.Tree {
		if item.Type != "blob" || item.Size > 50000 {
			continue
		}
		matched := false
		for _, ext := range exts {
			if strings.HasSuffix(item.Path, ext) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		pathLower := strings.ToLower(item.Path)
		if containsAny(pathLower, sourceSkipPatterns) {
			continue
		}

		priority := 0
		filename := pathLower
		if idx := strings.LastIndex(pathLower, "/"); idx >= 0 {
			filename = pathLower[idx+1:]
		}
		for i, pattern := range securityPriorityPatterns {
			if strings.Contains(filename, pattern) || strings.Contains(pathLower, pattern) {
				priority = len(securityPriorityPatterns) - i
				break
			}
		}
		candidates = append(candidates, sourceCandidate{path: item.Path, sha: item.SHA, priority: priority})
	}
	if len(candidates) == 0 {
		return "", nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return strings.Count(candidates[i].path, "/") < strings.Count(candidates[j].path, "/")
	})

	var chunks []string
	totalBytes := 0
	for _, cand := range candidates {
		if len(chunks) >= maxFiles || totalBytes >= maxBytes {
			break
		}
		var blob ghContent
		found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/git/blobs/"+cand.sha, nil, &blob)
		if err != nil || !found {
			continue
		}
		content := decodeContent(&blob)
		if content == "" {
			continue
		}
		if remaining := maxBytes - totalBytes; len(content) > remaining {
			content = content[:remaining] + "\n... (truncated)"
		}
		chunks = append(chunks, fmt.Sprintf("=== FILE: %s ===\n%s", cand.path, content))
		totalBytes += len(content)
	}
	return strings.Join(chunks, "\n\n"), nil
}

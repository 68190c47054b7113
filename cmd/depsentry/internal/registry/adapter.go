// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry normalizes package-manager registries (npm, PyPI,
// Homebrew) into a common adapter contract: ordered package listings,
// metadata, install statistics, and source repository references.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// HTTPClient is the request executor injected into adapters; satisfied
// by *http.Client, the httpcache wrapper, and test fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PackageNotFoundError reports that a registry has no such package.
type PackageNotFoundError struct {
	Ecosystem model.Ecosystem
	Name      string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %q not found in %s", e.Name, e.Ecosystem)
}

// Adapter is the per-ecosystem registry contract. Implementations must
// produce identical package identities across runs for the same
// upstream package.
type Adapter interface {
	// Ecosystem returns the ecosystem this adapter serves.
	Ecosystem() model.Ecosystem

	// ListPackages returns package names ordered by popularity proxy
	// (most installed first). limit <= 0 returns all known packages.
	// Ordering is stable within one refresh.
	ListPackages(ctx context.Context, limit int) ([]string, error)

	// Metadata fetches the normalized registry record. Returns a
	// *PackageNotFoundError when the package does not exist.
	Metadata(ctx context.Context, name string) (*model.PackageMetadata, error)

	// InstallStats fetches download statistics; (nil, nil) when the
	// ecosystem provides none.
	InstallStats(ctx context.Context, name string) (*model.InstallStats, error)

	// SourceRepo derives a repository reference from metadata, or nil.
	SourceRepo(meta *model.PackageMetadata) *model.RepoRef
}

// getJSON issues a GET and decodes the body into out. It returns the
// HTTP status code so callers can map 404 to PackageNotFoundError.
func getJSON(ctx context.Context, client HTTPClient, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so keep-alive connections can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", url, err)
	}
	return resp.StatusCode, nil
}

// ============================================================================
// REPOSITORY URL PARSING
// ============================================================================

var (
	githubHTTPRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([^/]+)/([^/.\s]+)(?:\.git)?(?:/tree/[^/]+/(.+))?`)
	githubSSHRe  = regexp.MustCompile(`^git@github\.com:([^/]+)/([^/.\s]+)`)
	gitlabHTTPRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?gitlab\.com/([^/]+)/([^/.\s]+)`)
	gitlabSSHRe  = regexp.MustCompile(`^git@gitlab\.com:([^/]+)/([^/.\s]+)`)
	bitbucketRe  = regexp.MustCompile(`^(?:https?://)?(?:www\.)?bitbucket\.org/([^/]+)/([^/.\s]+)`)
)

// NormalizeRepoURL strips the registry-specific URL noise: "git+"
// prefixes, git:// scheme, trailing ".git", and trailing tree/blob
// branch suffixes. Shorthand forms (github:owner/repo) are expanded.
func NormalizeRepoURL(url string) string {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "git+")
	url = strings.Replace(url, "git://", "https://", 1)
	url = strings.TrimSuffix(url, ".git")

	if rest, ok := strings.CutPrefix(url, "github:"); ok {
		url = "https://github.com/" + rest
	}
	if rest, ok := strings.CutPrefix(url, "gitlab:"); ok {
		url = "https://gitlab.com/" + rest
	}

	for _, re := range []*regexp.Regexp{
		regexp.MustCompile(`/tree/[^/]+/?$`),
		regexp.MustCompile(`/blob/[^/]+/?$`),
	} {
		url = re.ReplaceAllString(url, "")
	}
	return url
}

// ParseRepoURL parses a normalized repository URL into a RepoRef.
// GitHub, GitLab and Bitbucket URLs are recognized; anything else
// returns nil.
func ParseRepoURL(url string) *model.RepoRef {
	if url == "" {
		return nil
	}
	url = NormalizeRepoURL(url)

	if m := githubHTTPRe.FindStringSubmatch(url); m != nil {
		ref := &model.RepoRef{
			Platform: model.PlatformGitHub,
			Owner:    m[1],
			Repo:     strings.TrimSuffix(m[2], "/"),
		}
		if len(m) > 3 && m[3] != "" {
			ref.Subpath = m[3]
		}
		return ref
	}
	if m := githubSSHRe.FindStringSubmatch(url); m != nil {
		return &model.RepoRef{Platform: model.PlatformGitHub, Owner: m[1], Repo: m[2]}
	}
	if m := gitlabHTTPRe.FindStringSubmatch(url); m != nil {
		return &model.RepoRef{Platform: model.PlatformGitLab, Owner: m[1], Repo: m[2]}
	}
	if m := gitlabSSHRe.FindStringSubmatch(url); m != nil {
		return &model.RepoRef{Platform: model.PlatformGitLab, Owner: m[1], Repo: m[2]}
	}
	if m := bitbucketRe.FindStringSubmatch(url); m != nil {
		return &model.RepoRef{Platform: model.PlatformBitbucket, Owner: m[1], Repo: m[2]}
	}
	return nil
}

// sourceRepoFromMeta is the shared SourceRepo fallback: repository URL
// first, homepage second.
func sourceRepoFromMeta(meta *model.PackageMetadata) *model.RepoRef {
	if meta == nil {
		return nil
	}
	url := meta.RepositoryURL
	if url == "" {
		url = meta.Homepage
	}
	if url == "" {
		return nil
	}
	return ParseRepoURL(url)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// PyPI adapts the Python Package Index.
//
// Data sources:
//   - package metadata: https://pypi.org/pypi/{package}/json
//   - download stats:   https://pypistats.org/api/packages/{package}/recent
//   - top packages:     hugovk's top-pypi-packages 30-day dataset
type PyPI struct {
	client         HTTPClient
	log            *logging.Logger
	pypiURL        string
	statsURL       string
	topPackagesURL string

	mu  sync.Mutex
	top []string
}

// NewPyPI builds a PyPI adapter backed by client.
func NewPyPI(client HTTPClient, log *logging.Logger) *PyPI {
	if log == nil {
		log = logging.Default()
	}
	return &PyPI{
		client:         client,
		log:            log,
		pypiURL:        "https://pypi.org/pypi",
		statsURL:       "https://pypistats.org/api",
		topPackagesURL: "https://hugovk.github.io/top-pypi-packages/top-pypi-packages-30-days.json",
	}
}

func (a *PyPI) Ecosystem() model.Ecosystem { return model.EcosystemPyPI }

var pypiNameRe = regexp.MustCompile(`[-_.]+`)

// NormalizePyPIName canonicalizes a PyPI name: case-insensitive, with
// runs of hyphens, underscores and periods collapsed to one hyphen.
func NormalizePyPIName(name string) string {
	return strings.ToLower(pypiNameRe.ReplaceAllString(name, "-"))
}

// ListPackages returns names ordered by 30-day downloads, from the
// top-pypi-packages dataset. When the dataset is unreachable a curated
// fallback list is used.
func (a *PyPI) ListPackages(ctx context.Context, limit int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.top == nil {
		var data struct {
			Rows []struct {
				Project string `json:"project"`
			} `json:"rows"`
		}
		status, err := getJSON(ctx, a.client, a.topPackagesURL, &data)
		if err == nil && status == http.StatusOK && len(data.Rows) > 0 {
			names := make([]string, 0, len(data.Rows))
			for _, row := range data.Rows {
				if row.Project != "" {
					names = append(names, row.Project)
				}
			}
			a.top = names
		} else {
			if err != nil {
				a.log.Warn("top-pypi-packages fetch failed, using fallback list", "error", err.Error())
			} else {
				a.log.Warn("top-pypi-packages fetch failed, using fallback list", "status", status)
			}
			a.top = pypiFallbackPackages()
		}
	}

	if limit > 0 && limit < len(a.top) {
		return append([]string(nil), a.top[:limit]...), nil
	}
	return append([]string(nil), a.top...), nil
}

func pypiFallbackPackages() []string {
	return []string{
		// Data science and ML.
		"numpy", "pandas", "scipy", "matplotlib", "scikit-learn",
		"tensorflow", "torch", "keras", "xgboost", "lightgbm",
		"seaborn", "plotly", "jupyter", "notebook", "ipython",
		// Web frameworks and HTTP.
		"django", "flask", "fastapi", "starlette", "tornado",
		"aiohttp", "httpx", "requests", "urllib3", "certifi",
		// CLI and utilities.
		"click", "typer", "rich", "tqdm", "colorama",
		"pyyaml", "toml", "python-dotenv", "pydantic", "attrs",
		// Testing.
		"pytest", "pytest-cov", "coverage", "mock", "responses",
		"hypothesis", "faker", "factory-boy", "tox", "nox",
		// Dev tools.
		"black", "ruff", "mypy", "pylint", "flake8",
		"isort", "pre-commit", "setuptools", "wheel", "twine",
		// Databases.
		"sqlalchemy", "psycopg2", "pymysql", "redis", "pymongo",
		"alembic", "databases", "asyncpg", "motor", "peewee",
		// Cloud SDKs.
		"boto3", "botocore", "awscli", "google-cloud-storage",
		"azure-storage-blob", "s3transfer", "paramiko", "fabric",
		// Async runtimes.
		"asyncio", "trio", "anyio", "uvloop", "celery",
		// Security.
		"cryptography", "pyjwt", "bcrypt", "passlib", "python-jose",
		// Parsing and serialization.
		"beautifulsoup4", "lxml", "html5lib", "jsonschema", "marshmallow",
		"orjson", "ujson", "msgpack", "protobuf", "grpcio",
	}
}

type pypiInfo struct {
	Name           string            `json:"name"`
	Summary        string            `json:"summary"`
	Version        string            `json:"version"`
	HomePage       string            `json:"home_page"`
	ProjectURL     string            `json:"project_url"`
	ProjectURLs    map[string]string `json:"project_urls"`
	License        string            `json:"license"`
	Classifiers    []string          `json:"classifiers"`
	Keywords       json.RawMessage   `json:"keywords"`
	RequiresDist   []string          `json:"requires_dist"`
	RequiresPython string            `json:"requires_python"`
	Author         string            `json:"author"`
	AuthorEmail    string            `json:"author_email"`
	Maintainer     string            `json:"maintainer"`
	MaintEmail     string            `json:"maintainer_email"`
}

// Metadata fetches and normalizes the PyPI JSON record.
func (a *PyPI) Metadata(ctx context.Context, name string) (*model.PackageMetadata, error) {
	normalized := NormalizePyPIName(name)
	var data struct {
		Info pypiInfo `json:"info"`
	}
	status, err := getJSON(ctx, a.client, a.pypiURL+"/"+normalized+"/json", &data)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &PackageNotFoundError{Ecosystem: model.EcosystemPyPI, Name: name}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("pypi returned %d for %s", status, name)
	}

	info := data.Info

	author := info.Author
	if author == "" {
		author = info.Maintainer
	}
	email := info.AuthorEmail
	if email == "" {
		email = info.MaintEmail
	}

	homepage := info.HomePage
	if homepage == "" {
		homepage = info.ProjectURL
	}

	pkgName := info.Name
	if pkgName == "" {
		pkgName = name
	}

	return &model.PackageMetadata{
		Ecosystem:          model.EcosystemPyPI,
		Name:               pkgName,
		Description:        info.Summary,
		Version:            info.Version,
		Homepage:           homepage,
		RepositoryURL:      extractPyPIRepoURL(info),
		License:            extractPyPILicense(info),
		Keywords:           parsePyPIKeywords(info.Keywords),
		Dependencies:       parsePyPIDependencies(info.RequiresDist),
		PyPIAuthor:         author,
		PyPIAuthorEmail:    email,
		PyPIRequiresPython: info.RequiresPython,
	}, nil
}

func isForgeURL(url string) bool {
	return strings.Contains(url, "github.com") ||
		strings.Contains(url, "gitlab.com") ||
		strings.Contains(url, "bitbucket.org")
}

// extractPyPIRepoURL checks project_urls under the common source-code
// keys first, then the homepage, then any project URL that points at a
// known forge.
func extractPyPIRepoURL(info pypiInfo) string {
	repoKeys := []string{
		"Source", "Source Code", "Repository", "GitHub",
		"Code", "Homepage", "Home", "source", "repository",
		"github", "Git", "git",
	}
	for _, key := range repoKeys {
		if url, ok := info.ProjectURLs[key]; ok && url != "" && isForgeURL(url) {
			return url
		}
	}
	if info.HomePage != "" && isForgeURL(info.HomePage) {
		return info.HomePage
	}
	for _, url := range info.ProjectURLs {
		if url != "" && isForgeURL(url) {
			return url
		}
	}
	return ""
}

// extractPyPILicense prefers the license field unless it holds full
// license text, then falls back to OSI classifiers.
func extractPyPILicense(info pypiInfo) string {
	lic := strings.TrimSpace(info.License)
	if lic != "" && !strings.EqualFold(lic, "UNKNOWN") {
		// Some packages paste the entire license text into this field.
		if len(lic) <= 100 {
			return lic
		}
	}
	const osiPrefix = "License :: OSI Approved :: "
	for _, c := range info.Classifiers {
		if rest, ok := strings.CutPrefix(c, osiPrefix); ok {
			return rest
		}
	}
	return ""
}

var keywordSplitRe = regexp.MustCompile(`[,\s]+`)

// parsePyPIKeywords accepts both the comma-separated string and list
// encodings of the keywords field.
func parsePyPIKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	var out []string
	for _, k := range keywordSplitRe.Split(s, -1) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

var pypiDepNameRe = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)`)

// parsePyPIDependencies extracts normalized package names from
// requires_dist entries, dropping extras-gated requirements.
func parsePyPIDependencies(requiresDist []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, req := range requiresDist {
		if strings.Contains(req, "extra ==") || strings.Contains(req, "extra==") {
			continue
		}
		m := pypiDepNameRe.FindStringSubmatch(req)
		if m == nil {
			continue
		}
		name := NormalizePyPIName(m[1])
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// InstallStats fetches pypistats recent downloads. The 90-day and
// 365-day figures are extrapolated from the 30-day count.
func (a *PyPI) InstallStats(ctx context.Context, name string) (*model.InstallStats, error) {
	var data struct {
		Data struct {
			LastMonth int64 `json:"last_month"`
		} `json:"data"`
	}
	url := a.statsURL + "/packages/" + NormalizePyPIName(name) + "/recent"
	status, err := getJSON(ctx, a.client, url, &data)
	if err != nil || status != http.StatusOK {
		if err != nil {
			a.log.Debug("pypistats unavailable", "package", name, "error", err.Error())
		}
		return nil, nil
	}

	d30 := data.Data.LastMonth
	d90 := d30 * 3
	d365 := d30 * 12
	return &model.InstallStats{
		DownloadsLast30d:  &d30,
		DownloadsLast90d:  &d90,
		DownloadsLast365d: &d365,
		Estimated:         true,
	}, nil
}

// SourceRepo resolves the repository reference, stripping tree/blob
// branch suffixes that PyPI project URLs frequently carry.
func (a *PyPI) SourceRepo(meta *model.PackageMetadata) *model.RepoRef {
	return sourceRepoFromMeta(meta)
}

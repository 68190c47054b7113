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
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// NPM adapts the npm registry.
//
// Data sources:
//   - package metadata: https://registry.npmjs.org/{package}
//   - download stats:   https://api.npmjs.org/downloads/point/{period}/{package}
type NPM struct {
	client       HTTPClient
	log          *logging.Logger
	registryURL  string
	downloadsURL string

	mu      sync.Mutex
	popular []string
}

// NewNPM builds an npm adapter backed by client.
func NewNPM(client HTTPClient, log *logging.Logger) *NPM {
	if log == nil {
		log = logging.Default()
	}
	return &NPM{
		client:       client,
		log:          log,
		registryURL:  "https://registry.npmjs.org",
		downloadsURL: "https://api.npmjs.org/downloads",
	}
}

func (a *NPM) Ecosystem() model.Ecosystem { return model.EcosystemNPM }

// encodeName percent-encodes the slash in scoped package names so they
// survive as a single path segment.
func encodeName(name string) string {
	return strings.ReplaceAll(name, "/", "%2F")
}

// ListPackages returns the curated most-depended-upon npm packages.
// The registry has no ranking endpoint that supports wildcard listing,
// so the list is pinned; order approximates dependent count.
func (a *NPM) ListPackages(ctx context.Context, limit int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.popular == nil {
		a.popular = npmPopularPackages()
	}
	if limit > 0 && limit < len(a.popular) {
		return append([]string(nil), a.popular[:limit]...), nil
	}
	return append([]string(nil), a.popular...), nil
}

func npmPopularPackages() []string {
	return []string{
		// Core utilities.
		"lodash", "chalk", "commander", "debug", "uuid", "semver", "glob",
		"yargs", "fs-extra", "axios", "moment", "async", "underscore",
		"dotenv", "minimist", "colors", "rimraf", "mkdirp", "bluebird",
		"cross-env", "inquirer", "ora", "rxjs", "ws", "cheerio",
		// Build and dev tooling.
		"typescript", "webpack", "babel-core", "@babel/core", "eslint",
		"prettier", "jest", "mocha", "chai", "esbuild", "rollup",
		"postcss", "autoprefixer", "sass", "less", "terser",
		// Frontend frameworks.
		"react", "react-dom", "vue", "angular", "@angular/core", "svelte",
		"preact", "next", "nuxt", "gatsby", "vite", "solid-js",
		// Server frameworks.
		"express", "koa", "fastify", "hapi", "socket.io", "body-parser",
		"cors", "helmet", "morgan", "cookie-parser", "compression",
		// Data and databases.
		"mongoose", "sequelize", "redis", "pg", "mysql", "mysql2",
		"mongodb", "knex", "typeorm", "prisma", "graphql", "apollo-server",
		// HTTP clients and networking.
		"node-fetch", "got", "superagent", "request", "form-data",
		"http-proxy", "https-proxy-agent", "socks-proxy-agent",
		// Testing.
		"sinon", "nock", "supertest", "enzyme", "@testing-library/react",
		"cypress", "puppeteer", "playwright", "jsdom",
		// Type packages.
		"@types/node", "@types/react", "@types/lodash", "@types/jest",
		"@types/express", "@types/mocha", "@types/chai",
		// CLI and developer experience.
		"yargs-parser", "boxen", "execa", "cosmiconfig", "tslib",
		"source-map-support", "electron", "nodemon", "ts-node",
		// Security and crypto.
		"jsonwebtoken", "bcrypt", "bcryptjs", "crypto-js", "argon2",
	}
}

// npmPackument is the registry document for a package across all
// versions. Fields we do not consume are left undeclared.
type npmPackument struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	DistTags    map[string]string         `json:"dist-tags"`
	Versions    map[string]npmVersionDoc  `json:"versions"`
	Homepage    string                    `json:"homepage"`
	Repository  json.RawMessage           `json:"repository"`
	License     json.RawMessage           `json:"license"`
	Keywords    []string                  `json:"keywords"`
	Maintainers []struct{ Name string `json:"name"` } `json:"maintainers"`
}

type npmVersionDoc struct {
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Homepage     string            `json:"homepage"`
	Repository   json.RawMessage   `json:"repository"`
	License      json.RawMessage   `json:"license"`
	Keywords     []string          `json:"keywords"`
	Main         string            `json:"main"`
	Types        string            `json:"types"`
	Typings      string            `json:"typings"`
	Scripts      map[string]string `json:"scripts"`
	Dependencies map[string]string `json:"dependencies"`
	NPMUser      struct {
		Name string `json:"name"`
	} `json:"_npmUser"`
	Dist struct {
		Tarball      string            `json:"tarball"`
		Signatures   []json.RawMessage `json:"signatures"`
		Attestations json.RawMessage   `json:"attestations"`
	} `json:"dist"`
}

// Metadata fetches the packument and flattens the latest version into
// the normalized record.
func (a *NPM) Metadata(ctx context.Context, name string) (*model.PackageMetadata, error) {
	var doc npmPackument
	status, err := getJSON(ctx, a.client, a.registryURL+"/"+encodeName(name), &doc)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &PackageNotFoundError{Ecosystem: model.EcosystemNPM, Name: name}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("npm registry returned %d for %s", status, name)
	}

	latest := doc.DistTags["latest"]
	version := doc.Versions[latest]

	repoURL := extractNPMRepoURL(doc.Repository)
	if repoURL == "" {
		repoURL = extractNPMRepoURL(version.Repository)
	}

	maintainers := make([]string, 0, len(doc.Maintainers))
	for _, m := range doc.Maintainers {
		if m.Name != "" {
			maintainers = append(maintainers, m.Name)
		}
	}

	deps := make([]string, 0, len(version.Dependencies))
	for dep := range version.Dependencies {
		deps = append(deps, dep)
	}
	sort.Strings(deps)

	description := doc.Description
	if description == "" {
		description = version.Description
	}
	homepage := doc.Homepage
	if homepage == "" {
		homepage = version.Homepage
	}
	keywords := doc.Keywords
	if len(keywords) == 0 {
		keywords = version.Keywords
	}
	pkgName := doc.Name
	if pkgName == "" {
		pkgName = name
	}

	hasTypes := version.Types != "" || version.Typings != "" ||
		strings.HasSuffix(version.Main, ".d.ts")

	return &model.PackageMetadata{
		Ecosystem:          model.EcosystemNPM,
		Name:               pkgName,
		Description:        description,
		Version:            latest,
		Homepage:           homepage,
		RepositoryURL:      repoURL,
		License:            extractNPMLicense(doc.License, version.License),
		Keywords:           keywords,
		Dependencies:       deps,
		NPMMaintainers:     maintainers,
		NPMMaintainerCount: len(maintainers),
		HasTypes:           hasTypes,
		IsScoped:           strings.HasPrefix(name, "@"),
	}, nil
}

// extractNPMRepoURL handles the repository field's three shapes: a bare
// string, {"type","url"}, or absent.
func extractNPMRepoURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return NormalizeRepoURL(s)
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
		return NormalizeRepoURL(obj.URL)
	}
	return ""
}

// extractNPMLicense handles string, {"type"|"name"}, and list shapes.
func extractNPMLicense(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Type string `json:"type"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			if obj.Type != "" {
				return obj.Type
			}
			if obj.Name != "" {
				return obj.Name
			}
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			if lic := extractNPMLicense(list[0]); lic != "" {
				return lic
			}
		}
	}
	return ""
}

// InstallStats fetches point downloads. The 90-day and 365-day figures
// are extrapolated from the 30-day count, so Estimated is set.
func (a *NPM) InstallStats(ctx context.Context, name string) (*model.InstallStats, error) {
	var month struct {
		Downloads int64 `json:"downloads"`
	}
	url := a.downloadsURL + "/point/last-month/" + encodeName(name)
	status, err := getJSON(ctx, a.client, url, &month)
	if err != nil || status != http.StatusOK {
		if err != nil {
			a.log.Debug("npm download stats unavailable", "package", name, "error", err.Error())
		}
		return nil, nil
	}

	d30 := month.Downloads
	d90 := d30 * 3
	d365 := d30 * 12
	return &model.InstallStats{
		DownloadsLast30d:  &d30,
		DownloadsLast90d:  &d90,
		DownloadsLast365d: &d365,
		Estimated:         true,
	}, nil
}

// SourceRepo resolves the repository reference, expanding npm URL
// shorthands before parsing.
func (a *NPM) SourceRepo(meta *model.PackageMetadata) *model.RepoRef {
	return sourceRepoFromMeta(meta)
}

// TypesPackageExists reports whether @types/{name} is published.
// Scoped packages never have a separate types package.
func (a *NPM) TypesPackageExists(ctx context.Context, name string) bool {
	if strings.HasPrefix(name, "@") {
		return false
	}
	url := a.registryURL + "/" + encodeName("@types/"+name)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ============================================================================
// SUPPLY CHAIN DATA
// ============================================================================

// NPMVersionDoc is the per-version manifest slice consumed by the
// supply-chain analyzer.
type NPMVersionDoc struct {
	Version      string
	Scripts      map[string]string
	Dependencies map[string]string
	TarballURL   string
	Publisher    string
	Signed       bool
	Attested     bool
}

// NPMSupplyChainData bundles everything the supply-chain analyzer needs
// from the registry in one fetch.
type NPMSupplyChainData struct {
	Current     *NPMVersionDoc
	Previous    *NPMVersionDoc
	Maintainers []string
}

// SupplyChainData fetches the packument once and extracts the latest
// version document, the semver-previous version document, and the
// maintainer list. Returns (nil, nil) when the package has no latest
// version to inspect.
func (a *NPM) SupplyChainData(ctx context.Context, name string) (*NPMSupplyChainData, error) {
	var doc npmPackument
	status, err := getJSON(ctx, a.client, a.registryURL+"/"+encodeName(name), &doc)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &PackageNotFoundError{Ecosystem: model.EcosystemNPM, Name: name}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("npm registry returned %d for %s", status, name)
	}

	latest := doc.DistTags["latest"]
	current, ok := doc.Versions[latest]
	if !ok {
		return nil, nil
	}

	out := &NPMSupplyChainData{Current: toVersionDoc(latest, current)}
	for _, m := range doc.Maintainers {
		if m.Name != "" {
			out.Maintainers = append(out.Maintainers, m.Name)
		}
	}

	if prev := previousVersion(doc.Versions, latest); prev != "" {
		pv := doc.Versions[prev]
		out.Previous = toVersionDoc(prev, pv)
	}
	return out, nil
}

func toVersionDoc(version string, v npmVersionDoc) *NPMVersionDoc {
	return &NPMVersionDoc{
		Version:      version,
		Scripts:      v.Scripts,
		Dependencies: v.Dependencies,
		TarballURL:   v.Dist.Tarball,
		Publisher:    v.NPMUser.Name,
		Signed:       len(v.Dist.Signatures) > 0,
		Attested:     len(v.Dist.Attestations) > 0,
	}
}

// previousVersion returns the highest published version strictly below
// current in semver order, skipping prereleases and unparseable tags.
func previousVersion(versions map[string]npmVersionDoc, current string) string {
	cur := "v" + current
	if !semver.IsValid(cur) {
		return ""
	}
	best := ""
	for v := range versions {
		cand := "v" + v
		if !semver.IsValid(cand) || semver.Prerelease(cand) != "" {
			continue
		}
		if semver.Compare(cand, cur) >= 0 {
			continue
		}
		if best == "" || semver.Compare(cand, "v"+best) > 0 {
			best = v
		}
	}
	return best
}

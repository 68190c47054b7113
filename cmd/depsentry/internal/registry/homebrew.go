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
	"strconv"
	"strings"
	"sync"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// Homebrew adapts the Homebrew formula API.
//
// Data sources:
//   - formula index: https://formulae.brew.sh/api/formula.json
//   - per formula:   https://formulae.brew.sh/api/formula/{name}.json
//   - analytics:     https://formulae.brew.sh/api/analytics/install/30d.json
type Homebrew struct {
	client  HTTPClient
	log     *logging.Logger
	baseURL string

	mu        sync.Mutex
	analytics map[string]int64
}

// NewHomebrew builds a Homebrew adapter backed by client.
func NewHomebrew(client HTTPClient, log *logging.Logger) *Homebrew {
	if log == nil {
		log = logging.Default()
	}
	return &Homebrew{
		client:  client,
		log:     log,
		baseURL: "https://formulae.brew.sh/api",
	}
}

func (a *Homebrew) Ecosystem() model.Ecosystem { return model.EcosystemHomebrew }

// loadAnalytics fetches and caches the 30-day install counts. Counts
// arrive as comma-grouped strings ("1,234,567").
func (a *Homebrew) loadAnalytics(ctx context.Context) (map[string]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.analytics != nil {
		return a.analytics, nil
	}

	var data struct {
		Items []struct {
			Formula string `json:"formula"`
			Count   string `json:"count"`
		} `json:"items"`
	}
	status, err := getJSON(ctx, a.client, a.baseURL+"/analytics/install/30d.json", &data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("homebrew analytics returned %d", status)
	}

	analytics := make(map[string]int64, len(data.Items))
	for _, item := range data.Items {
		if item.Formula == "" {
			continue
		}
		count, err := strconv.ParseInt(strings.ReplaceAll(item.Count, ",", ""), 10, 64)
		if err != nil {
			continue
		}
		analytics[item.Formula] = count
	}
	a.analytics = analytics
	return analytics, nil
}

// ListPackages returns formula names sorted by 30-day installs
// descending, alphabetical for ties.
func (a *Homebrew) ListPackages(ctx context.Context, limit int) ([]string, error) {
	analytics, err := a.loadAnalytics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load homebrew analytics: %w", err)
	}

	var formulas []struct {
		Name string `json:"name"`
	}
	status, err := getJSON(ctx, a.client, a.baseURL+"/formula.json", &formulas)
	if err != nil {
		return nil, fmt.Errorf("load formula index: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("homebrew formula index returned %d", status)
	}

	names := make([]string, 0, len(formulas))
	for _, f := range formulas {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := analytics[names[i]], analytics[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}
	return names, nil
}

type brewFormula struct {
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Homepage string `json:"homepage"`
	License  string `json:"license"`
	Versions struct {
		Stable string `json:"stable"`
		Head   string `json:"head"`
	} `json:"versions"`
	URLs struct {
		Stable struct {
			URL string `json:"url"`
		} `json:"stable"`
		Head struct {
			URL string `json:"url"`
		} `json:"head"`
	} `json:"urls"`
	Dependencies []json.RawMessage `json:"dependencies"`
}

// Metadata fetches and normalizes a formula record.
func (a *Homebrew) Metadata(ctx context.Context, name string) (*model.PackageMetadata, error) {
	var f brewFormula
	status, err := getJSON(ctx, a.client, a.baseURL+"/formula/"+name+".json", &f)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &PackageNotFoundError{Ecosystem: model.EcosystemHomebrew, Name: name}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("homebrew returned %d for %s", status, name)
	}

	version := f.Versions.Stable
	if version == "" {
		version = f.Versions.Head
	}

	pkgName := f.Name
	if pkgName == "" {
		pkgName = name
	}

	return &model.PackageMetadata{
		Ecosystem:     model.EcosystemHomebrew,
		Name:          pkgName,
		Description:   f.Desc,
		Version:       version,
		Homepage:      f.Homepage,
		RepositoryURL: brewRepositoryURL(f),
		License:       f.License,
		Dependencies:  brewDependencies(f.Dependencies),
	}, nil
}

// brewRepositoryURL tries the homepage, then the head (git clone) URL,
// then the stable tarball URL for a GitHub repository.
func brewRepositoryURL(f brewFormula) string {
	if strings.Contains(f.Homepage, "github.com") {
		return f.Homepage
	}
	if head := f.URLs.Head.URL; strings.Contains(head, "github.com") {
		return strings.TrimSuffix(head, ".git")
	}
	if stable := f.URLs.Stable.URL; strings.Contains(stable, "github.com") {
		// Tarball URLs look like
		// https://github.com/owner/repo/archive/refs/tags/v1.0.tar.gz.
		parts := strings.Split(stable, "/")
		if len(parts) >= 5 && parts[2] == "github.com" {
			return "https://github.com/" + parts[3] + "/" + parts[4]
		}
	}
	return ""
}

// brewDependencies accepts both the string and {"name": ...} encodings
// of formula dependencies.
func brewDependencies(raw []json.RawMessage) []string {
	var out []string
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	return out
}

// InstallStats returns the 30-day install count from analytics, or
// (nil, nil) when the formula has no analytics entry.
func (a *Homebrew) InstallStats(ctx context.Context, name string) (*model.InstallStats, error) {
	analytics, err := a.loadAnalytics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load homebrew analytics: %w", err)
	}
	count, ok := analytics[name]
	if !ok {
		return nil, nil
	}
	return &model.InstallStats{DownloadsLast30d: &count}, nil
}

// SourceRepo resolves the repository reference from metadata.
func (a *Homebrew) SourceRepo(meta *model.PackageMetadata) *model.RepoRef {
	return sourceRepoFromMeta(meta)
}

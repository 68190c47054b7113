// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vulns fetches vulnerability history from the OSV database
// (https://osv.dev) and derives patch-timing metrics against the
// repository's release dates.
package vulns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// HTTPClient is the request executor injected into the fetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// osvEcosystems maps our ecosystem names to OSV's. Homebrew is absent:
// formulas are queried by GitHub purl instead.
var osvEcosystems = map[model.Ecosystem]string{
	model.EcosystemNPM:    "npm",
	model.EcosystemPyPI:   "PyPI",
	model.EcosystemCrates: "crates.io",
}

// Fetcher queries the OSV API. No authentication is required.
type Fetcher struct {
	client  HTTPClient
	log     *logging.Logger
	baseURL string
}

// NewFetcher builds an OSV fetcher backed by client.
func NewFetcher(client HTTPClient, log *logging.Logger) *Fetcher {
	if log == nil {
		log = logging.Default()
	}
	return &Fetcher{client: client, log: log, baseURL: "https://api.osv.dev/v1"}
}

type osvVuln struct {
	ID        string `json:"id"`
	Summary   string `json:"summary"`
	Details   string `json:"details"`
	Published string `json:"published"`
	Severity  []struct {
		Type  string          `json:"type"`
		Score json.RawMessage `json:"score"`
	} `json:"severity"`
	DatabaseSpecific struct {
		Severity string          `json:"severity"`
		CVSS     json.RawMessage `json:"cvss"`
	} `json:"database_specific"`
	Affected []struct {
		EcosystemSpecific struct {
			Severity string `json:"severity"`
		} `json:"ecosystem_specific"`
		Ranges []struct {
			Events []struct {
				Fixed string `json:"fixed"`
			} `json:"events"`
		} `json:"ranges"`
	} `json:"affected"`
	References []struct {
		URL string `json:"url"`
	} `json:"references"`
}

// query posts a package query; API errors degrade to an empty result.
func (f *Fetcher) query(ctx context.Context, body any) ([]osvVuln, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal osv query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build osv request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query osv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		f.log.Warn("osv query failed", "status", resp.StatusCode)
		return nil, nil
	}

	var result struct {
		Vulns []osvVuln `json:"vulns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode osv response: %w", err)
	}
	return result.Vulns, nil
}

type packageQuery struct {
	Package struct {
		Name      string `json:"name,omitempty"`
		Ecosystem string `json:"ecosystem,omitempty"`
		PURL      string `json:"purl,omitempty"`
	} `json:"package"`
}

func (f *Fetcher) fetchByPackage(ctx context.Context, name string, eco model.Ecosystem) ([]osvVuln, error) {
	osvEco, ok := osvEcosystems[eco]
	if !ok {
		return nil, nil
	}
	var q packageQuery
	q.Package.Name = name
	q.Package.Ecosystem = osvEco
	return f.query(ctx, q)
}

func (f *Fetcher) fetchByRepo(ctx context.Context, owner, repo string) ([]osvVuln, error) {
	var q packageQuery
	q.Package.PURL = "pkg:github/" + owner + "/" + repo
	return f.query(ctx, q)
}

// parseSeverity derives the severity label and CVSS score. Explicit
// database severities win; CVSS bands are the fallback; ecosystem
// advisories override both.
func parseSeverity(v osvVuln) (model.Severity, *float64) {
	severity := model.SeverityUnknown
	var cvss *float64

	for _, sev := range v.Severity {
		if sev.Type != "CVSS_V3" {
			continue
		}
		var numeric float64
		if err := json.Unmarshal(sev.Score, &numeric); err == nil {
			cvss = &numeric
		}
		// Vector strings carry no base score; database_specific covers those.
	}

	if len(v.DatabaseSpecific.CVSS) > 0 {
		var numeric float64
		if err := json.Unmarshal(v.DatabaseSpecific.CVSS, &numeric); err == nil {
			cvss = &numeric
		} else {
			var obj struct {
				Score *float64 `json:"score"`
			}
			if err := json.Unmarshal(v.DatabaseSpecific.CVSS, &obj); err == nil && obj.Score != nil {
				cvss = obj.Score
			}
		}
	}

	if v.DatabaseSpecific.Severity != "" {
		severity = model.Severity(strings.ToUpper(v.DatabaseSpecific.Severity))
	}

	if severity == model.SeverityUnknown && cvss != nil {
		switch {
		case *cvss >= 9.0:
			severity = model.SeverityCritical
		case *cvss >= 7.0:
			severity = model.SeverityHigh
		case *cvss >= 4.0:
			severity = model.SeverityMedium
		default:
			severity = model.SeverityLow
		}
	}

	for _, affected := range v.Affected {
		if affected.EcosystemSpecific.Severity != "" {
			severity = model.Severity(strings.ToUpper(affected.EcosystemSpecific.Severity))
			break
		}
	}
	return severity, cvss
}

// parseFixedVersion returns the first fixed event across ranges.
func parseFixedVersion(v osvVuln) string {
	for _, affected := range v.Affected {
		for _, rng := range affected.Ranges {
			for _, event := range rng.Events {
				if event.Fixed != "" {
					return event.Fixed
				}
			}
		}
	}
	return ""
}

// findReleaseDate matches a version against release dates, trying the
// exact spelling, a v-prefixed form, and a v-stripped form.
func findReleaseDate(version string, releaseDates map[string]time.Time) (time.Time, bool) {
	if len(releaseDates) == 0 {
		return time.Time{}, false
	}
	if d, ok := releaseDates[version]; ok {
		return d, true
	}
	if d, ok := releaseDates["v"+version]; ok {
		return d, true
	}
	if stripped, ok := strings.CutPrefix(version, "v"); ok {
		if d, ok := releaseDates[stripped]; ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// FetchCVEHistory assembles the vulnerability history for a package.
// Homebrew formulas are queried by their GitHub repository; other
// ecosystems by registry name. releaseDates (tag to publish date) feeds
// the days-to-patch calculation.
func (f *Fetcher) FetchCVEHistory(ctx context.Context, name string, eco model.Ecosystem, ref *model.RepoRef, releaseDates map[string]time.Time) (*model.CVEHistory, error) {
	var vulns []osvVuln
	var err error
	if eco == model.EcosystemHomebrew && ref != nil {
		vulns, err = f.fetchByRepo(ctx, ref.Owner, ref.Repo)
	} else {
		vulns, err = f.fetchByPackage(ctx, name, eco)
	}
	if err != nil {
		return nil, err
	}

	history := &model.CVEHistory{CVEs: []model.CVEDetail{}}
	if len(vulns) == 0 {
		return history, nil
	}

	totalPatchDays := 0.0
	patched := 0

	for _, v := range vulns {
		id := v.ID
		if id == "" {
			id = "UNKNOWN"
		}
		summary := v.Summary
		if summary == "" {
			summary = truncate(v.Details, 200)
		}
		severity, cvss := parseSeverity(v)

		published := time.Now().UTC()
		if v.Published != "" {
			if parsed, err := time.Parse(time.RFC3339, v.Published); err == nil {
				published = parsed.UTC()
			}
		}

		detail := model.CVEDetail{
			ID:          id,
			Summary:     truncate(summary, 500),
			Severity:    severity,
			CVSS:        cvss,
			PublishedAt: &published,
		}

		if fixed := parseFixedVersion(v); fixed != "" {
			detail.FixedVersion = fixed
			if patchDate, ok := findReleaseDate(fixed, releaseDates); ok {
				patchDate = patchDate.UTC()
				detail.PatchReleaseAt = &patchDate
				days := math.Max(0, math.Floor(patchDate.Sub(published).Hours()/24))
				detail.DaysToPatch = &days
				totalPatchDays += days
				patched++
			}
		} else {
			history.HasUnpatched = true
		}

		for _, r := range v.References {
			if r.URL != "" && len(detail.References) < 5 {
				detail.References = append(detail.References, r.URL)
			}
		}

		history.CVEs = append(history.CVEs, detail)
	}

	sort.SliceStable(history.CVEs, func(i, j int) bool {
		ri, rj := history.CVEs[i].Severity.Rank(), history.CVEs[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return history.CVEs[i].PublishedAt.After(*history.CVEs[j].PublishedAt)
	})

	history.Total = len(history.CVEs)
	if patched > 0 {
		avg := totalPatchDays / float64(patched)
		history.AvgDaysToPatch = &avg
	}
	return history, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

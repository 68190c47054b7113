// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forge fetches repository health signals from the GitHub REST
// API: activity, contributors, issues, releases, security posture, and
// the document contents the LLM assessments consume.
package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// HTTPClient is the request executor injected into the fetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrForbidden marks a 403 that is not rate limiting, typically a
// private or access-restricted repository.
var ErrForbidden = errors.New("github access forbidden")

// RateLimit is the most recent rate-limit state reported by the API.
type RateLimit struct {
	Remaining int
	Total     int
	Reset     time.Time
}

// subFetchTimeout bounds each parallel signal fetch so one slow
// endpoint cannot stall the whole repository snapshot.
const subFetchTimeout = 90 * time.Second

// Fetcher talks to the GitHub REST API. A personal access token raises
// the rate limit from 60 to 5000 requests per hour; the token lives in
// a memguard enclave and is only decrypted per request.
type Fetcher struct {
	client  HTTPClient
	token   *memguard.Enclave
	log     *logging.Logger
	limiter *rate.Limiter
	baseURL string

	mu        sync.Mutex
	remaining int
	total     int
	reset     time.Time
}

// NewFetcher builds a GitHub fetcher. token may be nil for
// unauthenticated access.
func NewFetcher(client HTTPClient, token *memguard.Enclave, log *logging.Logger) *Fetcher {
	if log == nil {
		log = logging.Default()
	}
	return &Fetcher{
		client:  client,
		token:   token,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(8), 16),
		baseURL: "https://api.github.com",
		// Authenticated default until the first response reports real numbers.
		remaining: 5000,
		total:     5000,
	}
}

// RateLimit returns the last observed rate-limit headers.
func (f *Fetcher) RateLimit() RateLimit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return RateLimit{Remaining: f.remaining, Total: f.total, Reset: f.reset}
}

func (f *Fetcher) updateRateLimit(resp *http.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.remaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.total = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.reset = time.Unix(unix, 0).UTC()
		}
	}
}

// get fetches path and decodes into out. A 404 returns (false, nil) so
// callers can treat missing resources as absence rather than failure.
func (f *Fetcher) get(ctx context.Context, path string, params url.Values, out any) (bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return false, err
	}

	u := f.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if f.token != nil {
		buf, err := f.token.Open()
		if err != nil {
			return false, fmt.Errorf("open token enclave: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+buf.String())
		buf.Destroy()
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	f.updateRateLimit(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, nil
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") != "0":
		// 403 without an exhausted quota means the repo blocks us.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("%w: %s", ErrForbidden, path)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("github returned %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// getPages walks a paginated list endpoint, stopping at maxPages, an
// empty page, or a short page.
func getPages[T any](ctx context.Context, f *Fetcher, path string, params url.Values, maxPages int) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	if params.Get("per_page") == "" {
		params.Set("per_page", "100")
	}
	perPage, _ := strconv.Atoi(params.Get("per_page"))

	var results []T
	for page := 1; page <= maxPages; page++ {
		params.Set("page", strconv.Itoa(page))
		var batch []T
		found, err := f.get(ctx, path, params, &batch)
		if err != nil {
			return results, err
		}
		if !found || len(batch) == 0 {
			break
		}
		results = append(results, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return results, nil
}

// ============================================================================
// REPOSITORY SNAPSHOT
// ============================================================================

// FetchRepoData assembles the full repository snapshot. The repo record
// is fetched first as the existence gate; the eight signal groups are
// then collected in parallel, each degrading to its zero value on
// failure. partial reports whether any signal group failed.
func (f *Fetcher) FetchRepoData(ctx context.Context, ref *model.RepoRef) (facts *model.RepoFacts, partial bool, err error) {
	info, err := f.fetchRepoInfo(ctx, ref.Owner, ref.Repo)
	if err != nil {
		return nil, false, err
	}
	if info == nil {
		return nil, false, nil
	}

	facts = &model.RepoFacts{Repo: *info, FetchedAt: time.Now().UTC()}
	owner, repo := ref.Owner, ref.Repo

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	collect := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subCtx, cancel := context.WithTimeout(ctx, subFetchTimeout)
			defer cancel()
			if err := fn(subCtx); err != nil {
				f.log.Warn("repo signal fetch failed",
					"signal", name, "repo", owner+"/"+repo, "error", err.Error())
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}()
	}

	collect("contributors", func(ctx context.Context) error {
		stats, err := f.fetchContributorStats(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.Contributors = *stats
		mu.Unlock()
		return nil
	})
	collect("commits", func(ctx context.Context) error {
		activity, err := f.fetchCommitActivity(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.Commits = *activity
		mu.Unlock()
		return nil
	})
	collect("issues", func(ctx context.Context) error {
		stats, err := f.fetchIssueStats(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.Issues = *stats
		mu.Unlock()
		return nil
	})
	collect("prs", func(ctx context.Context) error {
		stats, err := f.fetchPRStats(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.PRs = *stats
		mu.Unlock()
		return nil
	})
	collect("releases", func(ctx context.Context) error {
		stats, err := f.fetchReleaseStats(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.Releases = *stats
		mu.Unlock()
		return nil
	})
	collect("security", func(ctx context.Context) error {
		sec, err := f.fetchSecurityFacts(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.Security = *sec
		mu.Unlock()
		return nil
	})
	collect("files", func(ctx context.Context) error {
		files, err := f.fetchRepoFiles(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.Files = *files
		mu.Unlock()
		return nil
	})
	collect("ci", func(ctx context.Context) error {
		ci, err := f.fetchCIStatus(ctx, owner, repo)
		if err != nil {
			return err
		}
		mu.Lock()
		facts.CI = *ci
		mu.Unlock()
		return nil
	})

	wg.Wait()
	return facts, failures > 0, nil
}

type ghRepo struct {
	Name           string   `json:"name"`
	FullName       string   `json:"full_name"`
	Description    string   `json:"description"`
	Stars          int      `json:"stargazers_count"`
	Forks          int      `json:"forks_count"`
	OpenIssues     int      `json:"open_issues_count"`
	Watchers       int      `json:"watchers_count"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	PushedAt       *time.Time `json:"pushed_at"`
	DefaultBranch  string   `json:"default_branch"`
	Language       string   `json:"language"`
	Topics         []string `json:"topics"`
	Archived       bool     `json:"archived"`
	Fork           bool     `json:"fork"`
	HasDiscussions bool     `json:"has_discussions"`
	License        *struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

func (f *Fetcher) fetchRepoInfo(ctx context.Context, owner, repo string) (*model.RepoInfo, error) {
	var data ghRepo
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo, nil, &data)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	info := &model.RepoInfo{
		Name:           data.Name,
		FullName:       data.FullName,
		Description:    data.Description,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
		PushedAt:       data.PushedAt,
		Stars:          data.Stars,
		Forks:          data.Forks,
		OpenIssues:     data.OpenIssues,
		Watchers:       data.Watchers,
		Language:       data.Language,
		Topics:         data.Topics,
		DefaultBranch:  data.DefaultBranch,
		IsArchived:     data.Archived,
		IsFork:         data.Fork,
		HasDiscussions: data.HasDiscussions,
		IsDeprecated:   detectDeprecation(data.Description, data.Topics),
	}
	if info.DefaultBranch == "" {
		info.DefaultBranch = "main"
	}
	if info.FullName == "" {
		info.FullName = owner + "/" + repo
	}
	if data.License != nil {
		info.License = data.License.SPDXID
	}
	return info, nil
}

var deprecationKeywords = []string{
	"deprecated",
	"no longer maintained",
	"unmaintained",
	"not maintained",
	"maintenance mode",
	"abandoned",
	"end of life",
	"eol",
	"superseded by",
	"replaced by",
	"use instead",
}

var deprecatedTopics = map[string]bool{
	"deprecated":   true,
	"unmaintained": true,
	"archived":     true,
	"abandoned":    true,
}

func detectDeprecation(description string, topics []string) bool {
	desc := strings.ToLower(description)
	for _, kw := range deprecationKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	for _, topic := range topics {
		if deprecatedTopics[strings.ToLower(topic)] {
			return true
		}
	}
	return false
}

// ============================================================================
// CONTRIBUTORS
// ============================================================================

type ghContributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

type ghCommit struct {
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Commit struct {
		Author struct {
			Date *time.Time `json:"date"`
		} `json:"author"`
		Verification struct {
			Verified bool `json:"verified"`
		} `json:"verification"`
	} `json:"commit"`
}

func (f *Fetcher) fetchContributorStats(ctx context.Context, owner, repo string) (*model.ContributorStats, error) {
	contributors, err := getPages[ghContributor](ctx, f, "/repos/"+owner+"/"+repo+"/contributors", nil, 5)
	if err != nil {
		return nil, err
	}
	if len(contributors) == 0 {
		return &model.ContributorStats{}, nil
	}

	stats := &model.ContributorStats{TotalContributors: len(contributors)}

	totalContributions := 0
	for _, c := range contributors {
		totalContributions += c.Contributions
	}
	if totalContributions == 0 {
		return stats, nil
	}

	stats.TopContributorPct = round1(float64(contributors[0].Contributions) / float64(totalContributions) * 100)

	threshold := float64(totalContributions) * 0.05
	for _, c := range contributors {
		if float64(c.Contributions) >= threshold {
			stats.ContributorsWith5Pct++
		}
	}
	stats.ContributionEntropy = contributionEntropy(contributors, totalContributions)

	// Active contributor windows come from the commit log.
	now := time.Now().UTC()
	sixMonthsAgo := now.AddDate(0, 0, -180)
	yearAgo := now.AddDate(0, 0, -365)

	params := url.Values{"since": {yearAgo.Format(time.RFC3339)}}
	commits, err := getPages[ghCommit](ctx, f, "/repos/"+owner+"/"+repo+"/commits", params, 10)
	if err != nil {
		return nil, err
	}

	active6mo := make(map[string]bool)
	activePrev := make(map[string]bool)
	for _, c := range commits {
		if c.Author == nil || c.Author.Login == "" || c.Commit.Author.Date == nil {
			continue
		}
		switch {
		case c.Commit.Author.Date.After(sixMonthsAgo):
			active6mo[c.Author.Login] = true
		case c.Commit.Author.Date.After(yearAgo):
			activePrev[c.Author.Login] = true
		}
	}

	firstTime := 0
	for login := range active6mo {
		if !activePrev[login] {
			firstTime++
		}
	}

	stats.ActiveContributors6mo = len(active6mo)
	stats.PrevActiveContributors = len(activePrev)
	stats.FirstTimeContributors = firstTime
	stats.GrowthTrend = classifyTrend(len(active6mo), len(activePrev))

	if stats.ActiveContributors6mo == 0 {
		stats.ActiveContributors6mo = min(stats.TotalContributors, 10)
	}
	return stats, nil
}

// classifyTrend marks growth or decline beyond a 30% swing.
func classifyTrend(current, previous int) model.ContributorTrend {
	switch {
	case float64(current) > float64(previous)*1.3:
		return model.TrendGrowing
	case float64(current) < float64(previous)*0.7:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// contributionEntropy is the Shannon entropy of the contribution
// distribution. Higher entropy means work is spread across more people.
func contributionEntropy(contributors []ghContributor, total int) float64 {
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range contributors {
		if c.Contributions <= 0 {
			continue
		}
		p := float64(c.Contributions) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return round2(entropy)
}

// ============================================================================
// COMMITS
// ============================================================================

func (f *Fetcher) fetchCommitActivity(ctx context.Context, owner, repo string) (*model.CommitActivity, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -365)
	params := url.Values{"since": {since.Format(time.RFC3339)}}
	commits, err := getPages[ghCommit](ctx, f, "/repos/"+owner+"/"+repo+"/commits", params, 10)
	if err != nil {
		return nil, err
	}

	activity := &model.CommitActivity{CommitsLastYear: len(commits)}
	activity.SignedCommitsPct = f.signedCommitsPct(ctx, owner, repo)
	if len(commits) == 0 {
		return activity, nil
	}

	if commits[0].Commit.Author.Date != nil {
		activity.LastCommitAt = commits[0].Commit.Author.Date
	}

	sixMonthsAgo := now.AddDate(0, 0, -180)
	for _, c := range commits {
		if c.Commit.Author.Date != nil && c.Commit.Author.Date.After(sixMonthsAgo) {
			activity.CommitsLast6mo++
		}
	}
	return activity, nil
}

// signedCommitsPct samples the most recent 100 commits without a date
// filter, so a dormant repo still reports the signing rate of its
// history. Failures degrade to 0 rather than failing the fetch.
func (f *Fetcher) signedCommitsPct(ctx context.Context, owner, repo string) float64 {
	var commits []ghCommit
	params := url.Values{"per_page": {"100"}}
	found, err := f.get(ctx, "/repos/"+owner+"/"+repo+"/commits", params, &commits)
	if err != nil || !found || len(commits) == 0 {
		return 0
	}
	signed := 0
	for _, c := range commits {
		if c.Commit.Verification.Verified {
			signed++
		}
	}
	return round1(float64(signed) / float64(len(commits)) * 100)
}

// ============================================================================
// ISSUES
// ============================================================================

type ghIssue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	State       string     `json:"state"`
	Body        string     `json:"body"`
	Comments    int        `json:"comments"`
	CreatedAt   *time.Time `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	PullRequest *struct{}  `json:"pull_request"`
	Labels      []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func withoutPRs(issues []ghIssue) []ghIssue {
	out := issues[:0:0]
	for _, i := range issues {
		if i.PullRequest == nil {
			out = append(out, i)
		}
	}
	return out
}

func (f *Fetcher) fetchIssueStats(ctx context.Context, owner, repo string) (*model.IssueStats, error) {
	path := "/repos/" + owner + "/" + repo + "/issues"

	open, err := getPages[ghIssue](ctx, f, path, url.Values{"state": {"open"}}, 3)
	if err != nil {
		return nil, err
	}
	open = withoutPRs(open)

	since := time.Now().UTC().AddDate(0, 0, -180)
	closed, err := getPages[ghIssue](ctx, f, path,
		url.Values{"state": {"closed"}, "since": {since.Format(time.RFC3339)}}, 3)
	if err != nil {
		return nil, err
	}
	closed = withoutPRs(closed)

	stats := &model.IssueStats{
		OpenIssues:      len(open),
		ClosedIssues6mo: len(closed),
	}

	for _, i := range open {
		for _, label := range i.Labels {
			name := strings.ToLower(label.Name)
			if name == "good first issue" || name == "good-first-issue" {
				stats.GoodFirstIssues++
				break
			}
		}
	}
	for _, i := range append(append([]ghIssue(nil), open...), closed...) {
		for _, label := range i.Labels {
			if strings.Contains(strings.ToLower(label.Name), "regression") {
				stats.RegressionIssues++
				break
			}
		}
	}

	if total := len(open) + len(closed); total > 0 {
		closeRate := round1(float64(len(closed)) / float64(total) * 100)
		stats.CloseRatePct = &closeRate
	}

	avgResponse, avgClose := f.issueResponseTimes(ctx, owner, repo, closed)
	stats.AvgResponseHours = avgResponse
	stats.AvgCloseHours = avgClose
	return stats, nil
}

// issueResponseTimes samples up to ten recently closed issues, timing
// first maintainer comment and close.
func (f *Fetcher) issueResponseTimes(ctx context.Context, owner, repo string, issues []ghIssue) (*float64, *float64) {
	if len(issues) > 10 {
		issues = issues[:10]
	}

	var responseTimes, closeTimes []float64
	for _, issue := range issues {
		if issue.CreatedAt == nil {
			continue
		}
		if issue.ClosedAt != nil {
			closeTimes = append(closeTimes, issue.ClosedAt.Sub(*issue.CreatedAt).Hours())
		}

		var comments []struct {
			CreatedAt *time.Time `json:"created_at"`
		}
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, issue.Number)
		found, err := f.get(ctx, path, url.Values{"per_page": {"1"}}, &comments)
		if err != nil || !found || len(comments) == 0 || comments[0].CreatedAt == nil {
			continue
		}
		responseTimes = append(responseTimes, comments[0].CreatedAt.Sub(*issue.CreatedAt).Hours())
	}

	return meanOrNil(responseTimes), meanOrNil(closeTimes)
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := round1(sum / float64(len(values)))
	return &mean
}

// ============================================================================
// PULL REQUESTS
// ============================================================================

type ghPull struct {
	CreatedAt *time.Time `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

func (f *Fetcher) fetchPRStats(ctx context.Context, owner, repo string) (*model.PRStats, error) {
	path := "/repos/" + owner + "/" + repo + "/pulls"

	open, err := getPages[ghPull](ctx, f, path, url.Values{"state": {"open"}}, 3)
	if err != nil {
		return nil, err
	}
	closed, err := getPages[ghPull](ctx, f, path, url.Values{"state": {"closed"}}, 3)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sixMonthsAgo := now.AddDate(0, 0, -180)
	ninetyDaysAgo := now.AddDate(0, 0, -90)

	merged6mo, closed6mo := 0, 0
	for _, pr := range closed {
		if pr.ClosedAt == nil || !pr.ClosedAt.After(sixMonthsAgo) {
			continue
		}
		closed6mo++
		if pr.MergedAt != nil {
			merged6mo++
		}
	}
	// Projects that merge from the command line never populate
	// merged_at; fall back to the closed count for them.
	if merged6mo == 0 {
		merged6mo = closed6mo
	}

	stale := 0
	for _, pr := range open {
		if pr.CreatedAt != nil && pr.CreatedAt.Before(ninetyDaysAgo) {
			stale++
		}
	}

	return &model.PRStats{
		OpenPRs:      len(open),
		MergedPRs6mo: merged6mo,
		StalePRs:     stale,
	}, nil
}

// ============================================================================
// RELEASES
// ============================================================================

type ghRelease struct {
	TagName     string     `json:"tag_name"`
	PublishedAt *time.Time `json:"published_at"`
	Prerelease  bool       `json:"prerelease"`
}

func (f *Fetcher) fetchReleaseStats(ctx context.Context, owner, repo string) (*model.ReleaseStats, error) {
	releases, err := getPages[ghRelease](ctx, f, "/repos/"+owner+"/"+repo+"/releases", nil, 10)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return &model.ReleaseStats{}, nil
	}

	stats := &model.ReleaseStats{
		TotalReleases: len(releases),
		LatestVersion: releases[0].TagName,
		ReleaseDates:  make(map[string]time.Time, len(releases)*2),
	}
	if releases[0].PublishedAt != nil {
		stats.LatestReleaseAt = releases[0].PublishedAt
	}

	yearAgo := time.Now().UTC().AddDate(0, 0, -365)
	prereleases := 0
	for _, r := range releases {
		if r.PublishedAt != nil {
			if r.PublishedAt.After(yearAgo) {
				stats.ReleasesLastYear++
			}
			if r.TagName != "" {
				stats.ReleaseDates[r.TagName] = *r.PublishedAt
				// Store both tag spellings so CVE fixed-version
				// strings match either way.
				if stripped, ok := strings.CutPrefix(r.TagName, "v"); ok {
					stats.ReleaseDates[stripped] = *r.PublishedAt
				}
			}
		}
		if r.Prerelease {
			prereleases++
		}
	}
	stats.PrereleaseRatio = round2(float64(prereleases) / float64(len(releases)))
	return stats, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

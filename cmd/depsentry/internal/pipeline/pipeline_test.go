// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/llm"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/supplychain"
)

// ===== FAKES =====

type fakeAdapter struct {
	eco     model.Ecosystem
	names   []string
	metas   map[string]*model.PackageMetadata
	metaErr map[string]error
	stats   map[string]*model.InstallStats
	repos   map[string]*model.RepoRef
}

func (a *fakeAdapter) Ecosystem() model.Ecosystem { return a.eco }

func (a *fakeAdapter) ListPackages(ctx context.Context, limit int) ([]string, error) {
	if limit > 0 && limit < len(a.names) {
		return a.names[:limit], nil
	}
	return a.names, nil
}

func (a *fakeAdapter) Metadata(ctx context.Context, name string) (*model.PackageMetadata, error) {
	if err := a.metaErr[name]; err != nil {
		return nil, err
	}
	if meta := a.metas[name]; meta != nil {
		return meta, nil
	}
	return nil, &registry.PackageNotFoundError{Ecosystem: a.eco, Name: name}
}

func (a *fakeAdapter) InstallStats(ctx context.Context, name string) (*model.InstallStats, error) {
	return a.stats[name], nil
}

func (a *fakeAdapter) SourceRepo(meta *model.PackageMetadata) *model.RepoRef {
	return a.repos[meta.Name]
}

type fakeForge struct {
	facts  *model.RepoFacts
	err    error
	rate   forge.RateLimit
	readme string
	issues []forge.IssueSummary

	fetchCalls int
}

func (f *fakeForge) FetchRepoData(ctx context.Context, ref *model.RepoRef) (*model.RepoFacts, bool, error) {
	f.fetchCalls++
	return f.facts, false, f.err
}

func (f *fakeForge) RateLimit() forge.RateLimit { return f.rate }

func (f *fakeForge) ReadmeContent(ctx context.Context, owner, repo string) (string, error) {
	return f.readme, nil
}

func (f *fakeForge) ChangelogContent(ctx context.Context, owner, repo string) (string, error) {
	return "", nil
}

func (f *fakeForge) GovernanceDocs(ctx context.Context, owner, repo string) (string, error) {
	return "", nil
}

func (f *fakeForge) RecentIssues(ctx context.Context, owner, repo string, limit int) ([]forge.IssueSummary, error) {
	return f.issues, nil
}

func (f *fakeForge) MaintainerComments(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeForge) SourceFilesForSecurity(ctx context.Context, owner, repo, language, defaultBranch string, maxBytes, maxFiles int) (string, error) {
	return "", nil
}

type fakeVulns struct {
	history *model.CVEHistory
	err     error
	calls   int
}

func (v *fakeVulns) FetchCVEHistory(ctx context.Context, name string, eco model.Ecosystem, ref *model.RepoRef, releaseDates map[string]time.Time) (*model.CVEHistory, error) {
	v.calls++
	return v.history, v.err
}

type fakeAggregator struct {
	data *model.AggregatorData
	err  error
}

func (a *fakeAggregator) FetchIntelligence(ctx context.Context, name, version string, eco model.Ecosystem, ref *model.RepoRef) (*model.AggregatorData, error) {
	return a.data, a.err
}

type fakeSupply struct {
	data  *registry.NPMSupplyChainData
	calls int
}

func (s *fakeSupply) SupplyChainData(ctx context.Context, name string) (*registry.NPMSupplyChainData, error) {
	s.calls++
	return s.data, nil
}

type fakeSupplyAnalyzer struct {
	out *model.SupplyChainData
}

func (a *fakeSupplyAnalyzer) Analyze(ctx context.Context, in supplychain.Input) *model.SupplyChainData {
	return a.out
}

type fakeAssessor struct {
	available      bool
	out            *model.LLMAssessments
	sequentialRuns int
	parallelRuns   int
}

func (a *fakeAssessor) Available(ctx context.Context) bool { return a.available }

func (a *fakeAssessor) PrimaryModel() string { return "test-model" }

func (a *fakeAssessor) RunSequential(ctx context.Context, in llm.Inputs) *model.LLMAssessments {
	a.sequentialRuns++
	return a.out
}

func (a *fakeAssessor) RunParallel(ctx context.Context, in llm.Inputs) *model.LLMAssessments {
	a.parallelRuns++
	return a.out
}

// ===== HELPERS =====

func healthyFacts() *model.RepoFacts {
	created := time.Now().UTC().AddDate(-3, 0, 0)
	pushed := time.Now().UTC().AddDate(0, 0, -2)
	return &model.RepoFacts{
		Repo: model.RepoInfo{
			Name:          "widget",
			FullName:      "acme/widget",
			CreatedAt:     &created,
			PushedAt:      &pushed,
			Stars:         1200,
			DefaultBranch: "main",
			Language:      "Go",
		},
		Contributors: model.ContributorStats{
			TotalContributors:     25,
			ActiveContributors6mo: 6,
			TopContributorPct:     40,
			ContributionEntropy:   3.2,
		},
		Commits: model.CommitActivity{CommitsLast6mo: 80, LastCommitAt: &pushed},
		Releases: model.ReleaseStats{
			TotalReleases:    30,
			ReleasesLastYear: 12,
			LatestVersion:    "v2.1.0",
			ReleaseDates:     map[string]time.Time{"v2.1.0": pushed},
		},
		Files:     model.RepoFiles{HasReadme: true, ReadmeSize: 4000, HasChangelog: true},
		CI:        model.CIStatus{HasGitHubActions: true, HasTestWorkflow: true},
		FetchedAt: time.Now().UTC(),
	}
}

type testEnv struct {
	pipeline   *Pipeline
	adapter    *fakeAdapter
	forge      *fakeForge
	vulns      *fakeVulns
	aggregator *fakeAggregator
	supply     *fakeSupply
	assessor   *fakeAssessor
	dataDir    string
}

func newTestEnv(t *testing.T, eco model.Ecosystem) *testEnv {
	t.Helper()
	dataDir := t.TempDir()
	installs := int64(500000)
	env := &testEnv{
		adapter: &fakeAdapter{
			eco:   eco,
			names: []string{"widget"},
			metas: map[string]*model.PackageMetadata{
				"widget": {Ecosystem: eco, Name: "widget", Version: "2.1.0", Description: "A widget"},
			},
			stats: map[string]*model.InstallStats{
				"widget": {DownloadsLast30d: &installs},
			},
			repos: map[string]*model.RepoRef{
				"widget": {Platform: model.PlatformGitHub, Owner: "acme", Repo: "widget"},
			},
		},
		forge:      &fakeForge{facts: healthyFacts(), rate: forge.RateLimit{Remaining: 4900, Total: 5000, Reset: time.Now().Add(30 * time.Minute)}},
		vulns:      &fakeVulns{history: &model.CVEHistory{Total: 0}},
		aggregator: &fakeAggregator{},
		supply:     &fakeSupply{},
		assessor:   &fakeAssessor{},
		dataDir:    dataDir,
	}
	env.pipeline = New(Config{
		Adapter:        env.adapter,
		Forge:          env.forge,
		Vulns:          env.vulns,
		Depsdev:        env.aggregator,
		Supply:         env.supply,
		SupplyAnalyzer: &fakeSupplyAnalyzer{},
		LLM:            env.assessor,
		DataDir:        dataDir,
	})
	return env
}

// ===== TESTS =====

func TestAnalyzePackageFullCoverage(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", true)
	require.NoError(t, err)

	assert.Equal(t, model.AvailabilityAvailable, artifact.DataAvailability)
	assert.Empty(t, artifact.UnavailableReason)
	require.NotNil(t, artifact.Scores)
	assert.NotEmpty(t, artifact.Scores.Grade)
	require.NotNil(t, artifact.GitHubData)
	assert.Equal(t, env.vulns.history, artifact.GitHubData.Security.CVEs)
	assert.NotEmpty(t, artifact.RunID)
	require.NotNil(t, artifact.AnalysisSummary)
	assert.Contains(t, artifact.AnalysisSummary.Highlights, "Actively maintained")

	saved, err := LoadAnalysis(env.dataDir, model.EcosystemNPM, "widget")
	require.NoError(t, err)
	assert.Equal(t, artifact.RunID, saved.RunID)

	snap := env.pipeline.Metrics().Snapshot()
	assert.Equal(t, 4900, snap.GitHubRateLimitRemaining)
	assert.Equal(t, "ok", snap.OSVStatus)
}

func TestAnalyzePackageNoRepo(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.adapter.repos = nil

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	assert.Equal(t, model.AvailabilityNoRepo, artifact.DataAvailability)
	assert.Equal(t, "No source repository URL found in package metadata", artifact.UnavailableReason)
	assert.Nil(t, artifact.Scores)
	assert.Nil(t, artifact.GitHubData)
	require.NotNil(t, artifact.AnalysisSummary)
	assert.Equal(t, artifact.UnavailableReason, artifact.AnalysisSummary.UnavailableReason)
	assert.Equal(t, 0, env.forge.fetchCalls)
	assert.Equal(t, 0, env.vulns.calls)
}

func TestAnalyzePackageRepoNotFound(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.forge.facts = nil

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	assert.Equal(t, model.AvailabilityRepoNotFound, artifact.DataAvailability)
	assert.Contains(t, artifact.UnavailableReason, "acme/widget")
	assert.Nil(t, artifact.Scores)
}

func TestAnalyzePackagePrivateRepo(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.forge.facts = nil
	env.forge.err = forge.ErrForbidden

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	assert.Equal(t, model.AvailabilityPrivateRepo, artifact.DataAvailability)
	assert.Contains(t, artifact.UnavailableReason, "private or access restricted")
}

func TestAnalyzePackageForgeErrorAborts(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.forge.facts = nil
	env.forge.err = errors.New("github unreachable")

	_, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github unreachable")
}

func TestAnalyzePackageNotGitHub(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.adapter.repos["widget"] = &model.RepoRef{Platform: model.PlatformGitLab, Owner: "acme", Repo: "widget"}

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	assert.Equal(t, model.AvailabilityNotGitHub, artifact.DataAvailability)
	assert.Contains(t, artifact.UnavailableReason, "gitlab")
	assert.Nil(t, artifact.Scores)
	assert.Equal(t, 0, env.forge.fetchCalls)
}

func TestAnalyzePackagePartialForgePromotion(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.adapter.repos["widget"] = &model.RepoRef{Platform: model.PlatformGitLab, Owner: "acme", Repo: "widget"}
	env.aggregator.data = &model.AggregatorData{
		ProjectMetrics: &model.BasicProjectMetrics{Stars: 900, Forks: 120},
	}

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	assert.Equal(t, model.AvailabilityPartialForge, artifact.DataAvailability)
	assert.Contains(t, artifact.UnavailableReason, "deps.dev")
	require.NotNil(t, artifact.Scores, "partial forge coverage still scores")
	require.NotNil(t, artifact.AnalysisSummary)
	assert.Equal(t, artifact.AggregatorData.ProjectMetrics, artifact.AnalysisSummary.ForgeMetrics)
}

func TestSupplyChainStageIsNPMOnly(t *testing.T) {
	env := newTestEnv(t, model.EcosystemHomebrew)
	env.adapter.metas["widget"].Ecosystem = model.EcosystemHomebrew

	_, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)
	assert.Equal(t, 0, env.supply.calls)

	npm := newTestEnv(t, model.EcosystemNPM)
	_, err = npm.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)
	assert.Equal(t, 1, npm.supply.calls)
}

func TestLLMStageSkippedWhenUnavailable(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.assessor.available = false
	env.assessor.out = &model.LLMAssessments{Maintenance: &model.MaintenanceAssessment{Status: "maintained"}}

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	assert.Nil(t, artifact.LLMAssessments)
	assert.Equal(t, 0, env.assessor.sequentialRuns)
	assert.False(t, env.pipeline.Metrics().Snapshot().LLMAvailable)
}

func TestLLMStageRunsWhenAvailable(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.assessor.available = true
	env.assessor.out = &model.LLMAssessments{Maintenance: &model.MaintenanceAssessment{Status: "actively-maintained"}}

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)

	require.NotNil(t, artifact.LLMAssessments)
	assert.Equal(t, 1, env.assessor.sequentialRuns)
	assert.Equal(t, 0, env.assessor.parallelRuns)

	snap := env.pipeline.Metrics().Snapshot()
	assert.True(t, snap.LLMAvailable)
	assert.Equal(t, "test-model", snap.LLMModel)
	assert.Equal(t, "actively-maintained", artifact.AnalysisSummary.MaintenanceStatus)
}

func TestLLMEmptyResultIsDropped(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.assessor.available = true
	env.assessor.out = &model.LLMAssessments{}

	artifact, err := env.pipeline.AnalyzePackage(context.Background(), "widget", false)
	require.NoError(t, err)
	assert.Nil(t, artifact.LLMAssessments)
}

func TestAnalyzeBatch(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.adapter.names = []string{"widget", "gadget", "broken"}
	env.adapter.metas["gadget"] = &model.PackageMetadata{Ecosystem: model.EcosystemNPM, Name: "gadget", Version: "1.0.0"}
	env.adapter.repos["gadget"] = &model.RepoRef{Platform: model.PlatformGitHub, Owner: "acme", Repo: "gadget"}
	env.adapter.metaErr = map[string]error{"broken": errors.New("registry down")}

	var seen []string
	results, err := env.pipeline.AnalyzeBatch(context.Background(), 0, func(current, total int, name string) {
		assert.Equal(t, 3, total)
		seen = append(seen, name)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"widget", "gadget", "broken"}, seen)
	require.Len(t, results, 2)

	// Both scored artifacts carry batch percentiles.
	for _, artifact := range results {
		require.NotNil(t, artifact.Scores)
		require.NotNil(t, artifact.Scores.Percentile, artifact.Name)
	}

	snap := env.pipeline.Metrics().Snapshot()
	assert.Equal(t, 3, snap.CompletedPackages)
	assert.Equal(t, 2, snap.ScoredCount)
	assert.Equal(t, 1, snap.ErrorCount)
	assert.False(t, snap.IsRunning)
	require.Len(t, snap.RecentErrors, 1)
	assert.Equal(t, "AnalysisError", snap.RecentErrors[0].ErrorType)

	_, err = os.Stat(filepath.Join(env.dataDir, "final", "npm.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.dataDir, "final", "stats.json"))
	assert.NoError(t, err)
}

func TestAnalyzeBatchHonorsCancellation(t *testing.T) {
	env := newTestEnv(t, model.EcosystemNPM)
	env.adapter.names = []string{"widget", "gadget"}

	ctx, cancel := context.WithCancel(context.Background())
	var results []*model.PackageAnalysis
	var err error
	results, err = env.pipeline.AnalyzeBatch(ctx, 0, func(current, total int, name string) {
		cancel()
	})
	_ = results
	require.ErrorIs(t, err, context.Canceled)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "PackageNotFound", ErrorKind(&registry.PackageNotFoundError{Name: "x"}))
	assert.Equal(t, "Timeout", ErrorKind(context.DeadlineExceeded))
	assert.Equal(t, "Canceled", ErrorKind(context.Canceled))
	assert.Equal(t, "AnalysisError", ErrorKind(errors.New("boom")))
}

// rendezvousForge blocks every content fetch until all expected fetches
// have arrived, so the test fails fast unless they overlap in time.
type rendezvousForge struct {
	total    int
	barrier  chan struct{}
	mu       sync.Mutex
	arrived  int
	timedOut bool
}

func newRendezvousForge(total int) *rendezvousForge {
	return &rendezvousForge{total: total, barrier: make(chan struct{})}
}

func (f *rendezvousForge) wait() {
	f.mu.Lock()
	f.arrived++
	if f.arrived == f.total {
		close(f.barrier)
	}
	f.mu.Unlock()
	// With total 1 the barrier opens on the first call, turning the
	// forge into a plain canned fake.

	select {
	case <-f.barrier:
	case <-time.After(2 * time.Second):
		f.mu.Lock()
		f.timedOut = true
		f.mu.Unlock()
	}
}

func (f *rendezvousForge) overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.timedOut
}

func (f *rendezvousForge) FetchRepoData(ctx context.Context, ref *model.RepoRef) (*model.RepoFacts, bool, error) {
	return nil, false, nil
}

func (f *rendezvousForge) RateLimit() forge.RateLimit { return forge.RateLimit{} }

func (f *rendezvousForge) ReadmeContent(ctx context.Context, owner, repo string) (string, error) {
	f.wait()
	return "readme text", nil
}

func (f *rendezvousForge) ChangelogContent(ctx context.Context, owner, repo string) (string, error) {
	f.wait()
	return "changelog text", nil
}

func (f *rendezvousForge) GovernanceDocs(ctx context.Context, owner, repo string) (string, error) {
	f.wait()
	return "governance text", nil
}

func (f *rendezvousForge) RecentIssues(ctx context.Context, owner, repo string, limit int) ([]forge.IssueSummary, error) {
	f.wait()
	return []forge.IssueSummary{{Title: "an issue"}}, nil
}

func (f *rendezvousForge) MaintainerComments(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	f.wait()
	return []string{"a comment"}, nil
}

func (f *rendezvousForge) SourceFilesForSecurity(ctx context.Context, owner, repo, language, defaultBranch string, maxBytes, maxFiles int) (string, error) {
	f.wait()
	return "code sample", nil
}

func TestGatherLLMInputsParallelOverlapsFetches(t *testing.T) {
	forgeFake := newRendezvousForge(6)
	p := New(Config{
		Forge:       forgeFake,
		LLMParallel: true,
		DataDir:     t.TempDir(),
	})

	facts := &model.RepoFacts{Files: model.RepoFiles{
		HasReadme:       true,
		HasChangelog:    true,
		HasContributing: true,
	}}
	ref := &model.RepoRef{Platform: model.PlatformGitHub, Owner: "a", Repo: "b"}

	in := p.gatherLLMInputs(context.Background(), "lodash", model.EcosystemNPM, ref, facts)

	assert.True(t, forgeFake.overlapped(), "content fetches ran one at a time")
	assert.Equal(t, "readme text", in.Readme)
	assert.Equal(t, "changelog text", in.Changelog)
	assert.Equal(t, "governance text", in.Governance)
	assert.Equal(t, "code sample", in.CodeSamples)
	assert.Len(t, in.Issues, 1)
	assert.Len(t, in.Comments, 1)
}

func TestGatherLLMInputsSequentialSkipsAbsentContent(t *testing.T) {
	forgeFake := newRendezvousForge(1)
	p := New(Config{
		Forge:   forgeFake,
		DataDir: t.TempDir(),
	})

	// No readme, changelog or governance flags: only issues, comments
	// and code samples are fetched.
	facts := &model.RepoFacts{}
	ref := &model.RepoRef{Platform: model.PlatformGitHub, Owner: "a", Repo: "b"}

	in := p.gatherLLMInputs(context.Background(), "lodash", model.EcosystemNPM, ref, facts)

	assert.Empty(t, in.Readme)
	assert.Empty(t, in.Changelog)
	assert.Empty(t, in.Governance)
	assert.Equal(t, "code sample", in.CodeSamples)
	assert.Len(t, in.Issues, 1)
	assert.Len(t, in.Comments, 1)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates a full package analysis: registry
// metadata, repository facts, vulnerability history, supply-chain
// inspection, aggregator intelligence, optional LLM assessments and
// finally scoring. Every stage after metadata degrades instead of
// aborting; a package with no reachable repository still produces an
// artifact that records why it could not be scored.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/aggregator"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/llm"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/metrics"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/scoring"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/supplychain"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// ===== COLLABORATOR CONTRACTS =====

// Forge is the repository-host surface the pipeline drives.
type Forge interface {
	FetchRepoData(ctx context.Context, ref *model.RepoRef) (*model.RepoFacts, bool, error)
	RateLimit() forge.RateLimit
	ReadmeContent(ctx context.Context, owner, repo string) (string, error)
	ChangelogContent(ctx context.Context, owner, repo string) (string, error)
	GovernanceDocs(ctx context.Context, owner, repo string) (string, error)
	RecentIssues(ctx context.Context, owner, repo string, limit int) ([]forge.IssueSummary, error)
	MaintainerComments(ctx context.Context, owner, repo string, limit int) ([]string, error)
	SourceFilesForSecurity(ctx context.Context, owner, repo, language, defaultBranch string, maxBytes, maxFiles int) (string, error)
}

// VulnSource resolves the vulnerability history of a package.
type VulnSource interface {
	FetchCVEHistory(ctx context.Context, name string, eco model.Ecosystem, ref *model.RepoRef, releaseDates map[string]time.Time) (*model.CVEHistory, error)
}

// Aggregator provides cross-forge intelligence (Scorecard, dependency
// graph, SLSA attestations).
type Aggregator interface {
	FetchIntelligence(ctx context.Context, name, version string, eco model.Ecosystem, ref *model.RepoRef) (*model.AggregatorData, error)
}

// SupplySource pulls the packument extract the supply-chain analyzer
// consumes. Only the npm adapter implements it.
type SupplySource interface {
	SupplyChainData(ctx context.Context, name string) (*registry.NPMSupplyChainData, error)
}

// SupplyAnalyzer runs the supply-chain sub-analyses.
type SupplyAnalyzer interface {
	Analyze(ctx context.Context, in supplychain.Input) *model.SupplyChainData
}

// Assessor runs the qualitative LLM assessments.
type Assessor interface {
	Available(ctx context.Context) bool
	PrimaryModel() string
	RunSequential(ctx context.Context, in llm.Inputs) *model.LLMAssessments
	RunParallel(ctx context.Context, in llm.Inputs) *model.LLMAssessments
}

// ===== PIPELINE =====

// Content limits for the LLM fetch phase. The security sample is capped
// so a single prompt stays within a local model's context window.
const (
	recentIssueLimit       = 15
	maintainerCommentLimit = 30
	securitySampleBytes    = 15000
	securitySampleFiles    = 10
)

// Config assembles a Pipeline. Adapter, Forge, Vulns and Aggregator are
// required; the rest are optional and disable their stage when nil.
type Config struct {
	Adapter registry.Adapter
	Forge   Forge
	Vulns   VulnSource
	Depsdev Aggregator

	// Supply and SupplyAnalyzer enable the supply-chain stage for npm.
	Supply         SupplySource
	SupplyAnalyzer SupplyAnalyzer

	// LLM enables the assessment stage. LLMParallel fans the
	// assessments out concurrently to keep a local GPU busy.
	LLM         Assessor
	LLMParallel bool

	// Metrics defaults to a collector persisting under DataDir.
	Metrics *metrics.Collector

	DataDir string
	Log     *logging.Logger
}

// Pipeline runs package analyses for one ecosystem.
type Pipeline struct {
	adapter        registry.Adapter
	forge          Forge
	vulns          VulnSource
	depsdev        Aggregator
	supply         SupplySource
	supplyAnalyzer SupplyAnalyzer
	llm            Assessor
	llmParallel    bool

	metrics *metrics.Collector
	dataDir string
	log     *logging.Logger
	tracer  trace.Tracer
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector(filepath.Join(cfg.DataDir, ".metrics.json"))
	}
	return &Pipeline{
		adapter:        cfg.Adapter,
		forge:          cfg.Forge,
		vulns:          cfg.Vulns,
		depsdev:        cfg.Depsdev,
		supply:         cfg.Supply,
		supplyAnalyzer: cfg.SupplyAnalyzer,
		llm:            cfg.LLM,
		llmParallel:    cfg.LLMParallel,
		metrics:        cfg.Metrics,
		dataDir:        cfg.DataDir,
		log:            cfg.Log,
		tracer:         otel.Tracer("depsentry/pipeline"),
	}
}

// Ecosystem returns the ecosystem this pipeline analyzes.
func (p *Pipeline) Ecosystem() model.Ecosystem { return p.adapter.Ecosystem() }

// Adapter returns the registry adapter backing this pipeline.
func (p *Pipeline) Adapter() registry.Adapter { return p.adapter }

// DataDir returns the artifact root.
func (p *Pipeline) DataDir() string { return p.dataDir }

// Metrics returns the shared collector.
func (p *Pipeline) Metrics() *metrics.Collector { return p.metrics }

// stage opens a trace span and a stage timer; the returned func closes
// both.
func (p *Pipeline) stage(ctx context.Context, name string) (context.Context, func()) {
	sctx, span := p.tracer.Start(ctx, "pipeline."+name)
	stop := p.metrics.TimeStage(name)
	return sctx, func() {
		stop()
		span.End()
	}
}

// AnalyzePackage runs the full analysis for one package. A metadata or
// repository fetch failure returns an error; every later stage records
// its failure and degrades. When save is set the artifact is written
// under <dataDir>/analyzed/<ecosystem>/.
func (p *Pipeline) AnalyzePackage(ctx context.Context, name string, save bool) (*model.PackageAnalysis, error) {
	eco := p.adapter.Ecosystem()
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze_package",
		trace.WithAttributes(
			attribute.String("package.name", name),
			attribute.String("package.ecosystem", string(eco)),
		))
	defer span.End()

	p.metrics.StartPackage(name)

	// Stage 1: registry metadata and install stats.
	sctx, done := p.stage(ctx, "metadata")
	meta, err := p.adapter.Metadata(sctx, name)
	if err != nil {
		done()
		return nil, fmt.Errorf("fetch metadata for %s: %w", name, err)
	}
	var installCount *int64
	if stats, err := p.adapter.InstallStats(sctx, name); err != nil {
		p.log.Debug("install stats unavailable", "package", name, "error", err.Error())
	} else if stats != nil {
		installCount = stats.DownloadsLast30d
	}
	done()
	repoRef := p.adapter.SourceRepo(meta)

	// Stage 2: repository facts with availability classification.
	availability := model.AvailabilityAvailable
	reason := ""
	var facts *model.RepoFacts
	switch {
	case repoRef == nil:
		availability = model.AvailabilityNoRepo
		reason = "No source repository URL found in package metadata"
	case repoRef.Platform != model.PlatformGitHub:
		availability = model.AvailabilityNotGitHub
		reason = fmt.Sprintf("Repository is on %s, not GitHub. Limited analysis available.", repoRef.Platform)
	default:
		sctx, done := p.stage(ctx, "github")
		fetched, partial, err := p.forge.FetchRepoData(sctx, repoRef)
		done()
		if rl := p.forge.RateLimit(); rl.Total > 0 {
			reset := rl.Reset
			p.metrics.UpdateGitHubRateLimit(rl.Remaining, rl.Total, &reset)
		}
		switch {
		case errors.Is(err, forge.ErrForbidden):
			availability = model.AvailabilityPrivateRepo
			reason = fmt.Sprintf("Repository %s/%s is private or access restricted", repoRef.Owner, repoRef.Repo)
		case err != nil:
			return nil, fmt.Errorf("fetch repository data for %s: %w", name, err)
		case fetched == nil:
			availability = model.AvailabilityRepoNotFound
			reason = fmt.Sprintf("Repository %s/%s not accessible (may be private, deleted, or renamed)", repoRef.Owner, repoRef.Repo)
		default:
			facts = fetched
			if partial {
				p.log.Debug("partial repository snapshot", "package", name,
					"repo", repoRef.Owner+"/"+repoRef.Repo)
			}
		}
	}

	// Stage 3: CVE history from OSV, attached to the security facts.
	if facts != nil && repoRef != nil {
		sctx, done := p.stage(ctx, "cve")
		history, err := p.vulns.FetchCVEHistory(sctx, name, eco, repoRef, facts.Releases.ReleaseDates)
		done()
		if err != nil {
			p.metrics.UpdateOSVStatus("error")
			p.log.Warn("cve history fetch failed", "package", name, "error", err.Error())
		} else {
			p.metrics.UpdateOSVStatus("ok")
			facts.Security.CVEs = history
		}
	}

	// Stage 4: supply-chain inspection, npm only.
	var supply *model.SupplyChainData
	if p.supply != nil && p.supplyAnalyzer != nil && eco == model.EcosystemNPM {
		sctx, done := p.stage(ctx, "supply_chain")
		scData, err := p.supply.SupplyChainData(sctx, name)
		if err != nil {
			p.log.Debug("supply chain fetch failed", "package", name, "error", err.Error())
		} else if scData != nil {
			supply = p.supplyAnalyzer.Analyze(sctx, supplychain.Input{Registry: scData})
		}
		done()
	}

	// Stage 5: aggregator intelligence. Non-GitHub packages with
	// project data are promoted to partial coverage.
	var agg *model.AggregatorData
	{
		sctx, done := p.stage(ctx, "deps_dev")
		fetched, err := p.depsdev.FetchIntelligence(sctx, name, meta.Version, eco, repoRef)
		done()
		if err != nil {
			p.log.Debug("aggregator fetch failed", "package", name, "error", err.Error())
		} else if !aggregator.Empty(fetched) {
			agg = fetched
			if availability == model.AvailabilityNotGitHub {
				availability = model.AvailabilityPartialForge
				reason = fmt.Sprintf("Repository is on %s. Using deps.dev for cross-forge analysis.", repoRef.Platform)
			}
		}
	}

	// Stage 6: LLM assessments, only with repository facts in hand.
	var assessments *model.LLMAssessments
	if p.llm != nil && facts != nil && repoRef != nil {
		sctx, done := p.stage(ctx, "llm")
		if p.llm.Available(sctx) {
			p.metrics.UpdateLLMStatus(true, p.llm.PrimaryModel())
			in := p.gatherLLMInputs(sctx, name, eco, repoRef, facts)
			if p.llmParallel {
				assessments = p.llm.RunParallel(sctx, in)
			} else {
				assessments = p.llm.RunSequential(sctx, in)
			}
			if assessments.Empty() {
				assessments = nil
			}
		} else {
			p.metrics.UpdateLLMStatus(false, "")
		}
		done()
	}

	// Stage 7: scoring. Full repository facts or partial aggregator
	// coverage both score; everything else records the reason only.
	canScore := (availability == model.AvailabilityAvailable && facts != nil) ||
		(availability == model.AvailabilityPartialForge && agg != nil)
	var scores *model.Scores
	_, done = p.stage(ctx, "scoring")
	if canScore {
		scores = scoring.Score(scoring.Input{
			Facts:        facts,
			LLM:          assessments,
			SupplyChain:  supply,
			Aggregator:   agg,
			Metadata:     meta,
			InstallCount: installCount,
			Ecosystem:    eco,
		})
	}
	done()

	now := time.Now().UTC()
	artifact := &model.PackageAnalysis{
		Ecosystem:         eco,
		Name:              name,
		Description:       meta.Description,
		Version:           meta.Version,
		Homepage:          meta.Homepage,
		Repository:        repoRef,
		InstallCount30d:   installCount,
		DataAvailability:  availability,
		UnavailableReason: reason,
		Scores:            scores,
		GitHubData:        facts,
		LLMAssessments:    assessments,
		SupplyChain:       supply,
		AggregatorData:    agg,
		RunID:             uuid.NewString(),
		AnalyzedAt:        now,
		DataFetchedAt:     now,
	}
	if canScore {
		artifact.AnalysisSummary = buildSummary(artifact)
	} else {
		artifact.AnalysisSummary = &model.AnalysisSummary{UnavailableReason: reason}
	}

	if save {
		_, done := p.stage(ctx, "save")
		err := SaveAnalysis(p.dataDir, artifact)
		done()
		if err != nil {
			return artifact, fmt.Errorf("save analysis for %s: %w", name, err)
		}
	}
	return artifact, nil
}

// gatherLLMInputs fetches the repository content the assessments read.
// Each fetch failure leaves its field empty, skipping that assessment.
// In parallel mode all fetches are issued concurrently; each writes a
// distinct field of the result.
func (p *Pipeline) gatherLLMInputs(ctx context.Context, name string, eco model.Ecosystem, ref *model.RepoRef, facts *model.RepoFacts) llm.Inputs {
	in := llm.Inputs{PackageName: name, Ecosystem: eco, Facts: facts}

	fetches := []func(){
		func() {
			if !facts.Files.HasReadme {
				return
			}
			readme, err := p.forge.ReadmeContent(ctx, ref.Owner, ref.Repo)
			if err != nil {
				p.log.Debug("readme fetch failed", "package", name, "error", err.Error())
			}
			in.Readme = readme
		},
		func() {
			issues, err := p.forge.RecentIssues(ctx, ref.Owner, ref.Repo, recentIssueLimit)
			if err != nil {
				p.log.Debug("issue fetch failed", "package", name, "error", err.Error())
			}
			in.Issues = issues
		},
		func() {
			comments, err := p.forge.MaintainerComments(ctx, ref.Owner, ref.Repo, maintainerCommentLimit)
			if err != nil {
				p.log.Debug("comment fetch failed", "package", name, "error", err.Error())
			}
			in.Comments = comments
		},
		func() {
			if !facts.Files.HasChangelog {
				return
			}
			changelog, err := p.forge.ChangelogContent(ctx, ref.Owner, ref.Repo)
			if err != nil {
				p.log.Debug("changelog fetch failed", "package", name, "error", err.Error())
			}
			in.Changelog = changelog
		},
		func() {
			if !facts.Files.HasContributing && !facts.Files.HasGovernance {
				return
			}
			governance, err := p.forge.GovernanceDocs(ctx, ref.Owner, ref.Repo)
			if err != nil {
				p.log.Debug("governance fetch failed", "package", name, "error", err.Error())
			}
			in.Governance = governance
		},
		func() {
			samples, err := p.forge.SourceFilesForSecurity(ctx, ref.Owner, ref.Repo,
				facts.Repo.Language, facts.Repo.DefaultBranch, securitySampleBytes, securitySampleFiles)
			if err != nil {
				p.log.Debug("source sample fetch failed", "package", name, "error", err.Error())
			}
			in.CodeSamples = samples
		},
	}

	if p.llmParallel {
		var wg sync.WaitGroup
		for _, fetch := range fetches {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fetch()
			}()
		}
		wg.Wait()
	} else {
		for _, fetch := range fetches {
			fetch()
		}
	}
	return in
}

// AnalyzeBatch lists up to limit packages from the adapter, analyzes
// each one and writes the ecosystem summary. Per-package failures are
// recorded and skipped. progress, when non-nil, is called before each
// package with 1-based position.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, limit int, progress func(current, total int, name string)) ([]*model.PackageAnalysis, error) {
	names, err := p.adapter.ListPackages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s packages: %w", p.adapter.Ecosystem(), err)
	}

	p.metrics.StartBatch(len(names), string(p.adapter.Ecosystem()))
	defer p.metrics.FinishBatch()

	results := make([]*model.PackageAnalysis, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if progress != nil {
			progress(i+1, len(names), name)
		}
		artifact, err := p.AnalyzePackage(ctx, name, true)
		if err != nil {
			p.log.Warn("package analysis failed", "package", name, "error", err.Error())
			p.metrics.RecordError(name, ErrorKind(err), err.Error())
			p.metrics.CompletePackage(name, metrics.StatusError, nil, "", err.Error())
			continue
		}
		p.recordOutcome(artifact)
		results = append(results, artifact)
	}

	p.assignPercentiles(results)
	if len(results) > 0 {
		if err := WriteEcosystemSummary(p.dataDir, p.adapter.Ecosystem(), results); err != nil {
			return results, fmt.Errorf("write ecosystem summary: %w", err)
		}
	}
	return results, nil
}

func (p *Pipeline) recordOutcome(artifact *model.PackageAnalysis) {
	if artifact.Scores != nil {
		score := artifact.Scores.Overall
		p.metrics.CompletePackage(artifact.Name, metrics.StatusScored, &score, artifact.Scores.Grade, "")
		return
	}
	p.metrics.CompletePackage(artifact.Name, metrics.StatusUnavailable, nil, "", artifact.UnavailableReason)
}

// assignPercentiles ranks the scored artifacts within the batch and
// rewrites their files so the persisted artifacts carry percentiles.
func (p *Pipeline) assignPercentiles(results []*model.PackageAnalysis) {
	var scored []*model.Scores
	for _, artifact := range results {
		if artifact.Scores != nil {
			scored = append(scored, artifact.Scores)
		}
	}
	if len(scored) == 0 {
		return
	}
	scoring.AssignPercentiles(scored)
	for _, artifact := range results {
		if artifact.Scores == nil {
			continue
		}
		if err := SaveAnalysis(p.dataDir, artifact); err != nil {
			p.log.Warn("percentile rewrite failed", "package", artifact.Name, "error", err.Error())
		}
	}
}

// ErrorKind maps an analysis failure to the short label recorded in
// the metrics error log.
func ErrorKind(err error) string {
	var notFound *registry.PackageNotFoundError
	switch {
	case errors.As(err, &notFound):
		return "PackageNotFound"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	default:
		return "AnalysisError"
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// minCommentsForAnalysis gates the communication assessment; fewer
// comments than this say nothing about style.
const minCommentsForAnalysis = 5

// Orchestrator fans package content out to the assessment prompts. The
// primary model handles the two content-heavy tasks (README, code
// security); the fast model handles the rest.
type Orchestrator struct {
	backend   Backend
	model     string
	fastModel string
	log       *logging.Logger
}

// NewOrchestrator builds an orchestrator on backend.
func NewOrchestrator(backend Backend, primaryModel, fastModel string, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Default()
	}
	if fastModel == "" {
		fastModel = primaryModel
	}
	return &Orchestrator{backend: backend, model: primaryModel, fastModel: fastModel, log: log}
}

// PrimaryModel returns the model name used for content-heavy tasks.
func (o *Orchestrator) PrimaryModel() string {
	return o.model
}

// Available reports whether the backend serves either configured model.
func (o *Orchestrator) Available(ctx context.Context) bool {
	names, err := o.backend.Models(ctx)
	if err != nil {
		o.log.Debug("llm availability probe failed", "backend", o.backend.Name(), "error", err.Error())
		return false
	}
	for _, name := range names {
		if strings.Contains(name, o.model) || strings.Contains(name, o.fastModel) {
			return true
		}
	}
	return false
}

// Inputs carries the pre-fetched content one assessment run consumes.
// Empty fields skip their assessment.
type Inputs struct {
	PackageName string
	Ecosystem   model.Ecosystem
	Readme      string
	Issues      []forge.IssueSummary
	Comments    []string
	Changelog   string
	Governance  string
	CodeSamples string
	Facts       *model.RepoFacts
}

type assessTask struct {
	name string
	skip bool
	run  func(ctx context.Context) error
}

// tasks builds the per-assessment closures. Each writes its own field
// in out, so they are safe to run concurrently.
func (o *Orchestrator) tasks(in Inputs, out *model.LLMAssessments) []assessTask {
	return []assessTask{
		{name: "readme", skip: in.Readme == "", run: func(ctx context.Context) error {
			a, err := o.AssessReadme(ctx, in.Readme, in.PackageName, in.Ecosystem)
			out.Readme = a
			return err
		}},
		{name: "sentiment", skip: len(in.Issues) == 0, run: func(ctx context.Context) error {
			a, err := o.AssessSentiment(ctx, in.Issues, in.PackageName, in.Ecosystem)
			out.Sentiment = a
			return err
		}},
		{name: "communication", skip: len(in.Comments) < minCommentsForAnalysis, run: func(ctx context.Context) error {
			a, err := o.AssessCommunication(ctx, in.Comments, in.PackageName, in.Ecosystem)
			out.Communication = a
			return err
		}},
		{name: "maintenance", skip: in.Facts == nil, run: func(ctx context.Context) error {
			a, err := o.AssessMaintenance(ctx, in.Facts, in.PackageName, in.Ecosystem)
			out.Maintenance = a
			return err
		}},
		{name: "changelog", skip: in.Changelog == "", run: func(ctx context.Context) error {
			a, err := o.AssessChangelog(ctx, in.Changelog, in.PackageName, in.Ecosystem)
			out.Changelog = a
			return err
		}},
		{name: "governance", skip: in.Governance == "", run: func(ctx context.Context) error {
			a, err := o.AssessGovernance(ctx, in.Governance, in.PackageName, in.Ecosystem)
			out.Governance = a
			return err
		}},
		{name: "security", skip: in.CodeSamples == "", run: func(ctx context.Context) error {
			a, err := o.AssessSecurity(ctx, in.CodeSamples, in.PackageName, in.Ecosystem)
			out.Security = a
			return err
		}},
	}
}

// RunSequential runs every applicable assessment one after another.
// A failed assessment is logged and skipped; it never aborts the rest.
func (o *Orchestrator) RunSequential(ctx context.Context, in Inputs) *model.LLMAssessments {
	out := &model.LLMAssessments{}
	for _, task := range o.tasks(in, out) {
		if task.skip {
			continue
		}
		if err := task.run(ctx); err != nil {
			o.log.Warn("llm assessment failed", "assessment", task.name,
				"package", in.PackageName, "error", err.Error())
		}
	}
	o.finalize(out)
	return out
}

// RunParallel runs every applicable assessment concurrently. Local
// model servers sit mostly idle during sequential runs; concurrency
// keeps the GPU busy.
func (o *Orchestrator) RunParallel(ctx context.Context, in Inputs) *model.LLMAssessments {
	out := &model.LLMAssessments{}
	g := new(errgroup.Group)
	for _, task := range o.tasks(in, out) {
		if task.skip {
			continue
		}
		g.Go(func() error {
			if err := task.run(ctx); err != nil {
				o.log.Warn("llm assessment failed", "assessment", task.name,
					"package", in.PackageName, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	o.finalize(out)
	return out
}

func (o *Orchestrator) finalize(out *model.LLMAssessments) {
	if out.Empty() {
		return
	}
	now := time.Now().UTC()
	out.Model = o.model
	out.GeneratedAt = &now
}

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
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// fakeBackend answers prompts by matching a marker substring and
// records which model served each call.
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]string
	modelsOut []string
	modelsErr error
	failOn    string
	calls     []string
}

func (b *fakeBackend) Generate(_ context.Context, mdl, prompt string) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, mdl)
	b.mu.Unlock()
	if b.failOn != "" && strings.Contains(prompt, b.failOn) {
		return "", fmt.Errorf("model exploded")
	}
	for marker, resp := range b.responses {
		if strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return `{}`, nil
}

func (b *fakeBackend) Models(context.Context) ([]string, error) {
	return b.modelsOut, b.modelsErr
}

func (b *fakeBackend) Name() string { return "fake" }

func fullInputs() Inputs {
	return Inputs{
		PackageName: "leftpad",
		Ecosystem:   model.EcosystemNPM,
		Readme:      "# leftpad\n\nPads strings on the left.",
		Issues:      []forge.IssueSummary{{Title: "broken on node 20"}},
		Comments:    []string{"thanks!", "fixed in 1.2", "use the option", "see docs", "released"},
		Changelog:   "## 1.2.0\n- fix padding",
		Governance:  "# CONTRIBUTING\n\nOpen a PR.",
		CodeSamples: "=== FILE: index.js ===\nmodule.exports = pad;",
		Facts:       &model.RepoFacts{},
	}
}

func TestRunSequentialAllAssessments(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		"Analyze this README":      `{"clarity": 9, "overall": 8, "summary": "clear"}`,
		"security concerns":        `{"overall_security_score": 7, "summary": "fine"}`,
		"community health":         `{"sentiment": "positive", "frustration_level": 2}`,
		"maintainer responses":     `{"helpfulness": 8, "communication_style": "good"}`,
		"maintenance status":       `{"status": "actively-maintained", "confidence": 9}`,
		"changelog":                `{"overall_score": 6, "well_categorized": true}`,
		"governance documentation": `{"bus_factor_risk": "low", "has_succession_plan": true}`,
	}}
	o := NewOrchestrator(backend, "llama3.1:70b", "llama3.1:8b", nil)

	out := o.RunSequential(context.Background(), fullInputs())
	require.NotNil(t, out)
	assert.Len(t, backend.calls, 7)

	require.NotNil(t, out.Readme)
	assert.Equal(t, 9, out.Readme.Clarity)
	assert.Equal(t, 5, out.Readme.Installation, "absent dimensions default to 5")

	require.NotNil(t, out.Security)
	assert.Equal(t, 7, out.Security.OverallScore)

	require.NotNil(t, out.Sentiment)
	assert.Equal(t, "positive", out.Sentiment.Sentiment)

	require.NotNil(t, out.Communication)
	require.NotNil(t, out.Maintenance)
	assert.Equal(t, "actively-maintained", out.Maintenance.Status)

	require.NotNil(t, out.Changelog)
	require.NotNil(t, out.Governance)
	assert.Equal(t, "low", out.Governance.BusFactorRisk)

	assert.Equal(t, "llama3.1:70b", out.Model)
	require.NotNil(t, out.GeneratedAt)
}

func TestModelRouting(t *testing.T) {
	backend := &fakeBackend{}
	o := NewOrchestrator(backend, "big", "small", nil)

	in := fullInputs()
	_ = o.RunSequential(context.Background(), in)

	// README and security use the primary model; the other five use the
	// fast model.
	big, small := 0, 0
	for _, m := range backend.calls {
		switch m {
		case "big":
			big++
		case "small":
			small++
		}
	}
	assert.Equal(t, 2, big)
	assert.Equal(t, 5, small)
}

func TestGatesSkipMissingInputs(t *testing.T) {
	backend := &fakeBackend{}
	o := NewOrchestrator(backend, "big", "small", nil)

	out := o.RunSequential(context.Background(), Inputs{
		PackageName: "ghost",
		Ecosystem:   model.EcosystemPyPI,
		Comments:    []string{"one", "two"},
	})

	assert.True(t, out.Empty())
	assert.Empty(t, backend.calls, "nothing to assess, nothing to call")
	assert.Empty(t, out.Model)
	assert.Nil(t, out.GeneratedAt)
}

func TestFailedAssessmentIsIsolated(t *testing.T) {
	backend := &fakeBackend{failOn: "Analyze this README"}
	o := NewOrchestrator(backend, "big", "small", nil)

	out := o.RunSequential(context.Background(), fullInputs())

	assert.Nil(t, out.Readme)
	assert.NotNil(t, out.Maintenance)
	assert.NotNil(t, out.Security)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	backend := &fakeBackend{}
	o := NewOrchestrator(backend, "big", "small", nil)

	out := o.RunParallel(context.Background(), fullInputs())
	require.NotNil(t, out)
	assert.Len(t, backend.calls, 7)
	assert.False(t, out.Empty())
	assert.NotNil(t, out.Readme)
	assert.NotNil(t, out.Security)
	assert.NotNil(t, out.Sentiment)
	assert.NotNil(t, out.Communication)
	assert.NotNil(t, out.Maintenance)
	assert.NotNil(t, out.Changelog)
	assert.NotNil(t, out.Governance)
}

func TestAvailable(t *testing.T) {
	backend := &fakeBackend{modelsOut: []string{"llama3.1:70b-instruct-q4", "mistral:7b"}}
	o := NewOrchestrator(backend, "llama3.1:70b", "llama3.1:8b", nil)
	assert.True(t, o.Available(context.Background()))

	backend.modelsOut = []string{"mistral:7b"}
	assert.False(t, o.Available(context.Background()))

	backend.modelsErr = fmt.Errorf("connection refused")
	assert.False(t, o.Available(context.Background()))
}

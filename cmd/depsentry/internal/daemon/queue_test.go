// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/pipeline"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
)

// ===== FAKES =====

type fakeAdapter struct {
	eco     model.Ecosystem
	names   []string
	listErr error
}

func (f *fakeAdapter) Ecosystem() model.Ecosystem { return f.eco }

func (f *fakeAdapter) ListPackages(_ context.Context, limit int) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && limit < len(f.names) {
		return f.names[:limit], nil
	}
	return f.names, nil
}

func (f *fakeAdapter) Metadata(context.Context, string) (*model.PackageMetadata, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAdapter) InstallStats(context.Context, string) (*model.InstallStats, error) {
	return nil, nil
}

func (f *fakeAdapter) SourceRepo(*model.PackageMetadata) *model.RepoRef { return nil }

// ===== HELPERS =====

func writeArtifact(t *testing.T, dataDir string, eco model.Ecosystem, name string, analyzedAt time.Time) {
	t.Helper()
	err := pipeline.SaveAnalysis(dataDir, &model.PackageAnalysis{
		Ecosystem:        eco,
		Name:             name,
		DataAvailability: model.AvailabilityAvailable,
		AnalyzedAt:       analyzedAt,
	})
	require.NoError(t, err)
}

func newQueueWith(dataDir string, adapters ...registry.Adapter) *WorkQueue {
	return NewWorkQueue(QueueConfig{DataDir: dataDir, Adapters: adapters})
}

func drainSources(q *WorkQueue, n int) []Source {
	var sources []Source
	for i := 0; i < n; i++ {
		pkg := q.Next()
		if pkg == nil {
			break
		}
		sources = append(sources, pkg.Source)
	}
	return sources
}

// ===== TESTS =====

func TestRefreshClassifiesPackages(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now().UTC()
	writeArtifact(t, dataDir, model.EcosystemNPM, "fresh", now.Add(-time.Hour))
	writeArtifact(t, dataDir, model.EcosystemNPM, "aging", now.Add(-10*24*time.Hour))

	q := newQueueWith(dataDir, &fakeAdapter{
		eco:   model.EcosystemNPM,
		names: []string{"fresh", "aging", "unseen"},
	})

	stats, err := q.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewPackages)
	assert.Equal(t, 1, stats.StalePackages)
	assert.Equal(t, 1, stats.UpToDate)
	assert.Equal(t, 3, stats.Ecosystems[model.EcosystemNPM])
	assert.Equal(t, 2, q.Remaining())
}

func TestRefreshSortsStaleOldestFirst(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now().UTC()
	writeArtifact(t, dataDir, model.EcosystemNPM, "older", now.Add(-30*24*time.Hour))
	writeArtifact(t, dataDir, model.EcosystemNPM, "oldest", now.Add(-60*24*time.Hour))
	writeArtifact(t, dataDir, model.EcosystemNPM, "old", now.Add(-8*24*time.Hour))

	q := newQueueWith(dataDir, &fakeAdapter{
		eco:   model.EcosystemNPM,
		names: []string{"older", "oldest", "old"},
	})
	_, err := q.Refresh(context.Background())
	require.NoError(t, err)

	var order []string
	for pkg := q.Next(); pkg != nil; pkg = q.Next() {
		order = append(order, pkg.Name)
		assert.Equal(t, SourceStale, pkg.Source)
	}
	assert.Equal(t, []string{"oldest", "older", "old"}, order)
}

func TestRefreshSkipsFailedEcosystem(t *testing.T) {
	q := newQueueWith(t.TempDir(),
		&fakeAdapter{eco: model.EcosystemNPM, listErr: errors.New("registry down")},
		&fakeAdapter{eco: model.EcosystemHomebrew, names: []string{"jq", "fd"}},
	)
	stats, err := q.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NewPackages)
	assert.NotContains(t, stats.Ecosystems, model.EcosystemNPM)
	assert.Equal(t, 2, stats.Ecosystems[model.EcosystemHomebrew])
}

func TestNextInterleavesNewAndStale(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now().UTC()
	for _, name := range []string{"s1", "s2", "s3"} {
		writeArtifact(t, dataDir, model.EcosystemNPM, name, now.Add(-20*24*time.Hour))
	}
	q := newQueueWith(dataDir, &fakeAdapter{
		eco:   model.EcosystemNPM,
		names: []string{"n1", "n2", "n3", "n4", "n5", "n6", "s1", "s2", "s3"},
	})
	_, err := q.Refresh(context.Background())
	require.NoError(t, err)

	sources := drainSources(q, 8)
	assert.Equal(t, []Source{
		SourceNew, SourceNew, SourceNew, SourceStale,
		SourceNew, SourceNew, SourceNew, SourceStale,
	}, sources)
}

func TestNextFallsThroughWhenOneQueueEmpty(t *testing.T) {
	dataDir := t.TempDir()
	q := newQueueWith(dataDir, &fakeAdapter{
		eco:   model.EcosystemNPM,
		names: []string{"a", "b"},
	})
	_, err := q.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Source{SourceNew, SourceNew}, drainSources(q, 5))
	assert.Nil(t, q.Next())
}

func TestAnalyzedAtResolvesScopedNames(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now().UTC()
	writeArtifact(t, dataDir, model.EcosystemNPM, "@babel/core", now.Add(-time.Hour))

	q := newQueueWith(dataDir, &fakeAdapter{
		eco:   model.EcosystemNPM,
		names: []string{"@babel/core"},
	})
	stats, err := q.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NewPackages)
	assert.Equal(t, 1, stats.UpToDate)
}

func TestStateReportsQueueView(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now().UTC()
	writeArtifact(t, dataDir, model.EcosystemNPM, "stale-one", now.Add(-15*24*time.Hour))
	q := newQueueWith(dataDir, &fakeAdapter{
		eco:   model.EcosystemNPM,
		names: []string{"new-one", "new-two", "stale-one"},
	})
	_, err := q.Refresh(context.Background())
	require.NoError(t, err)

	st := q.State()
	assert.Equal(t, 2, st.NewRemaining)
	assert.Equal(t, 1, st.StaleRemaining)
	assert.Equal(t, 0, st.CyclePosition)
	assert.Equal(t, 3, st.TotalKnown)

	require.NotNil(t, q.Next())
	st = q.State()
	assert.Equal(t, 1, st.NewRemaining)
	assert.Equal(t, 1, st.CyclePosition)
}

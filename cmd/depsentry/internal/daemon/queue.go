// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package daemon runs continuous package analysis: a work queue that
// interleaves never-analyzed and stale packages, a rate-limit-aware
// loop with exponential backoff, and periodic publication of results.
package daemon

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/pipeline"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// Source says why a package is queued.
type Source string

const (
	// SourceNew marks a package with no persisted artifact.
	SourceNew Source = "new"
	// SourceStale marks a package whose artifact is older than the
	// staleness threshold.
	SourceStale Source = "stale"
)

// QueuedPackage is one unit of daemon work.
type QueuedPackage struct {
	Ecosystem    model.Ecosystem
	Name         string
	Source       Source
	LastAnalyzed *time.Time
}

// QueueStats summarizes one refresh.
type QueueStats struct {
	NewPackages   int
	StalePackages int
	UpToDate      int
	Ecosystems    map[model.Ecosystem]int
}

// QueueState is a point-in-time view for monitoring.
type QueueState struct {
	NewRemaining   int `json:"new_remaining"`
	StaleRemaining int `json:"stale_remaining"`
	CyclePosition  int `json:"cycle_position"`
	TotalKnown     int `json:"total_known_packages"`
}

// QueueConfig builds a WorkQueue. Zero-valued knobs take the defaults
// (7-day staleness, 3 new : 1 stale interleave).
type QueueConfig struct {
	DataDir        string
	Adapters       []registry.Adapter
	StaleThreshold time.Duration
	NewRatio       int
	StaleRatio     int
	Log            *logging.Logger
}

const (
	defaultStaleThreshold = 7 * 24 * time.Hour
	defaultNewRatio       = 3
	defaultStaleRatio     = 1
)

// WorkQueue discovers packages across all configured ecosystems and
// hands them out by interleaved priority: new packages in discovery
// order, stale packages oldest-first, at a configurable ratio. When one
// queue runs dry the other is served directly.
type WorkQueue struct {
	dataDir        string
	adapters       []registry.Adapter
	staleThreshold time.Duration
	newRatio       int
	staleRatio     int
	log            *logging.Logger

	mu         sync.Mutex
	newQueue   []QueuedPackage
	staleQueue []QueuedPackage
	cyclePos   int
	totalKnown int
}

// NewWorkQueue builds a WorkQueue from cfg.
func NewWorkQueue(cfg QueueConfig) *WorkQueue {
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = defaultStaleThreshold
	}
	if cfg.NewRatio <= 0 {
		cfg.NewRatio = defaultNewRatio
	}
	if cfg.StaleRatio <= 0 {
		cfg.StaleRatio = defaultStaleRatio
	}
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	return &WorkQueue{
		dataDir:        cfg.DataDir,
		adapters:       cfg.Adapters,
		staleThreshold: cfg.StaleThreshold,
		newRatio:       cfg.NewRatio,
		staleRatio:     cfg.StaleRatio,
		log:            cfg.Log,
	}
}

// Refresh rebuilds both queues by listing every ecosystem and reading
// each package's persisted analyzed_at. An adapter listing failure
// skips that ecosystem; the rest still refresh.
func (q *WorkQueue) Refresh(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{Ecosystems: map[model.Ecosystem]int{}}
	var newQueue, staleQueue []QueuedPackage
	totalKnown := 0
	cutoff := time.Now().UTC().Add(-q.staleThreshold)

	for _, adapter := range q.adapters {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		eco := adapter.Ecosystem()
		names, err := adapter.ListPackages(ctx, 0)
		if err != nil {
			q.log.Error("package listing failed", "ecosystem", string(eco), "error", err.Error())
			continue
		}
		stats.Ecosystems[eco] = len(names)
		totalKnown += len(names)

		for _, name := range names {
			analyzed := q.analyzedAt(eco, name)
			switch {
			case analyzed == nil:
				newQueue = append(newQueue, QueuedPackage{Ecosystem: eco, Name: name, Source: SourceNew})
				stats.NewPackages++
			case analyzed.Before(cutoff):
				staleQueue = append(staleQueue, QueuedPackage{
					Ecosystem: eco, Name: name, Source: SourceStale, LastAnalyzed: analyzed,
				})
				stats.StalePackages++
			default:
				stats.UpToDate++
			}
		}
	}

	sort.SliceStable(staleQueue, func(i, j int) bool {
		return staleQueue[i].LastAnalyzed.Before(*staleQueue[j].LastAnalyzed)
	})

	q.mu.Lock()
	q.newQueue = newQueue
	q.staleQueue = staleQueue
	q.cyclePos = 0
	q.totalKnown = totalKnown
	q.mu.Unlock()

	q.log.Info("work queue refreshed",
		"new", stats.NewPackages, "stale", stats.StalePackages, "up_to_date", stats.UpToDate)
	return stats, nil
}

// analyzedAt reads the analyzed_at timestamp of a persisted artifact,
// nil when the artifact is missing or unreadable.
func (q *WorkQueue) analyzedAt(eco model.Ecosystem, name string) *time.Time {
	data, err := os.ReadFile(pipeline.ArtifactPath(q.dataDir, eco, name))
	if err != nil {
		return nil
	}
	var probe struct {
		AnalyzedAt *time.Time `json:"analyzed_at"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		q.log.Warn("unreadable analysis artifact", "ecosystem", string(eco), "package", name)
		return nil
	}
	return probe.AnalyzedAt
}

// Next pops the next package by interleaved priority, nil when both
// queues are empty.
func (q *WorkQueue) Next() *QueuedPackage {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case len(q.newQueue) == 0 && len(q.staleQueue) == 0:
		return nil
	case len(q.staleQueue) == 0:
		return q.popNew()
	case len(q.newQueue) == 0:
		return q.popStale()
	}

	cycleLength := q.newRatio + q.staleRatio
	if q.cyclePos < q.newRatio {
		q.cyclePos++
		return q.popNew()
	}
	q.cyclePos++
	if q.cyclePos >= cycleLength {
		q.cyclePos = 0
	}
	return q.popStale()
}

func (q *WorkQueue) popNew() *QueuedPackage {
	pkg := q.newQueue[0]
	q.newQueue = q.newQueue[1:]
	return &pkg
}

func (q *WorkQueue) popStale() *QueuedPackage {
	pkg := q.staleQueue[0]
	q.staleQueue = q.staleQueue[1:]
	return &pkg
}

// Remaining returns the number of queued packages.
func (q *WorkQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.newQueue) + len(q.staleQueue)
}

// State returns the queue's monitoring view.
func (q *WorkQueue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueState{
		NewRemaining:   len(q.newQueue),
		StaleRemaining: len(q.staleQueue),
		CyclePosition:  q.cyclePos,
		TotalKnown:     q.totalKnown,
	}
}

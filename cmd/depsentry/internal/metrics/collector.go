// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Exporter pushes a snapshot to an external metrics sink.
type Exporter interface {
	Export(ctx context.Context, snap Snapshot) error
}

// Collector accumulates pipeline metrics and persists them after each
// significant mutation. File write errors are swallowed so monitoring
// can never break analysis.
type Collector struct {
	mu       sync.Mutex
	path     string
	snap     Snapshot
	prom     *promMetrics
	exporter Exporter
	now      func() time.Time
}

// NewCollector loads any existing metrics file at path so cumulative
// counts survive restarts.
func NewCollector(path string) *Collector {
	c := &Collector{
		path: path,
		prom: newPromMetrics(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	c.snap = c.loadFile()
	return c
}

// SetExporter attaches an external sink, flushed on FinishBatch.
func (c *Collector) SetExporter(e Exporter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exporter = e
}

// StartBatch resets session fields for a new batch while preserving
// cumulative statistics from the persisted file.
func (c *Collector) StartBatch(total int, ecosystem string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.loadFile()
	now := c.now()

	next := existing.clone()
	next.Ecosystem = ecosystem
	next.TotalPackages = total
	next.CompletedPackages = 0
	next.CurrentPackage = ""
	next.StartTime = &now
	next.IsRunning = true
	next.LastUpdated = &now

	c.snap = next
	c.save()
}

// StartPackage marks a package as in flight.
func (c *Collector) StartPackage(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.CurrentPackage = name
	c.touch()
	c.save()
}

// CompletePackage records one finished package. Score and grade apply
// only to StatusScored completions.
func (c *Collector) CompletePackage(name, status string, score *float64, grade, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.CompletedPackages++
	c.snap.CurrentPackage = ""
	c.touch()

	switch status {
	case StatusScored:
		c.snap.ScoredCount++
		if score != nil {
			c.snap.TotalScore += *score
		}
		if grade != "" {
			c.snap.GradeDistribution[grade]++
		}
	case StatusUnavailable:
		c.snap.UnavailableCount++
	default:
		c.snap.ErrorCount++
	}

	c.snap.ActivityLog = append(c.snap.ActivityLog, ActivityEntry{
		Timestamp: c.now(),
		Package:   name,
		Status:    status,
		Score:     score,
		Grade:     grade,
		Message:   message,
	})
	if n := len(c.snap.ActivityLog); n > maxActivityEntries {
		c.snap.ActivityLog = c.snap.ActivityLog[n-maxActivityEntries:]
	}

	c.prom.packagesAnalyzed.WithLabelValues(status).Inc()
	c.save()
}

// RecordError appends to the error ring buffer.
func (c *Collector) RecordError(pkg, errorType, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.RecentErrors = append(c.snap.RecentErrors, ErrorEntry{
		Timestamp: c.now(),
		Package:   pkg,
		ErrorType: errorType,
		Message:   message,
	})
	if n := len(c.snap.RecentErrors); n > maxRecentErrors {
		c.snap.RecentErrors = c.snap.RecentErrors[n-maxRecentErrors:]
	}
	c.touch()
	c.save()
}

// RecordStageTiming folds one stage duration into the running average.
// Timings arrive for every stage of every package, so this mutation
// does not trigger a file write.
func (c *Collector) RecordStageTiming(stage string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.snap.StageCounts[stage]
	avg := c.snap.StageTimings[stage]
	c.snap.StageCounts[stage] = count + 1
	c.snap.StageTimings[stage] = (avg*float64(count) + d.Seconds()) / float64(count+1)

	c.prom.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// TimeStage starts a stage timer; invoke the returned func when the
// stage finishes.
//
//	defer collector.TimeStage("github")()
func (c *Collector) TimeStage(stage string) func() {
	start := time.Now()
	return func() {
		c.RecordStageTiming(stage, time.Since(start))
	}
}

// UpdateGitHubRateLimit refreshes the cached rate-limit view.
func (c *Collector) UpdateGitHubRateLimit(remaining, total int, reset *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.GitHubRateLimitRemaining = remaining
	c.snap.GitHubRateLimitTotal = total
	c.snap.GitHubRateLimitReset = reset
	c.prom.rateLimitRemaining.Set(float64(remaining))
	c.touch()
}

// UpdateLLMStatus records backend availability and the active model.
func (c *Collector) UpdateLLMStatus(available bool, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.LLMAvailable = available
	c.snap.LLMModel = model
	c.touch()
}

// UpdateOSVStatus records the vulnerability service health string.
func (c *Collector) UpdateOSVStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.OSVStatus = status
	c.touch()
}

// SetQueueDepth publishes the work-queue depth gauge.
func (c *Collector) SetQueueDepth(n int) {
	c.prom.queueDepth.Set(float64(n))
}

// FinishBatch clears the running flag and flushes the exporter.
func (c *Collector) FinishBatch() {
	c.mu.Lock()
	c.snap.IsRunning = false
	c.snap.CurrentPackage = ""
	c.touch()
	c.save()
	exporter := c.exporter
	snap := c.snap.clone()
	c.mu.Unlock()

	if exporter != nil {
		// Best effort; a down sink must not block shutdown.
		_ = exporter.Export(context.Background(), snap)
	}
}

// Snapshot returns a deep copy of the current state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.clone()
}

// Load re-reads the metrics file, for cross-process readers.
func (c *Collector) Load() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadFile()
}

func (c *Collector) touch() {
	now := c.now()
	c.snap.LastUpdated = &now
}

// save must be called with the lock held.
func (c *Collector) save() {
	data, err := json.MarshalIndent(c.snap, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, c.path)
}

func (c *Collector) loadFile() Snapshot {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return NewSnapshot()
	}
	snap := NewSnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return NewSnapshot()
	}
	return snap
}

// ReadSnapshotFile parses a metrics file without a collector, for the
// dashboard and status server.
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewSnapshot(), err
	}
	snap := NewSnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return NewSnapshot(), err
	}
	return snap, nil
}

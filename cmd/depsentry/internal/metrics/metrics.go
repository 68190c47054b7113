// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics keeps a mutex-protected snapshot of pipeline progress,
// persisted to a JSON file after each meaningful mutation. The dashboard
// and the status server read the file; the pipeline and daemon write it.
package metrics

import "time"

// Completion statuses recorded per package.
const (
	StatusScored      = "scored"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

const (
	maxRecentErrors    = 10
	maxActivityEntries = 50
)

// ErrorEntry is one recorded pipeline error.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Package   string    `json:"package"`
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
}

// ActivityEntry is one completed package analysis.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Package   string    `json:"package"`
	Status    string    `json:"status"`
	Score     *float64  `json:"score"`
	Grade     string    `json:"grade,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Snapshot is the full pipeline state as written to the metrics file.
// Session fields reset per batch; cumulative fields survive restarts.
type Snapshot struct {
	Ecosystem         string     `json:"ecosystem"`
	TotalPackages     int        `json:"total_packages"`
	CompletedPackages int        `json:"completed_packages"`
	CurrentPackage    string     `json:"current_package"`
	StartTime         *time.Time `json:"start_time"`

	ScoredCount       int            `json:"scored_count"`
	UnavailableCount  int            `json:"unavailable_count"`
	ErrorCount        int            `json:"error_count"`
	GradeDistribution map[string]int `json:"grade_distribution"`
	TotalScore        float64        `json:"total_score"`

	GitHubRateLimitRemaining int        `json:"github_rate_limit_remaining"`
	GitHubRateLimitTotal     int        `json:"github_rate_limit_total"`
	GitHubRateLimitReset     *time.Time `json:"github_rate_limit_reset"`
	LLMAvailable             bool       `json:"llm_available"`
	LLMModel                 string     `json:"llm_model"`
	OSVStatus                string     `json:"osv_status"`

	// Running averages in seconds, keyed by stage name.
	StageTimings map[string]float64 `json:"stage_timings"`
	StageCounts  map[string]int     `json:"stage_counts"`

	RecentErrors []ErrorEntry    `json:"recent_errors"`
	ActivityLog  []ActivityEntry `json:"activity_log"`

	IsRunning   bool       `json:"is_running"`
	LastUpdated *time.Time `json:"last_updated"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		GradeDistribution:        map[string]int{"A": 0, "B": 0, "C": 0, "D": 0, "F": 0},
		GitHubRateLimitRemaining: 5000,
		GitHubRateLimitTotal:     5000,
		OSVStatus:                "unknown",
		StageTimings:             map[string]float64{},
		StageCounts:              map[string]int{},
	}
}

// ProgressPercent returns batch completion in percent.
func (s Snapshot) ProgressPercent() float64 {
	if s.TotalPackages == 0 {
		return 0
	}
	return float64(s.CompletedPackages) / float64(s.TotalPackages) * 100
}

// ElapsedSeconds returns seconds since the batch started.
func (s Snapshot) ElapsedSeconds(now time.Time) float64 {
	if s.StartTime == nil {
		return 0
	}
	return now.Sub(*s.StartTime).Seconds()
}

// ETASeconds extrapolates the remaining time from the completion rate so
// far. Nil until at least one package has completed.
func (s Snapshot) ETASeconds(now time.Time) *float64 {
	if s.CompletedPackages == 0 || s.TotalPackages == 0 {
		return nil
	}
	elapsed := s.ElapsedSeconds(now)
	if elapsed <= 0 {
		return nil
	}
	rate := float64(s.CompletedPackages) / elapsed
	eta := float64(s.TotalPackages-s.CompletedPackages) / rate
	return &eta
}

// AverageScore returns the mean score across scored packages, nil when
// nothing has been scored yet.
func (s Snapshot) AverageScore() *float64 {
	if s.ScoredCount == 0 {
		return nil
	}
	avg := s.TotalScore / float64(s.ScoredCount)
	return &avg
}

// clone deep-copies the snapshot so readers never alias collector state.
func (s Snapshot) clone() Snapshot {
	out := s
	out.GradeDistribution = make(map[string]int, len(s.GradeDistribution))
	for k, v := range s.GradeDistribution {
		out.GradeDistribution[k] = v
	}
	out.StageTimings = make(map[string]float64, len(s.StageTimings))
	for k, v := range s.StageTimings {
		out.StageTimings[k] = v
	}
	out.StageCounts = make(map[string]int, len(s.StageCounts))
	for k, v := range s.StageCounts {
		out.StageCounts[k] = v
	}
	out.RecentErrors = append([]ErrorEntry(nil), s.RecentErrors...)
	out.ActivityLog = append([]ActivityEntry(nil), s.ActivityLog...)
	return out
}

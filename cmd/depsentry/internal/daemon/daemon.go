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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/forge"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/metrics"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/pipeline"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

// Loop tuning defaults.
const (
	defaultRateLimitThreshold   = 50
	defaultQueueRefreshInterval = time.Hour
	defaultEmptyQueueSleep      = 60 * time.Second
	defaultBackoffBase          = 5 * time.Second
	defaultBackoffMax           = 5 * time.Minute
	defaultPollInterval         = 10 * time.Second

	// rateLimitBuffer pads the sleep past the provider's reset moment.
	rateLimitBuffer = 10 * time.Second
	// rateLimitMinSleep is the floor for a rate-limit sleep.
	rateLimitMinSleep = time.Minute
)

// RateLimitExhaustedError signals that the remote API budget is too low
// to continue; the daemon sleeps until Reset.
type RateLimitExhaustedError struct {
	Reset     time.Time
	Remaining int
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("rate limit exhausted (%d remaining), resets at %s",
		e.Remaining, e.Reset.Format(time.RFC3339))
}

// PackageAnalyzer runs one package through the analysis pipeline.
type PackageAnalyzer interface {
	AnalyzePackage(ctx context.Context, name string, save bool) (*model.PackageAnalysis, error)
}

// Config assembles a Daemon. Queue, Pipelines and Metrics are required.
type Config struct {
	Queue     *WorkQueue
	Pipelines map[model.Ecosystem]PackageAnalyzer
	Metrics   *metrics.Collector

	// RateLimit exposes the repo fetcher's cached rate-limit state.
	// Nil disables preemptive rate-limit sleeps.
	RateLimit func() forge.RateLimit

	// Publisher uploads results on cadence. Nil disables publishing.
	Publisher *Publisher

	RateLimitThreshold   int
	QueueRefreshInterval time.Duration
	EmptyQueueSleep      time.Duration
	BackoffBase          time.Duration
	BackoffMax           time.Duration
	// PollInterval bounds each slice of an interruptible sleep.
	PollInterval time.Duration

	Log *logging.Logger
}

// Daemon drives continuous analysis until Stop is called or the
// context is canceled. The package in flight always completes before a
// cooperative stop takes effect.
type Daemon struct {
	queue     *WorkQueue
	pipelines map[model.Ecosystem]PackageAnalyzer
	metrics   *metrics.Collector
	rateLimit func() forge.RateLimit
	publisher *Publisher
	log       *logging.Logger

	rateLimitThreshold   int
	queueRefreshInterval time.Duration
	emptyQueueSleep      time.Duration
	backoffBase          time.Duration
	backoffMax           time.Duration
	pollInterval         time.Duration

	stopped           atomic.Bool
	running           atomic.Bool
	consecutiveErrors atomic.Int64
	totalAnalyzed     atomic.Int64
	lastRefresh       atomic.Pointer[time.Time]
	now               func() time.Time
}

// Status is the daemon's monitoring view, safe to read while Run is in
// flight.
type Status struct {
	IsRunning         bool            `json:"is_running"`
	TotalAnalyzed     int             `json:"total_analyzed"`
	ConsecutiveErrors int             `json:"consecutive_errors"`
	LastQueueRefresh  *time.Time      `json:"last_queue_refresh,omitempty"`
	Queue             QueueState      `json:"queue"`
	Publisher         PublisherStatus `json:"publisher"`
}

// New builds a Daemon from cfg.
func New(cfg Config) *Daemon {
	if cfg.RateLimitThreshold <= 0 {
		cfg.RateLimitThreshold = defaultRateLimitThreshold
	}
	if cfg.QueueRefreshInterval <= 0 {
		cfg.QueueRefreshInterval = defaultQueueRefreshInterval
	}
	if cfg.EmptyQueueSleep <= 0 {
		cfg.EmptyQueueSleep = defaultEmptyQueueSleep
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	return &Daemon{
		queue:                cfg.Queue,
		pipelines:            cfg.Pipelines,
		metrics:              cfg.Metrics,
		rateLimit:            cfg.RateLimit,
		publisher:            cfg.Publisher,
		log:                  cfg.Log,
		rateLimitThreshold:   cfg.RateLimitThreshold,
		queueRefreshInterval: cfg.QueueRefreshInterval,
		emptyQueueSleep:      cfg.EmptyQueueSleep,
		backoffBase:          cfg.BackoffBase,
		backoffMax:           cfg.BackoffMax,
		pollInterval:         cfg.PollInterval,
		now:                  time.Now,
	}
}

// Stop requests a cooperative shutdown. The current package completes,
// a final publish runs, and Run returns.
func (d *Daemon) Stop() {
	d.stopped.Store(true)
}

// TotalAnalyzed returns the number of packages completed this run.
func (d *Daemon) TotalAnalyzed() int { return int(d.totalAnalyzed.Load()) }

// Status returns the daemon's current monitoring view.
func (d *Daemon) Status() Status {
	st := Status{
		IsRunning:         d.running.Load(),
		TotalAnalyzed:     int(d.totalAnalyzed.Load()),
		ConsecutiveErrors: int(d.consecutiveErrors.Load()),
		LastQueueRefresh:  d.lastRefresh.Load(),
		Publisher:         d.publisher.Status(),
	}
	if d.queue != nil {
		st.Queue = d.queue.State()
	}
	return st
}

// Run executes the daemon loop until Stop or context cancellation.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info("starting continuous analysis daemon",
		"queue_refresh_interval", d.queueRefreshInterval.String(),
		"rate_limit_threshold", d.rateLimitThreshold)
	d.running.Store(true)
	defer d.running.Store(false)

	if err := d.refreshQueueIfDue(ctx, true); err != nil {
		return err
	}

	defer func() {
		if d.publisher != nil {
			d.log.Info("publishing pending changes before shutdown")
			if err := d.publisher.ForcePublish(context.Background()); err != nil {
				d.log.Warn("final publish failed", "error", err.Error())
			}
		}
		d.metrics.FinishBatch()
		d.log.Info("daemon shutdown complete", "total_analyzed", d.totalAnalyzed.Load())
	}()

	for !d.stopped.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.refreshQueueIfDue(ctx, false); err != nil {
			return err
		}

		pkg := d.queue.Next()
		if pkg == nil {
			d.log.Info("work queue empty", "total_analyzed", d.totalAnalyzed.Load())
			d.sleep(ctx, d.emptyQueueSleep)
			continue
		}
		d.metrics.SetQueueDepth(d.queue.Remaining())

		if err := d.checkRateLimit(); err != nil {
			var exhausted *RateLimitExhaustedError
			if errors.As(err, &exhausted) {
				d.sleepUntilReset(ctx, exhausted)
			}
			continue
		}
		if d.stopped.Load() {
			break
		}

		if err := d.analyze(ctx, pkg); err != nil {
			d.backoff(ctx, pkg, err)
			continue
		}
		d.consecutiveErrors.Store(0)
		d.totalAnalyzed.Add(1)

		if d.publisher != nil {
			d.publisher.RecordPackage()
			if err := d.publisher.MaybePublish(ctx); err != nil {
				d.log.Warn("publish failed", "error", err.Error())
			}
		}
	}
	return nil
}

func (d *Daemon) refreshQueueIfDue(ctx context.Context, force bool) error {
	if last := d.lastRefresh.Load(); !force && last != nil &&
		d.now().Sub(*last) < d.queueRefreshInterval {
		return nil
	}
	d.log.Info("refreshing work queue")
	stats, err := d.queue.Refresh(ctx)
	if err != nil {
		return err
	}
	refreshed := d.now()
	d.lastRefresh.Store(&refreshed)

	// The daemon spans all ecosystems; session progress restarts at
	// every refresh while cumulative counters carry over.
	d.metrics.StartBatch(stats.NewPackages+stats.StalePackages, "all")
	d.metrics.SetQueueDepth(d.queue.Remaining())
	return nil
}

// checkRateLimit raises preemptively when the cached remaining budget
// is below the threshold and a reset time is known.
func (d *Daemon) checkRateLimit() error {
	if d.rateLimit == nil {
		return nil
	}
	rl := d.rateLimit()
	if rl.Total == 0 {
		// No request has populated the cache yet.
		return nil
	}
	if rl.Remaining < d.rateLimitThreshold && !rl.Reset.IsZero() {
		return &RateLimitExhaustedError{Reset: rl.Reset, Remaining: rl.Remaining}
	}
	return nil
}

func (d *Daemon) sleepUntilReset(ctx context.Context, e *RateLimitExhaustedError) {
	now := d.now()
	if !e.Reset.After(now) {
		d.log.Info("rate limit reset time has passed, continuing")
		return
	}
	wait := e.Reset.Sub(now) + rateLimitBuffer
	if wait < rateLimitMinSleep {
		wait = rateLimitMinSleep
	}
	d.log.Warn("github rate limit low, sleeping until reset",
		"remaining", e.Remaining,
		"sleep_seconds", int(wait.Seconds()),
		"reset_at", e.Reset.Format(time.RFC3339))

	reset := e.Reset
	snap := d.metrics.Snapshot()
	d.metrics.UpdateGitHubRateLimit(e.Remaining, snap.GitHubRateLimitTotal, &reset)

	d.sleep(ctx, wait)
	d.log.Info("resuming after rate limit sleep")
}

func (d *Daemon) analyze(ctx context.Context, pkg *QueuedPackage) error {
	p := d.pipelines[pkg.Ecosystem]
	if p == nil {
		return fmt.Errorf("no pipeline configured for ecosystem %s", pkg.Ecosystem)
	}
	d.log.Info("analyzing package",
		"ecosystem", string(pkg.Ecosystem), "package", pkg.Name, "source", string(pkg.Source))

	artifact, err := p.AnalyzePackage(ctx, pkg.Name, true)
	if err != nil {
		return err
	}
	if artifact.Scores != nil {
		score := artifact.Scores.Overall
		d.metrics.CompletePackage(pkg.Name, metrics.StatusScored, &score, artifact.Scores.Grade, "")
		d.log.Info("package completed",
			"package", pkg.Name, "score", score, "grade", artifact.Scores.Grade)
		return nil
	}
	d.metrics.CompletePackage(pkg.Name, metrics.StatusUnavailable, nil, "", artifact.UnavailableReason)
	d.log.Info("package unavailable", "package", pkg.Name, "reason", artifact.UnavailableReason)
	return nil
}

func (d *Daemon) backoff(ctx context.Context, pkg *QueuedPackage, err error) {
	attempt := int(d.consecutiveErrors.Add(1))
	wait := d.backoffFor(attempt)

	d.log.Error("package analysis failed",
		"ecosystem", string(pkg.Ecosystem), "package", pkg.Name,
		"error", err.Error(),
		"backoff_seconds", int(wait.Seconds()),
		"attempt", attempt)

	d.metrics.RecordError(pkg.Name, pipeline.ErrorKind(err), err.Error())
	d.metrics.CompletePackage(pkg.Name, metrics.StatusError, nil, "", err.Error())
	d.sleep(ctx, wait)
}

// backoffFor doubles the base per consecutive error, capped.
func (d *Daemon) backoffFor(attempt int) time.Duration {
	wait := d.backoffBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= d.backoffMax {
			return d.backoffMax
		}
	}
	if wait > d.backoffMax {
		return d.backoffMax
	}
	return wait
}

// sleep waits for total, waking early on Stop or context cancellation.
func (d *Daemon) sleep(ctx context.Context, total time.Duration) {
	deadline := d.now().Add(total)
	for {
		if d.stopped.Load() || ctx.Err() != nil {
			return
		}
		remaining := deadline.Sub(d.now())
		if remaining <= 0 {
			return
		}
		step := d.pollInterval
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(step):
		}
	}
}

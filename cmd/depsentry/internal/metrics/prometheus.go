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

import "github.com/prometheus/client_golang/prometheus"

// promMetrics holds the scrape-side instruments. Each collector owns an
// independent registry so tests and embedded uses never collide on the
// global default.
type promMetrics struct {
	registry           *prometheus.Registry
	packagesAnalyzed   *prometheus.CounterVec
	stageSeconds       *prometheus.HistogramVec
	rateLimitRemaining prometheus.Gauge
	queueDepth         prometheus.Gauge
}

func newPromMetrics() *promMetrics {
	p := &promMetrics{
		registry: prometheus.NewRegistry(),
		packagesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depsentry_packages_analyzed_total",
			Help: "Completed package analyses by outcome.",
		}, []string{"status"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "depsentry_stage_duration_seconds",
			Help:    "Pipeline stage durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		rateLimitRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depsentry_github_rate_limit_remaining",
			Help: "Remaining GitHub API requests in the current window.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depsentry_queue_depth",
			Help: "Packages waiting in the work queue.",
		}),
	}
	p.registry.MustRegister(
		p.packagesAnalyzed, p.stageSeconds,
		p.rateLimitRemaining, p.queueDepth,
	)
	return p
}

// PrometheusRegistry exposes the collector's registry for the status
// server's scrape endpoint.
func (c *Collector) PrometheusRegistry() *prometheus.Registry {
	return c.prom.registry
}

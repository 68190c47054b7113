// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package statusd serves the daemon's monitoring surface over HTTP:
// daemon status, the metrics snapshot, a websocket stream that pushes
// snapshot updates, and a prometheus scrape endpoint.
package statusd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/daemon"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/metrics"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

const defaultStreamInterval = 2 * time.Second

// DaemonStatus exposes the daemon's monitoring view.
type DaemonStatus interface {
	Status() daemon.Status
}

// Config assembles a status server.
type Config struct {
	// Addr is the listen address, e.g. ":12220".
	Addr string

	// Collector supplies live snapshots and the prometheus registry.
	// When nil, snapshots are read from MetricsPath instead and the
	// scrape endpoint is not registered.
	Collector   *metrics.Collector
	MetricsPath string

	// Daemon supplies /v1/status. Nil reports a stopped daemon.
	Daemon DaemonStatus

	// StreamInterval is the websocket poll cadence. Default 2s.
	StreamInterval time.Duration

	GinMode string
	Log     *logging.Logger
}

// Service is the status server lifecycle.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error
	// Router returns the configured engine for testing.
	Router() *gin.Engine
}

type service struct {
	config Config
	router *gin.Engine
	log    *logging.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// New builds the status server and registers its routes.
func New(cfg Config) Service {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = defaultStreamInterval
	}
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	mode := cfg.GinMode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	s := &service{config: cfg, log: cfg.Log}
	s.initRouter()
	return s
}

func (s *service) Run() error {
	s.log.Info("starting status server", "addr", s.config.Addr)
	return s.router.Run(s.config.Addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) initRouter() {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("depsentry-statusd"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := router.Group("/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/metrics", s.handleMetrics)
		v1.GET("/metrics/stream", s.handleMetricsStream)
	}
	if s.config.Collector != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			s.config.Collector.PrometheusRegistry(), promhttp.HandlerOpts{})))
	}
	s.router = router
}

// statusResponse joins the daemon view with batch progress.
type statusResponse struct {
	Daemon          daemon.Status `json:"daemon"`
	Ecosystem       string        `json:"ecosystem"`
	CurrentPackage  string        `json:"current_package,omitempty"`
	Completed       int           `json:"completed_packages"`
	Total           int           `json:"total_packages"`
	ProgressPercent float64       `json:"progress_percent"`
	AverageScore    *float64      `json:"average_score,omitempty"`
}

func (s *service) handleStatus(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	resp := statusResponse{
		Ecosystem:       snap.Ecosystem,
		CurrentPackage:  snap.CurrentPackage,
		Completed:       snap.CompletedPackages,
		Total:           snap.TotalPackages,
		ProgressPercent: snap.ProgressPercent(),
		AverageScore:    snap.AverageScore(),
	}
	if s.config.Daemon != nil {
		resp.Daemon = s.config.Daemon.Status()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *service) handleMetrics(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleMetricsStream upgrades to a websocket and pushes the snapshot
// whenever its LastUpdated stamp advances, polling at StreamInterval.
// The initial snapshot is sent unconditionally.
func (s *service) handleMetricsStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer ws.Close()
	s.log.Debug("metrics stream client connected", "remote", ws.RemoteAddr().String())

	// Drain control frames so close messages from the client are seen.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastSent *time.Time
	ticker := time.NewTicker(s.config.StreamInterval)
	defer ticker.Stop()
	for {
		snap, err := s.snapshot()
		if err == nil && changedSince(snap.LastUpdated, lastSent) {
			if err := ws.WriteJSON(snap); err != nil {
				return
			}
			lastSent = snap.LastUpdated
			if lastSent == nil {
				stamp := time.Now().UTC()
				lastSent = &stamp
			}
		}
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func changedSince(current, sent *time.Time) bool {
	if sent == nil {
		return true
	}
	return current != nil && current.After(*sent)
}

func (s *service) snapshot() (metrics.Snapshot, error) {
	if s.config.Collector != nil {
		return s.config.Collector.Snapshot(), nil
	}
	snap, err := metrics.ReadSnapshotFile(s.config.MetricsPath)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("read metrics snapshot: %w", err)
	}
	return snap, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
	"github.com/AleutianAI/depsentry/cmd/depsentry/gcs"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/daemon"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/statusd"
	"github.com/AleutianAI/depsentry/pkg/telemetry"
)

var (
	daemonStatusAddr string

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Run the continuous analysis daemon",
		Long: `Continuously analyzes packages across all configured ecosystems,
interleaving never-analyzed packages with stale re-analyses. Results are
published to GCS when a bucket is configured. A status server exposes
progress over HTTP and WebSocket.

The first interrupt stops the daemon gracefully after the in-flight
package; a second interrupt aborts immediately.`,
		RunE: runDaemonCommand,
	}
)

func init() {
	daemonCmd.Flags().StringVar(&daemonStatusAddr, "status-addr", "", "status server listen address (overrides the config)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonCommand(cmd *cobra.Command, args []string) error {
	cfg := config.Global
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Service:      "depsentry-daemon",
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	f, err := newFactory(log)
	if err != nil {
		return err
	}
	defer f.Close()

	adapters := make([]registry.Adapter, 0, len(cfg.Ecosystems))
	pipelines := make(map[model.Ecosystem]daemon.PackageAnalyzer, len(cfg.Ecosystems))
	for _, eco := range cfg.Ecosystems {
		p, err := f.pipeline(eco)
		if err != nil {
			return err
		}
		adapters = append(adapters, p.Adapter())
		pipelines[p.Ecosystem()] = p
	}

	queue := daemon.NewWorkQueue(daemon.QueueConfig{
		DataDir:        cfg.DataDir,
		Adapters:       adapters,
		StaleThreshold: time.Duration(cfg.Daemon.StaleThresholdDays) * 24 * time.Hour,
		NewRatio:       cfg.Daemon.NewRatio,
		StaleRatio:     cfg.Daemon.StaleRatio,
		Log:            log,
	})

	var publisher *daemon.Publisher
	if cfg.GCS.Bucket != "" {
		client, err := gcs.NewClient(ctx, cfg.GCS.ProjectID, cfg.GCS.Bucket, cfg.GCS.CredentialsFile, log)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = daemon.NewPublisher(client, cfg.DataDir, cfg.GCS.PublishInterval, log)
		log.Info("result publication enabled", "bucket", cfg.GCS.Bucket)
	}

	d := daemon.New(daemon.Config{
		Queue:     queue,
		Pipelines: pipelines,
		Metrics:   f.collector,
		RateLimit: f.forge.RateLimit,
		Publisher: publisher,
		Log:       log,
	})

	statusAddr := cfg.Daemon.StatusAddr
	if daemonStatusAddr != "" {
		statusAddr = daemonStatusAddr
	}
	if statusAddr != "" {
		svc := statusd.New(statusd.Config{
			Addr:      statusAddr,
			Collector: f.collector,
			Daemon:    d,
			Log:       log,
		})
		go func() {
			if err := svc.Run(); err != nil {
				log.Error("status server stopped", "error", err)
			}
		}()
		log.Info("status server listening", "addr", statusAddr)
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		log.Info("shutdown requested, finishing the in-flight package")
		d.Stop()
		<-signals
		log.Warn("second interrupt, aborting")
		cancel()
	}()

	return d.Run(ctx)
}

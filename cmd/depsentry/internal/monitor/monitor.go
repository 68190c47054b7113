// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package monitor renders a live terminal dashboard over the metrics
// snapshot file: progress and ETA, API status, result counts, stage
// timings, recent errors, and the activity log. The dashboard refreshes
// on file-change notifications with a ticker fallback.
//
// # Thread Safety
//
// The model is owned by the bubbletea event loop. File watch events are
// delivered through Program.Send, never by touching model state.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/metrics"
	"github.com/AleutianAI/depsentry/pkg/logging"
)

const defaultRefreshInterval = 10 * time.Second

// ===== MESSAGES =====

type snapshotMsg struct {
	snap metrics.Snapshot
}

type loadErrMsg struct {
	err error
}

type fileChangedMsg struct{}

type tickMsg time.Time

// ===== CONFIG =====

// Config configures the dashboard.
type Config struct {
	// MetricsPath is the snapshot file to watch, e.g. <data>/.metrics.json.
	MetricsPath string

	// RefreshInterval is the ticker fallback cadence. Default 10s.
	RefreshInterval time.Duration

	Log *logging.Logger
}

// ===== MODEL =====

// Model is the bubbletea model for the dashboard.
type Model struct {
	metricsPath     string
	refreshInterval time.Duration

	snap    metrics.Snapshot
	loadErr error
	loaded  bool

	spinner  spinner.Model
	width    int
	height   int
	quitting bool

	now func() time.Time
}

// NewModel builds a dashboard model from cfg.
func NewModel(cfg Config) Model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		metricsPath:     cfg.MetricsPath,
		refreshInterval: cfg.RefreshInterval,
		spinner:         sp,
		now:             time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot, m.tick(), m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r", "R":
			return m, m.loadSnapshot
		}

	case snapshotMsg:
		m.snap = msg.snap
		m.loadErr = nil
		m.loaded = true

	case loadErrMsg:
		m.loadErr = msg.err

	case fileChangedMsg:
		return m, m.loadSnapshot

	case tickMsg:
		return m, tea.Batch(m.loadSnapshot, m.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.loaded {
		if m.loadErr != nil {
			return fmt.Sprintf("Waiting for metrics at %s (%v)\n\nPress q to quit.\n",
				m.metricsPath, m.loadErr)
		}
		return "Loading...\n"
	}
	return m.render()
}

func (m Model) loadSnapshot() tea.Msg {
	snap, err := metrics.ReadSnapshotFile(m.metricsPath)
	if err != nil {
		return loadErrMsg{err: err}
	}
	return snapshotMsg{snap: snap}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// ===== RUNNER =====

// Run starts the dashboard and blocks until the user quits.
func Run(cfg Config) error {
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("the dashboard requires an interactive terminal")
	}

	program := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cfg.Log.Warn("file watcher unavailable, falling back to polling", "error", err.Error())
	} else {
		defer watcher.Close()
		// Watch the directory: the collector replaces the file via
		// rename, which would invalidate a watch on the file itself.
		if err := watcher.Add(filepath.Dir(cfg.MetricsPath)); err != nil {
			cfg.Log.Warn("file watch failed, falling back to polling", "error", err.Error())
		} else {
			go forwardFileEvents(program, watcher, cfg.MetricsPath)
		}
	}

	_, err = program.Run()
	return err
}

func forwardFileEvents(program *tea.Program, watcher *fsnotify.Watcher, metricsPath string) {
	target := filepath.Clean(metricsPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				program.Send(fileChangedMsg{})
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

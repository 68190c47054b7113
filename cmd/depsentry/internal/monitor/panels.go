// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/metrics"
)

const (
	progressBarWidth = 30
	timingBarWidth   = 12
	recentErrorRows  = 5
	activityRows     = 10
)

// stageOrder fixes the display order of the timing bars.
var stageOrder = []struct {
	key  string
	name string
}{
	{"metadata", "Metadata"},
	{"github", "GitHub"},
	{"cve", "CVE"},
	{"supply_chain", "SupplyChain"},
	{"deps_dev", "DepsDev"},
	{"llm", "LLM"},
	{"scoring", "Scoring"},
	{"save", "Save"},
}

func (m Model) render() string {
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		progressBorder.Render(m.renderProgress()),
		apiBorder.Render(m.renderAPIStatus()),
	)
	middle := lipgloss.JoinHorizontal(lipgloss.Top,
		resultsBorder.Render(m.renderResults()),
		timingBorder.Render(m.renderTiming()),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		top,
		middle,
		errorsBorder.Render(m.renderErrors()),
		activityBorder.Render(m.renderActivity()),
		footerStyle.Render("q quit  r refresh"),
	) + "\n"
}

func (m Model) renderProgress() string {
	snap := m.snap
	pct := snap.ProgressPercent()
	totalAnalyzed := snap.ScoredCount + snap.UnavailableCount + snap.ErrorCount

	status := stoppedStyle.Render("STOPPED")
	if snap.IsRunning {
		status = m.spinner.View() + runningStyle.Render("RUNNING")
	}

	eta := "--:--"
	if v := snap.ETASeconds(m.now()); v != nil {
		eta = formatDuration(*v)
	}
	current := snap.CurrentPackage
	if current == "" {
		current = "idle"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", boldStyle.Render("PROGRESS"), status)
	fmt.Fprintf(&b, "%s %.0f%%\n", cyanStyle.Render(progressBar(pct)), pct)
	fmt.Fprintf(&b, "%d/%d this batch | %d total\n\n",
		snap.CompletedPackages, snap.TotalPackages, totalAnalyzed)
	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render("Current:"), current)
	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render("Elapsed:"), formatDuration(snap.ElapsedSeconds(m.now())))
	fmt.Fprintf(&b, "%s     %s", boldStyle.Render("ETA:"), eta)
	return b.String()
}

func (m Model) renderAPIStatus() string {
	snap := m.snap

	ghPct := 100.0
	if snap.GitHubRateLimitTotal > 0 {
		ghPct = float64(snap.GitHubRateLimitRemaining) / float64(snap.GitHubRateLimitTotal) * 100
	}
	ghCount := fmt.Sprintf("%d/%d", snap.GitHubRateLimitRemaining, snap.GitHubRateLimitTotal)
	var gh string
	switch {
	case ghPct > 50:
		gh = okStyle.Render("✓") + " " + ghCount
	case ghPct > 20:
		gh = warnStyle.Render("⚠") + " " + ghCount
	default:
		gh = errStyle.Render("✗") + " " + ghCount
	}
	if snap.GitHubRateLimitReset != nil {
		if in := snap.GitHubRateLimitReset.Sub(m.now()).Seconds(); in > 0 {
			gh += fmt.Sprintf(" (reset in %s)", formatDuration(in))
		}
	}

	llm := dimStyle.Render("- not configured")
	if snap.LLMAvailable {
		name := snap.LLMModel
		if name == "" {
			name = "available"
		}
		llm = okStyle.Render("✓") + " " + name
	}

	var osv string
	switch snap.OSVStatus {
	case "ok":
		osv = okStyle.Render("✓") + " ok"
	case "error":
		osv = errStyle.Render("✗") + " error"
	default:
		osv = dimStyle.Render("- unknown")
	}

	var b strings.Builder
	b.WriteString(boldStyle.Render("API STATUS") + "\n\n")
	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render("GitHub:"), gh)
	fmt.Fprintf(&b, "%s    %s\n", boldStyle.Render("LLM:"), llm)
	fmt.Fprintf(&b, "%s    %s", boldStyle.Render("OSV:"), osv)
	return b.String()
}

func (m Model) renderResults() string {
	snap := m.snap
	total := snap.ScoredCount + snap.UnavailableCount + snap.ErrorCount

	avg := "-"
	if v := snap.AverageScore(); v != nil {
		avg = fmt.Sprintf("%.1f", *v)
	}
	var grades []string
	for _, g := range []string{"A", "B", "C", "D", "F"} {
		grades = append(grades, fmt.Sprintf("%s:%d", g, snap.GradeDistribution[g]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d total)\n\n", boldStyle.Render("RESULTS"), total)
	fmt.Fprintf(&b, "%s     %d\n", okStyle.Render("✓ Scored:"), snap.ScoredCount)
	fmt.Fprintf(&b, "%s %d\n", warnStyle.Render("⚠ Unavailable:"), snap.UnavailableCount)
	fmt.Fprintf(&b, "%s      %d\n\n", errStyle.Render("✗ Errors:"), snap.ErrorCount)
	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render("Avg Score:"), avg)
	fmt.Fprintf(&b, "%s    %s", boldStyle.Render("Grades:"), strings.Join(grades, "  "))
	return b.String()
}

func (m Model) renderTiming() string {
	timings := m.snap.StageTimings

	maxTime := 0.0
	for _, v := range timings {
		if v > maxTime {
			maxTime = v
		}
	}

	lines := []string{boldStyle.Render("STAGE TIMING") + " (avg)", ""}
	for _, stage := range stageOrder {
		t, ok := timings[stage.key]
		if !ok {
			lines = append(lines, fmt.Sprintf("%-11s    -s %s",
				stage.name, dimStyle.Render(strings.Repeat("░", timingBarWidth))))
			continue
		}
		filled := 0
		if maxTime > 0 {
			filled = int(t / maxTime * timingBarWidth)
		}
		if filled > timingBarWidth {
			filled = timingBarWidth
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", timingBarWidth-filled)
		style := okStyle
		switch {
		case t >= 5.0:
			style = errStyle
		case t >= 1.0:
			style = warnStyle
		}
		lines = append(lines, fmt.Sprintf("%-11s %5.1fs %s", stage.name, t, style.Render(bar)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderErrors() string {
	lines := []string{boldStyle.Render("RECENT ERRORS"), ""}
	errors := m.snap.RecentErrors
	if len(errors) == 0 {
		lines = append(lines, dimStyle.Render("No errors"))
	} else {
		if len(errors) > recentErrorRows {
			errors = errors[len(errors)-recentErrorRows:]
		}
		for _, e := range errors {
			lines = append(lines, fmt.Sprintf("%s %s %s: %s",
				dimStyle.Render(formatClock(&e.Timestamp)),
				cyanStyle.Render(fmt.Sprintf("%-15s", e.Package)),
				errStyle.Render(e.ErrorType),
				truncate(e.Message, 50)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderActivity() string {
	lines := []string{boldStyle.Render("ACTIVITY LOG"), ""}
	entries := m.snap.ActivityLog
	if len(entries) == 0 {
		lines = append(lines, dimStyle.Render("No activity yet"))
	} else {
		if len(entries) > activityRows {
			entries = entries[len(entries)-activityRows:]
		}
		for _, e := range entries {
			var icon, details string
			switch e.Status {
			case metrics.StatusScored:
				icon = okStyle.Render("✓")
				score := "-"
				if e.Score != nil {
					score = fmt.Sprintf("%.1f", *e.Score)
				}
				grade := e.Grade
				if grade == "" {
					grade = "-"
				}
				details = fmt.Sprintf("(score: %s, grade: %s)", score, grade)
			case metrics.StatusUnavailable:
				icon = warnStyle.Render("⚠")
				reason := e.Message
				if reason == "" {
					reason = "no repo"
				}
				details = fmt.Sprintf("(%s)", truncate(reason, 30))
			default:
				icon = errStyle.Render("✗")
				if e.Message != "" {
					details = fmt.Sprintf("(%s)", truncate(e.Message, 30))
				} else {
					details = "(error)"
				}
			}
			lines = append(lines, fmt.Sprintf("%s  %s %s %s",
				dimStyle.Render(formatClock(&e.Timestamp)),
				icon,
				cyanStyle.Render(fmt.Sprintf("%-20s", e.Package)),
				details))
		}
	}
	return strings.Join(lines, "\n")
}

// ===== FORMAT HELPERS =====

func progressBar(pct float64) string {
	filled := int(pct / 100 * progressBarWidth)
	if filled >= progressBarWidth {
		return strings.Repeat("━", progressBarWidth)
	}
	return strings.Repeat("━", filled) + "╺" + strings.Repeat("─", progressBarWidth-filled-1)
}

func formatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
	default:
		return fmt.Sprintf("%dh %dm", int(seconds)/3600, (int(seconds)%3600)/60)
	}
}

func formatClock(t *time.Time) string {
	if t == nil {
		return "--:--:--"
	}
	return t.Format("15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// ===== STYLES =====

var (
	boldStyle = lipgloss.NewStyle().Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cyanStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	stoppedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)

	progressBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	apiBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	resultsBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("51")).
			Padding(0, 1)

	timingBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("201")).
			Padding(0, 1)

	errorsBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	activityBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("252")).
			Padding(0, 1)
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package supplychain

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
)

// DiffVersions compares the current release manifest with the previous
// one. A compromised package typically shows up here as new lifecycle
// scripts, a burst of new dependencies, or a nonsensical version jump.
// Returns nil when there is no previous version to compare against.
func DiffVersions(current, previous *registry.NPMVersionDoc) *model.VersionDiff {
	if current == nil || previous == nil {
		return nil
	}

	diff := &model.VersionDiff{
		CurrentVersion:  current.Version,
		PreviousVersion: previous.Version,
	}

	cv, pv := "v"+current.Version, "v"+previous.Version
	if semver.IsValid(cv) && semver.IsValid(pv) {
		switch {
		case semver.Compare(cv, pv) < 0:
			diff.BumpType = "downgrade"
			diff.SuspiciousJump = true
		case semver.Compare(cv, pv) == 0:
			diff.BumpType = "none"
		case semver.Major(cv) != semver.Major(pv):
			diff.BumpType = "major"
			if majorDelta(cv, pv) > 5 {
				diff.SuspiciousJump = true
			}
		case semver.MajorMinor(cv) != semver.MajorMinor(pv):
			diff.BumpType = "minor"
		default:
			diff.BumpType = "patch"
		}
	} else {
		diff.BumpType = "unknown"
	}

	diffScripts(current.Scripts, previous.Scripts, diff)

	diff.AddedDeps = missingKeys(current.Dependencies, previous.Dependencies)
	diff.RemovedDeps = missingKeys(previous.Dependencies, current.Dependencies)

	diff.RiskScore = scoreVersionDiff(diff)
	return diff
}

func majorDelta(cv, pv string) int {
	c, _ := strconv.Atoi(strings.TrimPrefix(semver.Major(cv), "v"))
	p, _ := strconv.Atoi(strings.TrimPrefix(semver.Major(pv), "v"))
	return c - p
}

func diffScripts(current, previous map[string]string, diff *model.VersionDiff) {
	for name, cmd := range current {
		prev, ok := previous[name]
		if !ok {
			if diff.AddedScripts == nil {
				diff.AddedScripts = make(map[string]string)
			}
			diff.AddedScripts[name] = cmd
		} else if prev != cmd {
			diff.ChangedScripts = append(diff.ChangedScripts, name)
		}
	}
	for name := range previous {
		if _, ok := current[name]; !ok {
			diff.RemovedScripts = append(diff.RemovedScripts, name)
		}
	}
	sort.Strings(diff.ChangedScripts)
	sort.Strings(diff.RemovedScripts)
}

// missingKeys returns the keys of a absent from b, sorted.
func missingKeys(a, b map[string]string) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// scoreVersionDiff computes the 0-100 release-delta risk.
func scoreVersionDiff(diff *model.VersionDiff) float64 {
	score := 0.0
	if diff.SuspiciousJump {
		score += 30
	}

	for name := range diff.AddedScripts {
		if dangerousLifecycleScripts[name] {
			score += 25
		}
	}
	if len(diff.AddedScripts) > 0 || len(diff.RemovedScripts) > 0 || len(diff.ChangedScripts) > 0 {
		score += 10
	}

	if len(diff.AddedDeps) > 10 {
		score += 15
	} else if len(diff.AddedDeps) > 5 {
		score += 8
	}
	return min100(score)
}

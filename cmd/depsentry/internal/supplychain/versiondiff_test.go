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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
)

func doc(version string, scripts, deps map[string]string) *registry.NPMVersionDoc {
	return &registry.NPMVersionDoc{Version: version, Scripts: scripts, Dependencies: deps}
}

func TestDiffVersionsPatchBump(t *testing.T) {
	diff := DiffVersions(
		doc("4.17.21", map[string]string{"test": "mocha"}, map[string]string{"once": "^1.0.0"}),
		doc("4.17.20", map[string]string{"test": "mocha"}, map[string]string{"once": "^1.0.0"}),
	)
	require.NotNil(t, diff)

	assert.Equal(t, "patch", diff.BumpType)
	assert.False(t, diff.SuspiciousJump)
	assert.Empty(t, diff.AddedScripts)
	assert.Empty(t, diff.AddedDeps)
	assert.Equal(t, 0.0, diff.RiskScore)
}

func TestDiffVersionsSuspiciousMajorJump(t *testing.T) {
	diff := DiffVersions(doc("9.0.0", nil, nil), doc("1.2.0", nil, nil))
	require.NotNil(t, diff)

	assert.Equal(t, "major", diff.BumpType)
	assert.True(t, diff.SuspiciousJump)
	assert.Equal(t, 30.0, diff.RiskScore)
}

func TestDiffVersionsDowngrade(t *testing.T) {
	diff := DiffVersions(doc("1.9.0", nil, nil), doc("2.0.0", nil, nil))
	require.NotNil(t, diff)

	assert.Equal(t, "downgrade", diff.BumpType)
	assert.True(t, diff.SuspiciousJump)
}

func TestDiffVersionsLifecycleScriptAdded(t *testing.T) {
	prevDeps := map[string]string{"a": "1", "b": "1"}
	currDeps := map[string]string{
		"a": "1", "b": "1",
		"c": "1", "d": "1", "e": "1", "f": "1", "g": "1", "h": "1",
	}
	diff := DiffVersions(
		doc("1.0.1", map[string]string{"postinstall": "node x.js"}, currDeps),
		doc("1.0.0", nil, prevDeps),
	)
	require.NotNil(t, diff)

	assert.Equal(t, "node x.js", diff.AddedScripts["postinstall"])
	assert.Equal(t, []string{"c", "d", "e", "f", "g", "h"}, diff.AddedDeps)

	// Dangerous script 25, scripts changed 10, six new deps 8.
	assert.Equal(t, 43.0, diff.RiskScore)
}

func TestDiffVersionsChangedAndRemovedScripts(t *testing.T) {
	diff := DiffVersions(
		doc("1.1.0", map[string]string{"build": "tsc -p ."}, nil),
		doc("1.0.0", map[string]string{"build": "tsc", "lint": "eslint ."}, nil),
	)
	require.NotNil(t, diff)

	assert.Equal(t, "minor", diff.BumpType)
	assert.Equal(t, []string{"build"}, diff.ChangedScripts)
	assert.Equal(t, []string{"lint"}, diff.RemovedScripts)
	assert.Equal(t, 10.0, diff.RiskScore)
}

func TestDiffVersionsNoPrevious(t *testing.T) {
	assert.Nil(t, DiffVersions(doc("1.0.0", nil, nil), nil))
}

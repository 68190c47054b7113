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

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
)

func TestAnalyzePublishingHealthy(t *testing.T) {
	info := AnalyzePublishing([]string{"alice", "bob"}, &registry.NPMVersionDoc{
		Version:   "1.0.0",
		Publisher: "alice",
		Signed:    true,
	})

	assert.True(t, info.HasProvenance)
	assert.True(t, info.ProvenanceVerified)
	assert.True(t, info.PublisherIsMaintainer)
	assert.Equal(t, 2, info.MaintainerCount)
	assert.Equal(t, 0.0, info.RiskScore)
}

func TestAnalyzePublishingForeignPublisher(t *testing.T) {
	info := AnalyzePublishing([]string{"alice"}, &registry.NPMVersionDoc{
		Version:   "1.0.0",
		Publisher: "mallory",
	})

	assert.False(t, info.HasProvenance)
	assert.False(t, info.PublisherIsMaintainer)
	// No provenance 10, foreign publisher 25, single maintainer 5.
	assert.Equal(t, 40.0, info.RiskScore)
}

func TestAnalyzePublishingNoVersionData(t *testing.T) {
	info := AnalyzePublishing(nil, nil)

	assert.Equal(t, 0, info.MaintainerCount)
	// No provenance 10, no publisher 25, no maintainers 15.
	assert.Equal(t, 50.0, info.RiskScore)
}

func TestAnalyzePublishingAttestedOnly(t *testing.T) {
	info := AnalyzePublishing([]string{"alice"}, &registry.NPMVersionDoc{
		Version:   "1.0.0",
		Publisher: "alice",
		Attested:  true,
	})

	assert.True(t, info.HasProvenance)
	assert.False(t, info.ProvenanceVerified)
	// Single maintainer only.
	assert.Equal(t, 5.0, info.RiskScore)
}

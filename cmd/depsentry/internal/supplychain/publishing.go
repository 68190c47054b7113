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
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/registry"
)

// AnalyzePublishing examines who published the analyzed version and
// whether the release carries registry provenance.
func AnalyzePublishing(maintainers []string, version *registry.NPMVersionDoc) model.PublishingInfo {
	info := model.PublishingInfo{
		Maintainers:     maintainers,
		MaintainerCount: len(maintainers),
	}

	if version != nil {
		info.HasProvenance = version.Signed || version.Attested
		info.ProvenanceVerified = version.Signed
		info.Publisher = version.Publisher
		if info.Publisher != "" {
			for _, m := range maintainers {
				if m == info.Publisher {
					info.PublisherIsMaintainer = true
					break
				}
			}
		}
	}

	info.RiskScore = scorePublishing(&info)
	return info
}

// scorePublishing computes the 0-100 publisher risk.
func scorePublishing(info *model.PublishingInfo) float64 {
	score := 0.0
	if !info.HasProvenance {
		score += 10
	}
	if !info.PublisherIsMaintainer {
		score += 25
	}
	switch info.MaintainerCount {
	case 0:
		score += 15
	case 1:
		score += 5
	}
	return min100(score)
}

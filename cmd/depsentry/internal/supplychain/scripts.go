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

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// AnalyzeScripts inspects a manifest's scripts section for install-time
// execution and malicious shell patterns.
func AnalyzeScripts(scripts map[string]string) model.LifecycleScriptRisk {
	risk := model.LifecycleScriptRisk{}
	if len(scripts) == 0 {
		return risk
	}
	risk.Scripts = make(map[string]string)

	track := func(name string, flag *bool) {
		if cmd, ok := scripts[name]; ok {
			*flag = true
			risk.Scripts[name] = cmd
		}
	}
	track("preinstall", &risk.HasPreinstall)
	track("install", &risk.HasInstall)
	track("postinstall", &risk.HasPostinstall)
	track("preuninstall", &risk.HasPreuninstall)
	track("postuninstall", &risk.HasPostuninstall)
	track("prepare", &risk.HasPrepare)
	track("prepublish", &risk.HasPrepublish)

	names := make([]string, 0, len(risk.Scripts))
	for name := range risk.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		matches := analyzeScriptCommand(risk.Scripts[name], "scripts."+name)
		for _, m := range matches {
			applyFlags(&risk, m.Type)
		}
		risk.Patterns = append(risk.Patterns, matches...)
	}

	risk.RiskScore = scoreScripts(&risk)
	return risk
}

// scoreScripts computes the 0-100 lifecycle risk. Install-time hooks
// carry a base cost; pattern hits and behavioral flags stack on top.
func scoreScripts(risk *model.LifecycleScriptRisk) float64 {
	score := 0.0
	if risk.HasPreinstall {
		score += 30
	}
	if risk.HasPostinstall {
		score += 20
	}
	if risk.HasInstall {
		score += 15
	}
	for _, p := range risk.Patterns {
		switch p.Severity {
		case model.PatternCritical:
			score += 25
		case model.PatternHigh:
			score += 15
		case model.PatternMedium:
			score += 8
		default:
			score += 3
		}
	}
	if risk.Obfuscated {
		score += 20
	}
	if risk.AccessesCreds {
		score += 25
	}
	if risk.InstallsRuntime {
		score += 30
	}
	if risk.MakesNetworkCalls && risk.AccessesCreds {
		score += 20
	}
	return min100(score)
}

func min100(score float64) float64 {
	if score > 100 {
		return 100
	}
	return score
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package supplychain detects malicious publication patterns in npm
// packages: install-time lifecycle scripts, obfuscated or credential
// harvesting code in the published tarball, suspicious version jumps,
// and publisher anomalies. The pattern sets target Shai Hulud style
// worms but are tuned to stay quiet on legitimate libraries.
package supplychain

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// Lifecycle scripts that execute on the consumer's machine at install
// time. Anything here is inherently risky.
var dangerousLifecycleScripts = map[string]bool{
	"preinstall":    true,
	"install":       true,
	"postinstall":   true,
	"preuninstall":  true,
	"postuninstall": true,
}

type patternDef struct {
	re          *regexp.Regexp
	typ         string
	severity    model.PatternSeverity
	description string
}

func def(expr, typ string, severity model.PatternSeverity, description string) patternDef {
	return patternDef{
		re:          regexp.MustCompile(`(?im)` + expr),
		typ:         typ,
		severity:    severity,
		description: description,
	}
}

// Obfuscation indicators in JavaScript source.
var obfuscationPatterns = []patternDef{
	def(`['"][A-Za-z0-9+/=]{200,}['"]`, "long_base64", model.PatternCritical, "Very long base64-encoded string detected"),
	def(`\\x[0-9a-fA-F]{2}(?:\\x[0-9a-fA-F]{2}){30,}`, "hex_encoding", model.PatternHigh, "Long hex-encoded string sequence"),
	def(`\beval\s*\(\s*[a-zA-Z_$][a-zA-Z0-9_$]*\s*\)`, "eval_dynamic", model.PatternHigh, "eval() with variable (potential code injection)"),
	def(`\beval\s*\([^)]*\+[^)]*\)`, "eval_concat", model.PatternCritical, "eval() with concatenation (code injection risk)"),
	def(`new\s+Function\s*\([^)]*\+[^)]*\)`, "function_constructor_concat", model.PatternCritical, "Function constructor with concatenation"),
	def(`\b[_$][a-zA-Z0-9_$]{40,}\b`, "obfuscated_names", model.PatternMedium, "Heavily obfuscated variable names"),
	def(`\[['"][^'"]+['"](?:\s*,\s*['"][^'"]+['"]){20,}\]`, "string_array", model.PatternMedium, "Large string array (potential obfuscation)"),
	def(`String\.fromCharCode\s*\([^)]{50,}\)`, "charcode", model.PatternHigh, "String.fromCharCode with many codes (deobfuscation)"),
	def(`Buffer\.from\s*\(\s*[a-zA-Z_$][a-zA-Z0-9_$]*\s*,\s*['"]base64['"]`, "buffer_base64", model.PatternMedium, "Buffer.from base64 with variable"),
}

// Network and exfiltration indicators.
var networkPatterns = []patternDef{
	def(`['"]https?://[^'"]{10,}['"]`, "url_literal", model.PatternLow, "Hardcoded URL in string"),
	def(`\b(?:sh|bash|exec|spawn|system)\s*\([^)]*\b(?:curl|wget|nc|netcat)\b`, "shell_network", model.PatternCritical, "Shell network command execution"),
	def(`['"](?:curl|wget|nc|netcat)\s+[^'"]+['"]`, "shell_network_string", model.PatternHigh, "Shell network command in string"),
	def(`method:\s*['"]POST['"].*(?:token|password|secret|cred)`, "http_post_sensitive", model.PatternHigh, "HTTP POST with sensitive data"),
}

// Credential and secret theft indicators.
var credentialPatterns = []patternDef{
	def(`['"].*\.npmrc['"]`, "npmrc_access", model.PatternCritical, "Accessing .npmrc (npm tokens)"),
	def(`['"]NPM_TOKEN['"]|process\.env\.NPM_TOKEN`, "npm_token_env", model.PatternCritical, "NPM_TOKEN environment variable"),
	def(`['"].*\.(?:ssh|gnupg)[/\\]['"]`, "ssh_access", model.PatternCritical, "Accessing SSH/GPG directory"),
	def(`['"].*id_(?:rsa|ed25519|ecdsa)['"]`, "ssh_key_file", model.PatternCritical, "SSH private key file reference"),
	def(`['"].*\.(?:aws|config/gcloud|azure)[/\\]['"]`, "cloud_creds", model.PatternCritical, "Accessing cloud credentials"),
	def(`process\.env\.(?:AWS_ACCESS_KEY|AWS_SECRET|GOOGLE_APPLICATION_CREDENTIALS)`, "cloud_env", model.PatternCritical, "Cloud credential env vars"),
	def(`Object\.keys\s*\(\s*process\.env\s*\)`, "env_keys", model.PatternCritical, "Enumerating all environment variables"),
	def(`Object\.entries\s*\(\s*process\.env\s*\)`, "env_entries", model.PatternCritical, "Enumerating all environment variables"),
}

// Shell spawning indicators.
var processPatterns = []patternDef{
	def(`['"](?:rm\s+-rf|chmod\s+777|>>\s*/etc/)['"]`, "dangerous_shell_string", model.PatternCritical, "Dangerous shell command in string"),
	def(`(?:exec|spawn)(?:Sync)?\s*\(\s*['"](?:sh|bash|cmd|powershell)`, "shell_exec", model.PatternHigh, "Shell execution via child process"),
}

// Filesystem indicators; only blatant hidden-file writes are flagged.
var filesystemPatterns = []patternDef{
	def(`writeFile(?:Sync)?\s*\([^)]*['"].*/\.[a-z]`, "hidden_file_write", model.PatternHigh, "Writing hidden files in home directory"),
}

// Alternative runtime installation, the Shai Hulud signature move.
var runtimePatterns = []patternDef{
	def(`\bbun\.sh\b`, "bun_install", model.PatternCritical, "Bun runtime installation (Shai Hulud indicator)"),
	def(`npm\s+(?:i|install).*?\s+bun\b`, "bun_npm", model.PatternCritical, "Installing Bun via npm"),
	def(`deno\.(?:land|com)`, "deno_install", model.PatternHigh, "Deno runtime reference"),
	def(`install.*?(?:bun|deno)\b`, "runtime_install", model.PatternHigh, "Alternative runtime installation"),
}

// Patterns for script VALUES, which are shell commands rather than
// JavaScript, so no quoting context is required.
var lifecycleScriptPatterns = []patternDef{
	def(`\b(?:curl|wget)\s+`, "script_network_fetch", model.PatternHigh, "Network download in script"),
	def(`\|\s*(?:bash|sh|zsh)\b`, "script_pipe_shell", model.PatternCritical, "Piping output to shell (RCE risk)"),
	def(`node\s+[a-zA-Z_][a-zA-Z0-9_]*\.js\b`, "script_node_exec", model.PatternMedium, "Node.js file execution in script"),
	def(`\$[A-Z_]+`, "script_env_var", model.PatternLow, "Environment variable in script"),
	def(`https?://[^\s]+`, "script_url", model.PatternMedium, "URL in script"),
	def(`base64\s+(?:-d|--decode)`, "script_base64_decode", model.PatternHigh, "Base64 decoding in script"),
}

// contentPatternSets covers JavaScript file contents.
var contentPatternSets = [][]patternDef{
	obfuscationPatterns,
	networkPatterns,
	credentialPatterns,
	processPatterns,
	filesystemPatterns,
	runtimePatterns,
}

// Known malicious filenames from published worm payloads.
var suspiciousFilenames = map[string]model.PatternSeverity{
	"setup_bun.js":       model.PatternCritical,
	"bun_environment.js": model.PatternCritical,
	"postinstall.js":     model.PatternHigh,
	"preinstall.js":      model.PatternHigh,
	".env.js":            model.PatternHigh,
	"config.min.js":      model.PatternMedium,
}

var binaryExtensions = map[string]bool{
	".node": true, ".so": true, ".dll": true, ".dylib": true, ".exe": true, ".bin": true,
}

// matchSet runs one pattern set over content, one hit per occurrence.
func matchSet(defs []patternDef, content, location string) []model.PatternMatch {
	var out []model.PatternMatch
	for _, d := range defs {
		for range d.re.FindAllStringIndex(content, -1) {
			out = append(out, model.PatternMatch{
				Type:        d.typ,
				Severity:    d.severity,
				Description: d.description,
				File:        location,
			})
		}
	}
	return out
}

// analyzeContent scans JavaScript source with every content set.
func analyzeContent(content, location string) []model.PatternMatch {
	var out []model.PatternMatch
	for _, set := range contentPatternSets {
		out = append(out, matchSet(set, content, location)...)
	}
	return out
}

// analyzeScriptCommand scans a shell command from the manifest's
// scripts section.
func analyzeScriptCommand(cmd, location string) []model.PatternMatch {
	out := matchSet(lifecycleScriptPatterns, cmd, location)
	out = append(out, matchSet(runtimePatterns, cmd, location)...)
	return out
}

// applyFlags raises the behavioral flags a pattern type implies.
func applyFlags(risk *model.LifecycleScriptRisk, typ string) {
	switch typ {
	case "long_base64", "hex_encoding", "eval_dynamic", "eval_concat",
		"function_constructor_concat", "charcode", "string_array":
		risk.Obfuscated = true
	case "url_literal":
		risk.MakesNetworkCalls = true
		risk.ContainsURL = true
	case "shell_network", "shell_network_string", "script_network_fetch":
		risk.MakesNetworkCalls = true
	case "script_url":
		risk.MakesNetworkCalls = true
		risk.ContainsURL = true
	case "npmrc_access", "npm_token_env", "ssh_access", "ssh_key_file",
		"cloud_creds", "cloud_env", "env_keys", "env_entries":
		risk.AccessesCreds = true
	case "dangerous_shell_string", "shell_exec":
		risk.SpawnsProcesses = true
	case "script_pipe_shell":
		risk.PipesToShell = true
		risk.SpawnsProcesses = true
	case "script_node_exec":
		risk.ExecutesFiles = true
	case "script_base64_decode":
		risk.DecodesBase64 = true
	case "bun_install", "bun_npm", "deno_install", "runtime_install":
		risk.InstallsRuntime = true
	}
	if strings.Contains(typ, "env") {
		risk.ReferencesEnv = true
	}
}

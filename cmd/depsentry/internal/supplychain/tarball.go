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
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// maxJSFileSize bounds per-file content analysis. Anything larger is
// almost certainly bundled output.
const maxJSFileSize = 500_000

// Files legitimately present in the tarball but absent from the
// repository: build output, type declarations, packaging metadata.
var expectedGeneratedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^dist/`),
	regexp.MustCompile(`(?i)^build/`),
	regexp.MustCompile(`(?i)^lib/`),
	regexp.MustCompile(`(?i)^out/`),
	regexp.MustCompile(`(?i)\.d\.ts$`),
	regexp.MustCompile(`(?i)\.map$`),
	regexp.MustCompile(`(?i)^\..*`),
	regexp.MustCompile(`(?i)package\.json$`),
	regexp.MustCompile(`(?i)README`),
	regexp.MustCompile(`(?i)LICENSE`),
	regexp.MustCompile(`(?i)CHANGELOG`),
}

func isExpectedGenerated(p string) bool {
	for _, re := range expectedGeneratedPatterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// isMinified detects bundler output so pattern scanning can skip it.
func isMinified(content string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return false
	}
	total := 0
	for _, line := range lines {
		total += len(line)
	}
	if float64(total)/float64(len(lines)) > 200 {
		return true
	}
	return len(content) > 10000 && len(lines) < 50
}

// AnalyzeTarball downloads the published archive and inspects every
// member: known-bad filenames, native binaries, files injected after
// the repository snapshot, and suspicious JavaScript. Fetch or decode
// failures degrade to a partial result.
func (a *Analyzer) AnalyzeTarball(ctx context.Context, tarballURL string, repoFiles map[string]struct{}) *model.TarballAnalysis {
	result := &model.TarballAnalysis{}

	data, err := a.download(ctx, tarballURL)
	if err != nil {
		a.log.Warn("tarball fetch failed", "url", tarballURL, "error", err.Error())
		result.RiskScore = scoreTarball(result)
		return result
	}
	result.TotalSize = int64(len(data))

	if err := a.walkTarball(ctx, data, repoFiles, result); err != nil {
		a.log.Warn("tarball decode failed", "url", tarballURL, "error", err.Error())
	}

	result.NotInRepoCount = len(result.FilesNotInRepo)
	result.RiskScore = scoreTarball(result)
	return result
}

func (a *Analyzer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build tarball request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tarball: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tarball returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *Analyzer) walkTarball(ctx context.Context, data []byte, repoFiles map[string]struct{}, result *model.TarballAnalysis) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("gunzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar member: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		// npm publishes everything under a package/ prefix.
		name := strings.TrimPrefix(hdr.Name, "package/")
		result.TotalFiles++

		ext := strings.ToLower(path.Ext(name))
		binary := binaryExtensions[ext]
		result.Files = append(result.Files, model.TarballFile{
			Path:       name,
			Size:       hdr.Size,
			Executable: hdr.FileInfo().Mode()&0o111 != 0,
			Binary:     binary,
		})
		if binary {
			result.HasNativeCode = true
		}

		base := path.Base(name)
		if severity, ok := suspiciousFilenames[base]; ok {
			result.SuspiciousFiles = append(result.SuspiciousFiles, name)
			result.Patterns = append(result.Patterns, model.PatternMatch{
				Type:        "suspicious_filename",
				Severity:    severity,
				Description: "Known malicious filename pattern: " + base,
				File:        name,
			})
		}

		if repoFiles != nil {
			if _, inRepo := repoFiles[name]; !inRepo && !isExpectedGenerated(name) {
				result.FilesNotInRepo = append(result.FilesNotInRepo, name)
			}
		}

		if (ext == ".js" || ext == ".mjs" || ext == ".cjs") && hdr.Size < maxJSFileSize {
			content, err := io.ReadAll(tr)
			if err != nil {
				a.log.Debug("tarball member read failed", "path", name, "error", err.Error())
				continue
			}
			if isMinified(string(content)) {
				// Minified output trips too many false positives.
				result.MinifiedFiles++
				continue
			}
			result.Patterns = append(result.Patterns, analyzeContent(string(content), name)...)
			result.Patterns = append(result.Patterns, jsASTFindings(ctx, content, name)...)
		}
	}
}

// scoreTarball computes the 0-100 archive risk.
func scoreTarball(result *model.TarballAnalysis) float64 {
	score := float64(len(result.SuspiciousFiles)) * 25

	if len(result.FilesNotInRepo) > 5 {
		score += 15
	} else if len(result.FilesNotInRepo) > 0 {
		score += 5
	}

	for _, p := range result.Patterns {
		switch p.Severity {
		case model.PatternCritical:
			score += 20
		case model.PatternHigh:
			score += 12
		case model.PatternMedium:
			score += 5
		}
	}

	if result.HasNativeCode {
		score += 10
	}
	return min100(score)
}

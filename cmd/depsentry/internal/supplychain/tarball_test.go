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
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarballFile struct {
	name    string
	mode    int64
	content string
}

func buildTarball(t *testing.T, files []tarballFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		mode := f.mode
		if mode == 0 {
			mode = 0o644
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "package/" + f.name,
			Mode:     mode,
			Size:     int64(len(f.content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

type tarballClient struct {
	data   []byte
	status int
}

func (c *tarballClient) Do(req *http.Request) (*http.Response, error) {
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(c.data)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestAnalyzeTarballMaliciousPayload(t *testing.T) {
	data := buildTarball(t, []tarballFile{
		{name: "package.json", content: "{}"},
		{name: "index.js", content: "module.exports = 1;\n"},
		{name: "setup_bun.js", mode: 0o755, content: "require('fs');\n"},
		{name: "collect.js", content: "const keys = Object.keys(process.env);\n"},
		{name: "binding.node", content: "\x00\x01"},
	})
	a := New(&tarballClient{data: data}, nil)

	repoFiles := map[string]struct{}{"index.js": {}}
	result := a.AnalyzeTarball(context.Background(), "https://registry.npmjs.org/x/-/x-1.0.0.tgz", repoFiles)

	assert.Equal(t, 5, result.TotalFiles)
	assert.Equal(t, int64(len(data)), result.TotalSize)
	assert.True(t, result.HasNativeCode)
	assert.Equal(t, []string{"setup_bun.js"}, result.SuspiciousFiles)

	sort.Strings(result.FilesNotInRepo)
	assert.Equal(t, []string{"binding.node", "collect.js", "setup_bun.js"}, result.FilesNotInRepo)
	assert.Equal(t, 3, result.NotInRepoCount)

	types := make(map[string]int)
	for _, p := range result.Patterns {
		types[p.Type]++
	}
	assert.Equal(t, 1, types["suspicious_filename"])
	assert.Equal(t, 1, types["env_keys"])

	found := false
	for _, f := range result.Files {
		if f.Path == "setup_bun.js" {
			found = true
			assert.True(t, f.Executable)
		}
	}
	require.True(t, found)

	// Suspicious file 25, its critical pattern 20, env enumeration 20,
	// injected files 5, native code 10.
	assert.Equal(t, 80.0, result.RiskScore)
}

func TestAnalyzeTarballSkipsMinifiedJS(t *testing.T) {
	minified := "var " + strings.Repeat("a=eval(x),", 1500) + "b=1;"
	data := buildTarball(t, []tarballFile{
		{name: "dist/bundle.min.js", content: minified},
	})
	a := New(&tarballClient{data: data}, nil)

	result := a.AnalyzeTarball(context.Background(), "https://example.test/p.tgz", nil)

	assert.Equal(t, 1, result.MinifiedFiles)
	assert.Empty(t, result.Patterns, "minified bundles are not pattern scanned")
	assert.Equal(t, 0.0, result.RiskScore)
}

func TestAnalyzeTarballDownloadFailureDegrades(t *testing.T) {
	a := New(&tarballClient{status: http.StatusInternalServerError}, nil)

	result := a.AnalyzeTarball(context.Background(), "https://example.test/p.tgz", nil)

	assert.Equal(t, 0, result.TotalFiles)
	assert.Equal(t, 0.0, result.RiskScore)
}

func TestIsMinified(t *testing.T) {
	assert.True(t, isMinified(strings.Repeat("x", 300)))
	assert.False(t, isMinified("const a = 1;\nconst b = 2;\n"))
}

func TestIsExpectedGenerated(t *testing.T) {
	assert.True(t, isExpectedGenerated("dist/index.js"))
	assert.True(t, isExpectedGenerated("index.d.ts"))
	assert.True(t, isExpectedGenerated("package.json"))
	assert.True(t, isExpectedGenerated(".npmignore"))
	assert.False(t, isExpectedGenerated("src/steal.js"))
}

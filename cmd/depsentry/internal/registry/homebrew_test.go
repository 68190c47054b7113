// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brewAnalytics = `{
	"items": [
		{"number": 1, "formula": "wget", "count": "1,234,567"},
		{"number": 2, "formula": "git", "count": "987,654"},
		{"number": 3, "formula": "jq", "count": "500000"}
	]
}`

func TestHomebrewListPackagesSortedByInstalls(t *testing.T) {
	client := &routingClient{routes: map[string]string{
		"https://formulae.brew.sh/api/analytics/install/30d.json": brewAnalytics,
		"https://formulae.brew.sh/api/formula.json": `[
			{"name": "git"},
			{"name": "aalib"},
			{"name": "jq"},
			{"name": "wget"},
			{"name": "zzuf"}
		]`,
	}}
	adapter := NewHomebrew(client, nil)

	names, err := adapter.ListPackages(context.Background(), 0)
	require.NoError(t, err)
	// Installs descending, alphabetical for the zero-install tie.
	assert.Equal(t, []string{"wget", "git", "jq", "aalib", "zzuf"}, names)

	top2, err := adapter.ListPackages(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"wget", "git"}, top2)
}

func TestHomebrewMetadata(t *testing.T) {
	client := &routingClient{routes: map[string]string{
		"https://formulae.brew.sh/api/formula/wget.json": `{
			"name": "wget",
			"desc": "Internet file retriever",
			"homepage": "https://www.gnu.org/software/wget/",
			"license": "GPL-3.0-or-later",
			"versions": {"stable": "1.24.5", "head": "HEAD"},
			"urls": {
				"stable": {"url": "https://ftp.gnu.org/gnu/wget/wget-1.24.5.tar.gz"},
				"head": {"url": "https://git.savannah.gnu.org/git/wget.git"}
			},
			"dependencies": ["libidn2", "openssl@3", {"name": "gettext"}]
		}`,
	}}
	adapter := NewHomebrew(client, nil)

	meta, err := adapter.Metadata(context.Background(), "wget")
	require.NoError(t, err)
	assert.Equal(t, "wget", meta.Name)
	assert.Equal(t, "1.24.5", meta.Version)
	assert.Equal(t, "GPL-3.0-or-later", meta.License)
	assert.Equal(t, []string{"libidn2", "openssl@3", "gettext"}, meta.Dependencies)
	assert.Empty(t, meta.RepositoryURL, "non-GitHub sources yield no repository")
}

func TestHomebrewRepositoryFromHeadURL(t *testing.T) {
	client := &routingClient{routes: map[string]string{
		"https://formulae.brew.sh/api/formula/git.json": `{
			"name": "git",
			"desc": "Distributed revision control system",
			"homepage": "https://git-scm.com",
			"versions": {"stable": "2.45.0"},
			"urls": {
				"stable": {"url": "https://mirrors.edge.kernel.org/pub/software/scm/git/git-2.45.0.tar.xz"},
				"head": {"url": "https://github.com/git/git.git"}
			}
		}`,
	}}
	adapter := NewHomebrew(client, nil)

	meta, err := adapter.Metadata(context.Background(), "git")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/git/git", meta.RepositoryURL)

	ref := adapter.SourceRepo(meta)
	require.NotNil(t, ref)
	assert.Equal(t, "git", ref.Owner)
	assert.Equal(t, "git", ref.Repo)
}

func TestHomebrewRepositoryFromStableTarball(t *testing.T) {
	f := brewFormula{}
	f.URLs.Stable.URL = "https://github.com/jqlang/jq/releases/download/jq-1.7.1/jq-1.7.1.tar.gz"
	assert.Equal(t, "https://github.com/jqlang/jq", brewRepositoryURL(f))
}

func TestHomebrewMetadataNotFound(t *testing.T) {
	adapter := NewHomebrew(&routingClient{}, nil)

	_, err := adapter.Metadata(context.Background(), "nope")
	var notFound *PackageNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestHomebrewInstallStats(t *testing.T) {
	client := &routingClient{routes: map[string]string{
		"https://formulae.brew.sh/api/analytics/install/30d.json": brewAnalytics,
	}}
	adapter := NewHomebrew(client, nil)

	stats, err := adapter.InstallStats(context.Background(), "wget")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(1234567), *stats.DownloadsLast30d)
	assert.False(t, stats.Estimated)

	// Unknown formula has no analytics row.
	stats, err = adapter.InstallStats(context.Background(), "zzuf")
	require.NoError(t, err)
	assert.Nil(t, stats)

	// Analytics are cached after the first load.
	assert.Len(t, client.requests, 1)
}

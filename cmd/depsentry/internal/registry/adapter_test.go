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
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// routingClient serves canned bodies keyed by URL; unknown URLs get the
// status in missStatus (404 by default).
type routingClient struct {
	routes     map[string]string
	missStatus int
	requests   []string
}

func (c *routingClient) Do(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	c.requests = append(c.requests, url)
	if body, ok := c.routes[url]; ok {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(body))),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}
	status := c.missStatus
	if status == 0 {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want *model.RepoRef
	}{
		{
			name: "plain github",
			url:  "https://github.com/expressjs/express",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "expressjs", Repo: "express"},
		},
		{
			name: "git plus prefix and dot git suffix",
			url:  "git+https://github.com/lodash/lodash.git",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "lodash", Repo: "lodash"},
		},
		{
			name: "git scheme",
			url:  "git://github.com/caolan/async.git",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "caolan", Repo: "async"},
		},
		{
			name: "github ssh",
			url:  "git@github.com:chalk/chalk.git",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "chalk", Repo: "chalk"},
		},
		{
			name: "github shorthand",
			url:  "github:sindresorhus/ora",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "sindresorhus", Repo: "ora"},
		},
		{
			name: "tree suffix stripped",
			url:  "https://github.com/pallets/flask/tree/main",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "pallets", Repo: "flask"},
		},
		{
			name: "monorepo subpath",
			url:  "https://github.com/babel/babel/tree/main/packages/babel-core",
			want: &model.RepoRef{Platform: model.PlatformGitHub, Owner: "babel", Repo: "babel", Subpath: "packages/babel-core"},
		},
		{
			name: "gitlab",
			url:  "https://gitlab.com/gitlab-org/gitlab",
			want: &model.RepoRef{Platform: model.PlatformGitLab, Owner: "gitlab-org", Repo: "gitlab"},
		},
		{
			name: "gitlab shorthand",
			url:  "gitlab:inkscape/inkscape",
			want: &model.RepoRef{Platform: model.PlatformGitLab, Owner: "inkscape", Repo: "inkscape"},
		},
		{
			name: "bitbucket",
			url:  "https://bitbucket.org/atlassian/python-bitbucket",
			want: &model.RepoRef{Platform: model.PlatformBitbucket, Owner: "atlassian", Repo: "python-bitbucket"},
		},
		{
			name: "not a forge",
			url:  "https://example.com/docs",
			want: nil,
		},
		{
			name: "empty",
			url:  "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRepoURL(tt.url))
		})
	}
}

func TestNormalizePyPIName(t *testing.T) {
	assert.Equal(t, "python-dateutil", NormalizePyPIName("Python_DateUtil"))
	assert.Equal(t, "zope-interface", NormalizePyPIName("zope.interface"))
	assert.Equal(t, "a-b", NormalizePyPIName("a-_.b"))
}

func TestPackageNotFoundError(t *testing.T) {
	err := &PackageNotFoundError{Ecosystem: model.EcosystemNPM, Name: "left-padd"}
	assert.Contains(t, err.Error(), "left-padd")
	assert.Contains(t, err.Error(), "npm")
}

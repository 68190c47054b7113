// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpcache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls  int
	status int
	body   string
}

func (c *countingClient) Do(req *http.Request) (*http.Response, error) {
	c.calls++
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(c.body))),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func newTestCache(t *testing.T, inner HTTPClient) *Cache {
	t.Helper()
	cache, err := Open(t.TempDir(), inner, time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestDoCachesSecondGet(t *testing.T) {
	inner := &countingClient{status: http.StatusOK, body: `{"name":"wget"}`}
	cache := newTestCache(t, inner)

	req, _ := http.NewRequest(http.MethodGet, "https://formulae.brew.sh/api/formula/wget.json", nil)

	for i := 0; i < 3; i++ {
		resp, err := cache.Do(req.Clone(req.Context()))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, `{"name":"wget"}`, string(body))
	}

	assert.Equal(t, 1, inner.calls, "second and third GET should hit the cache")
}

func TestDoSkipsNon200(t *testing.T) {
	inner := &countingClient{status: http.StatusNotFound, body: "missing"}
	cache := newTestCache(t, inner)

	req, _ := http.NewRequest(http.MethodGet, "https://registry.npmjs.org/nope", nil)

	for i := 0; i < 2; i++ {
		resp, err := cache.Do(req.Clone(req.Context()))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	assert.Equal(t, 2, inner.calls, "404s must not be cached")
}

func TestDoBypassesAuthorizedRequests(t *testing.T) {
	inner := &countingClient{status: http.StatusOK, body: "private"}
	cache := newTestCache(t, inner)

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/repos/a/b", nil)
	req.Header.Set("Authorization", "Bearer token")

	for i := 0; i < 2; i++ {
		resp, err := cache.Do(req.Clone(req.Context()))
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, 2, inner.calls, "authenticated requests must bypass the cache")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpcache provides a badger-backed response cache for the
// read-mostly registry and aggregator endpoints. Bulk package listings
// (the Homebrew formula index, the PyPI top-packages dataset) are
// megabytes of JSON that change daily at most; caching them keeps queue
// refreshes cheap.
package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/depsentry/pkg/logging"
)

// HTTPClient is the minimal request executor, satisfied by *http.Client
// and by test fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache wraps an HTTPClient with an on-disk GET cache. Only 200
// responses to unauthenticated GET requests are stored; everything else
// passes through. Cache is safe for concurrent use.
type Cache struct {
	db    *badger.DB
	inner HTTPClient
	ttl   time.Duration
	log   *logging.Logger

	mu     sync.Mutex
	closed bool
}

// Open creates or opens the cache database at dir. TTL bounds entry
// lifetime; badger evicts expired entries lazily.
func Open(dir string, inner HTTPClient, ttl time.Duration, log *logging.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open http cache at %s: %w", dir, err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Cache{db: db, inner: inner, ttl: ttl, log: log}, nil
}

// Do executes the request, serving cacheable GETs from disk when a
// fresh entry exists. A cache hit synthesizes a 200 response with the
// stored body; headers are not preserved.
func (c *Cache) Do(req *http.Request) (*http.Response, error) {
	if !c.cacheable(req) {
		return c.inner.Do(req)
	}

	key := []byte(req.URL.String())

	if body, ok := c.get(key); ok {
		return &http.Response{
			Status:     "200 OK",
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body for caching: %w", err)
	}
	c.put(key, body)

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *Cache) cacheable(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	// Authenticated responses vary per credential; never cache them.
	if req.Header.Get("Authorization") != "" {
		return false
	}
	return req.Header.Get("Cache-Control") != "no-cache"
}

func (c *Cache) get(key []byte) ([]byte, bool) {
	var body []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *Cache) put(key, body []byte) {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, body).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		// Cache write failures degrade to pass-through behavior.
		c.log.Warn("http cache write failed", "key", string(key), "error", err.Error())
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/depsentry/pkg/logging"
)

// defaultPublishInterval is the package count between uploads.
const defaultPublishInterval = 50

// Uploader copies one local file to remote storage.
type Uploader interface {
	UploadFile(ctx context.Context, localPath, remotePath string) error
}

// PublisherStatus is a point-in-time view for monitoring.
type PublisherStatus struct {
	SincePublish   int        `json:"packages_since_publish"`
	TotalPublished int        `json:"total_files_published"`
	LastPublish    *time.Time `json:"last_publish,omitempty"`
}

// Publisher uploads analysis artifacts and summaries on a package-count
// cadence. Only files modified since the previous publish are uploaded,
// keyed by mtime. A nil uploader makes every operation a no-op.
type Publisher struct {
	uploader Uploader
	dataDir  string
	interval int
	log      *logging.Logger

	mu             sync.Mutex
	sincePublish   int
	totalPublished int
	lastPublish    time.Time
	dirty          bool
}

// NewPublisher builds a Publisher rooted at dataDir. interval <= 0
// takes the default of 50 packages.
func NewPublisher(uploader Uploader, dataDir string, interval int, log *logging.Logger) *Publisher {
	if interval <= 0 {
		interval = defaultPublishInterval
	}
	if log == nil {
		log = logging.Default()
	}
	return &Publisher{
		uploader: uploader,
		dataDir:  dataDir,
		interval: interval,
		log:      log,
	}
}

// RecordPackage notes one completed analysis toward the publish cadence.
func (p *Publisher) RecordPackage() {
	if p == nil || p.uploader == nil {
		return
	}
	p.mu.Lock()
	p.sincePublish++
	p.dirty = true
	p.mu.Unlock()
}

// MaybePublish uploads when the cadence threshold has been reached.
func (p *Publisher) MaybePublish(ctx context.Context) error {
	if p == nil || p.uploader == nil {
		return nil
	}
	p.mu.Lock()
	due := p.sincePublish >= p.interval
	p.mu.Unlock()
	if !due {
		return nil
	}
	return p.publish(ctx)
}

// ForcePublish uploads any pending changes regardless of cadence.
func (p *Publisher) ForcePublish(ctx context.Context) error {
	if p == nil || p.uploader == nil {
		return nil
	}
	p.mu.Lock()
	dirty := p.dirty
	p.mu.Unlock()
	if !dirty {
		return nil
	}
	return p.publish(ctx)
}

// Status returns the publisher's monitoring view.
func (p *Publisher) Status() PublisherStatus {
	if p == nil {
		return PublisherStatus{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PublisherStatus{
		SincePublish:   p.sincePublish,
		TotalPublished: p.totalPublished,
	}
	if !p.lastPublish.IsZero() {
		last := p.lastPublish
		st.LastPublish = &last
	}
	return st
}

// publish walks the analyzed and final trees and uploads every file
// newer than the previous publish. Remote paths mirror the layout under
// dataDir. Individual upload failures are logged and aggregated so one
// bad object does not strand the rest of the delta.
func (p *Publisher) publish(ctx context.Context) error {
	p.mu.Lock()
	since := p.lastPublish
	p.mu.Unlock()

	started := time.Now().UTC()
	uploaded, failed := 0, 0
	for _, subdir := range []string{"analyzed", "final"} {
		root := filepath.Join(p.dataDir, subdir)
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if !since.IsZero() && !info.ModTime().After(since) {
				return nil
			}
			rel, err := filepath.Rel(p.dataDir, path)
			if err != nil {
				return err
			}
			remote := filepath.ToSlash(rel)
			if uerr := p.uploader.UploadFile(ctx, path, remote); uerr != nil {
				failed++
				p.log.Warn("upload failed", "file", remote, "error", uerr.Error())
				return nil
			}
			uploaded++
			return nil
		})
		if err != nil {
			return fmt.Errorf("publish walk of %s: %w", root, err)
		}
	}

	p.mu.Lock()
	p.sincePublish = 0
	p.totalPublished += uploaded
	// Advance the delta watermark only on a clean publish so failed
	// files are retried next time.
	if failed == 0 {
		p.lastPublish = started
		p.dirty = false
	} else {
		p.dirty = true
	}
	p.mu.Unlock()

	p.log.Info("published analysis results",
		"uploaded", uploaded, "failed", failed,
		"duration_ms", time.Since(started).Milliseconds())
	if failed > 0 {
		return fmt.Errorf("publish completed with %d failed uploads", failed)
	}
	return nil
}

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
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== FAKES =====

type fakeUploader struct {
	uploads []string
	failOn  map[string]error
}

func (f *fakeUploader) UploadFile(_ context.Context, _ string, remotePath string) error {
	if err := f.failOn[remotePath]; err != nil {
		return err
	}
	f.uploads = append(f.uploads, remotePath)
	return nil
}

// ===== HELPERS =====

func writeResultFile(t *testing.T, dataDir string, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{dataDir}, parts...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	return path
}

// ===== TESTS =====

func TestPublisherCadence(t *testing.T) {
	dataDir := t.TempDir()
	writeResultFile(t, dataDir, "analyzed", "npm", "alpha.json")
	uploader := &fakeUploader{}
	p := NewPublisher(uploader, dataDir, 2, nil)

	p.RecordPackage()
	require.NoError(t, p.MaybePublish(context.Background()))
	assert.Empty(t, uploader.uploads)

	p.RecordPackage()
	require.NoError(t, p.MaybePublish(context.Background()))
	assert.Equal(t, []string{"analyzed/npm/alpha.json"}, uploader.uploads)

	st := p.Status()
	assert.Equal(t, 0, st.SincePublish)
	assert.Equal(t, 1, st.TotalPublished)
	require.NotNil(t, st.LastPublish)
}

func TestPublisherUploadsOnlyChangedFiles(t *testing.T) {
	dataDir := t.TempDir()
	writeResultFile(t, dataDir, "analyzed", "npm", "alpha.json")
	writeResultFile(t, dataDir, "final", "npm.json")
	uploader := &fakeUploader{}
	p := NewPublisher(uploader, dataDir, 1, nil)

	p.RecordPackage()
	require.NoError(t, p.MaybePublish(context.Background()))
	sort.Strings(uploader.uploads)
	assert.Equal(t, []string{"analyzed/npm/alpha.json", "final/npm.json"}, uploader.uploads)

	// Age the untouched file well past the publish timestamp, then add
	// one new artifact. Only the new one should go up.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dataDir, "analyzed", "npm", "alpha.json"), old, old))
	fresh := writeResultFile(t, dataDir, "analyzed", "npm", "beta.json")
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(fresh, future, future))

	uploader.uploads = nil
	p.RecordPackage()
	require.NoError(t, p.MaybePublish(context.Background()))
	assert.Equal(t, []string{"analyzed/npm/beta.json"}, uploader.uploads)
}

func TestForcePublishOnlyWhenDirty(t *testing.T) {
	dataDir := t.TempDir()
	writeResultFile(t, dataDir, "final", "npm.json")
	uploader := &fakeUploader{}
	p := NewPublisher(uploader, dataDir, 50, nil)

	require.NoError(t, p.ForcePublish(context.Background()))
	assert.Empty(t, uploader.uploads)

	p.RecordPackage()
	require.NoError(t, p.ForcePublish(context.Background()))
	assert.Equal(t, []string{"final/npm.json"}, uploader.uploads)

	// Nothing new since the last publish.
	uploader.uploads = nil
	require.NoError(t, p.ForcePublish(context.Background()))
	assert.Empty(t, uploader.uploads)
}

func TestPublisherAggregatesUploadFailures(t *testing.T) {
	dataDir := t.TempDir()
	writeResultFile(t, dataDir, "analyzed", "npm", "alpha.json")
	writeResultFile(t, dataDir, "analyzed", "npm", "beta.json")
	uploader := &fakeUploader{failOn: map[string]error{
		"analyzed/npm/alpha.json": errors.New("bucket unavailable"),
	}}
	p := NewPublisher(uploader, dataDir, 1, nil)

	p.RecordPackage()
	err := p.MaybePublish(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 failed uploads")
	assert.Equal(t, []string{"analyzed/npm/beta.json"}, uploader.uploads)

	// A failed publish stays dirty so shutdown retries it.
	uploader.failOn = nil
	uploader.uploads = nil
	require.NoError(t, p.ForcePublish(context.Background()))
	assert.Contains(t, uploader.uploads, "analyzed/npm/alpha.json")
}

func TestPublisherNilUploaderIsNoOp(t *testing.T) {
	p := NewPublisher(nil, t.TempDir(), 1, nil)
	p.RecordPackage()
	require.NoError(t, p.MaybePublish(context.Background()))
	require.NoError(t, p.ForcePublish(context.Background()))
	assert.Equal(t, PublisherStatus{}, p.Status())
}

func TestPublisherMissingTreesAreSkipped(t *testing.T) {
	uploader := &fakeUploader{}
	p := NewPublisher(uploader, t.TempDir(), 1, nil)
	p.RecordPackage()
	require.NoError(t, p.MaybePublish(context.Background()))
	assert.Empty(t, uploader.uploads)
}

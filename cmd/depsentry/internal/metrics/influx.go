// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxExporter pushes batch summaries to an InfluxDB bucket as one
// point per export.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxExporter connects to an InfluxDB 2.x instance.
func NewInfluxExporter(url, token, org, bucket string) *InfluxExporter {
	client := influxdb2.NewClient(url, token)
	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

// Export writes the snapshot's headline numbers.
func (e *InfluxExporter) Export(ctx context.Context, snap Snapshot) error {
	fields := map[string]any{
		"completed_packages":   snap.CompletedPackages,
		"scored_count":         snap.ScoredCount,
		"unavailable_count":    snap.UnavailableCount,
		"error_count":          snap.ErrorCount,
		"rate_limit_remaining": snap.GitHubRateLimitRemaining,
	}
	if avg := snap.AverageScore(); avg != nil {
		fields["average_score"] = *avg
	}
	point := influxdb2.NewPoint(
		"depsentry_pipeline",
		map[string]string{"ecosystem": snap.Ecosystem},
		fields,
		time.Now(),
	)
	return e.writeAPI.WritePoint(ctx, point)
}

// Close releases the underlying HTTP client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm runs qualitative package assessments against a local or
// remote language model: documentation quality, code security review,
// community sentiment, maintainer communication, maintenance status,
// changelog quality, and governance. Every assessment degrades
// independently; a dead model never fails the pipeline.
package llm

import (
	"context"
	"net/http"
)

// generationTemperature keeps scoring consistent across runs.
const generationTemperature = 0.1

// Backend abstracts one model server.
type Backend interface {
	// Generate returns the completion for prompt using the named model.
	Generate(ctx context.Context, model, prompt string) (string, error)
	// Models lists the model names the server can currently serve.
	Models(ctx context.Context) ([]string, error)
	// Name identifies the backend in logs ("ollama", "openai").
	Name() string
}

// HTTPClient is the request executor used for backend probe endpoints.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

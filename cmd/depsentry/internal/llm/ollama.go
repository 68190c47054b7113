// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaURL is the stock local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaBackend serves completions from a local Ollama instance. This
// is the default backend; nothing leaves the machine.
type OllamaBackend struct {
	serverURL string
	client    HTTPClient

	mu   sync.Mutex
	llms map[string]*ollama.LLM
}

// NewOllamaBackend builds an Ollama backend. client is used only for
// the model-listing probe; nil falls back to http.DefaultClient.
func NewOllamaBackend(serverURL string, client HTTPClient) *OllamaBackend {
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaBackend{
		serverURL: serverURL,
		client:    client,
		llms:      make(map[string]*ollama.LLM),
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

// llmFor returns a cached per-model client.
func (b *OllamaBackend) llmFor(model string) (*ollama.LLM, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.llms[model]; ok {
		return cached, nil
	}
	built, err := ollama.New(ollama.WithServerURL(b.serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("build ollama client for %s: %w", model, err)
	}
	b.llms[model] = built
	return built, nil
}

// Generate completes prompt with the named model.
func (b *OllamaBackend) Generate(ctx context.Context, model, prompt string) (string, error) {
	client, err := b.llmFor(model)
	if err != nil {
		return "", err
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, client, prompt,
		llms.WithTemperature(generationTemperature))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out, nil
}

// Models queries the /api/tags endpoint.
func (b *OllamaBackend) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.serverURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama tags returned %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

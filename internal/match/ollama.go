// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OllamaEmbedder calls a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultEmbedModel    = "all-minilm"
)

// NewOllamaEmbedder creates an embedder with defaults filled in.
func NewOllamaEmbedder(baseURL, model string, client *http.Client) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultEmbedModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaEmbedder{BaseURL: baseURL, Model: model, Client: client}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.Model, Prompt: text})
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("calling Ollama: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &EmbeddingError{Err: fmt.Errorf("Ollama returned HTTP %d", resp.StatusCode)}
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Embedding) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("Ollama returned an empty embedding")}
	}
	return parsed.Embedding, nil
}

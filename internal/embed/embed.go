// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed talks to the external embedding collaborator. The engine
// only needs one operation: text in, vector out. Transient failures are
// retried with bounded backoff before they surface.
package embed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/kb-engine/internal/httputil"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Embedder computes one embedding per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client calls an HTTP embedding service with retry on transient
// failures.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	maxRetries int
	dimensions int
}

// NewClient builds a Client from the embedding configuration.
func NewClient(cfg types.EmbeddingConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		dimensions: cfg.Dimensions,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts text to the service and returns its embedding. Transport
// errors and transient HTTP statuses are retried; exhaustion surfaces as
// ErrRetryableIO. A malformed response body surfaces as ErrData.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	endpoint, err := url.JoinPath(c.endpoint, "embed")
	if err != nil {
		return nil, fmt.Errorf("building embed URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed after retries: %v", types.ErrRetryableIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: embedding service returned %d after retries: %s",
				types.ErrRetryableIO, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return nil, types.Dataf("embedding service returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.Dataf("decoding embedding response: %v", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, types.Dataf("embedding service returned an empty vector")
	}
	if c.dimensions > 0 && len(parsed.Embedding) != c.dimensions {
		return nil, types.Dataf("embedding has %d dimensions, expected %d",
			len(parsed.Embedding), c.dimensions)
	}
	return parsed.Embedding, nil
}

// Deterministic derives embeddings from the text's own hash. It keeps the
// engine usable offline and gives tests stable vectors; it carries no
// semantic signal.
type Deterministic struct {
	Dimensions int
}

// Embed expands the sha256 of text into Dimensions float32 values in
// [-1, 1).
func (d Deterministic) Embed(_ context.Context, text string) ([]float32, error) {
	dim := d.Dimensions
	if dim <= 0 {
		dim = 768
	}

	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	block := seed[:]
	for i := range vec {
		if i%8 == 0 && i > 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		off := (i % 8) * 4
		bits := binary.LittleEndian.Uint32(block[off : off+4])
		vec[i] = float32(bits%2000)/1000.0 - 1.0
	}
	return vec, nil
}

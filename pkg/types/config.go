// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DefaultMaxDeleteNodes caps how many graph nodes one deletion may remove
// before the safety gate requires an explicit override.
const DefaultMaxDeleteNodes = 2000

// EmbeddingConfig holds settings for the external embedding collaborator.
type EmbeddingConfig struct {
	// Endpoint is the base URL of the embedding service. Empty selects the
	// built-in deterministic embedder (offline and test use).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Model is the embedding model identifier.
	Model string `json:"model" yaml:"model"`

	// Dimensions is the expected embedding width (default 768).
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	// APIKey authenticates against the embedding service.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries bounds retry attempts on transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// EngineConfig holds settings for the dual-store engine.
type EngineConfig struct {
	// DataDir is the base directory holding vectors.db, graph.db, and
	// ledger.db.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxDeleteNodes is the default deletion safety threshold.
	MaxDeleteNodes int `json:"max_delete_nodes" yaml:"max_delete_nodes"`

	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
}

// WithDefaults fills unset fields with their defaults.
func (c EngineConfig) WithDefaults() EngineConfig {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.MaxDeleteNodes <= 0 {
		c.MaxDeleteNodes = DefaultMaxDeleteNodes
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = 30 * time.Second
	}
	return c
}

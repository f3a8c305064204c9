// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine keeps the vector store and the knowledge graph
// representing the same logical content. It owns the only two write
// paths (batch import and deletion apply) and serializes them behind
// one mutation lock, while plans and inspections read last-committed
// state.
package engine

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/kb-engine/internal/embed"
	"github.com/pdiddy/kb-engine/internal/graphstore"
	"github.com/pdiddy/kb-engine/internal/ledger"
	"github.com/pdiddy/kb-engine/internal/vecstore"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Engine binds the two stores, the batch ledger, and the embedding
// collaborator.
type Engine struct {
	cfg      types.EngineConfig
	vec      *vecstore.Store
	graph    *graphstore.Store
	ledger   *ledger.Store
	embedder embed.Embedder
	log      *log.Logger

	// mu serializes mutations. Import and deletion apply hold it for the
	// store-write section; plans and inspections never take it.
	mu sync.Mutex
}

// New opens the persisted stores under cfg.DataDir and returns an engine.
func New(cfg types.EngineConfig, embedder embed.Embedder, logger *log.Logger) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if embedder == nil {
		embedder = embed.Deterministic{Dimensions: cfg.Embedding.Dimensions}
	}

	vec, err := vecstore.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	graph, err := graphstore.Open(cfg.DataDir)
	if err != nil {
		vec.Close()
		return nil, err
	}
	led, err := ledger.Open(cfg.DataDir)
	if err != nil {
		vec.Close()
		graph.Close()
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		vec:      vec,
		graph:    graph,
		ledger:   led,
		embedder: embedder,
		log:      logger,
	}, nil
}

// Close releases all store connections.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range []io.Closer{e.vec, e.graph, e.ledger} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("closing engine: %w", firstErr)
	}
	return nil
}

// MaxDeleteNodes returns the configured deletion safety threshold.
func (e *Engine) MaxDeleteNodes() int {
	return e.cfg.MaxDeleteNodes
}

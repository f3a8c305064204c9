// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"

	"github.com/pdiddy/kb-engine/internal/graphstore"
	"github.com/pdiddy/kb-engine/internal/ledger"
	"github.com/pdiddy/kb-engine/internal/vecstore"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// ImportSummary holds counts from one batch import.
type ImportSummary struct {
	BatchID         string
	Paragraphs      int // newly inserted
	DedupSkipped    int // identical text already present
	NewEntities     int
	MergedEntities  int
	Relations       int // newly inserted edges
	RelationsMerged int // re-extracted edges already present
}

// importWork is everything an import needs to write, with embeddings
// computed up front so the mutation lock is never held across a network
// call.
type importWork struct {
	newParagraphs map[string]bool
	newEdges      map[string]bool
	vectors       map[string][]float32 // id -> embedding for every id that may need one
}

// ImportBatch imports one extraction batch. The batch is all-or-nothing:
// a failure mid-batch rolls back every store write and the ledger entry,
// so the Inspector never sees a half-imported batch. Re-importing
// identical content is a no-op thanks to content-hash dedup.
func (e *Engine) ImportBatch(ctx context.Context, batch *types.ExtractionBatch) (*ImportSummary, error) {
	if batch == nil || batch.Source == "" {
		return nil, types.Validationf("batch has no source identifier")
	}

	items, err := resolveBatch(batch)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{BatchID: batch.Source}

	// Phase 1: resolve what is new and fetch embeddings. Reads only,
	// outside the mutation lock, since embedding calls can be slow.
	work, err := e.prepareImport(ctx, items, summary)
	if err != nil {
		return nil, err
	}

	// Phase 2: write both stores and the ledger under the mutation lock.
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.commitImport(ctx, batch, items, work, summary); err != nil {
		return nil, err
	}

	e.log.Info("batch imported", "batch", batch.Source,
		"paragraphs", summary.Paragraphs, "dedup_skipped", summary.DedupSkipped,
		"entities_new", summary.NewEntities, "entities_merged", summary.MergedEntities,
		"relations", summary.Relations)
	return summary, nil
}

func (e *Engine) prepareImport(ctx context.Context, items []batchItem, summary *ImportSummary) (*importWork, error) {
	work := &importWork{
		newParagraphs: make(map[string]bool),
		newEdges:      make(map[string]bool),
		vectors:       make(map[string][]float32),
	}

	embedOnce := func(id, text string) error {
		if _, ok := work.vectors[id]; ok {
			return nil
		}
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", id, err)
		}
		work.vectors[id] = vec
		return nil
	}

	seenEntities := make(map[string]bool)
	for _, item := range items {
		exists, err := e.graph.HasNode(ctx, item.paragraphID)
		if err != nil {
			return nil, err
		}
		if exists {
			summary.DedupSkipped++
		} else if !work.newParagraphs[item.paragraphID] {
			work.newParagraphs[item.paragraphID] = true
			summary.Paragraphs++
			if err := embedOnce(item.paragraphID, item.text); err != nil {
				return nil, err
			}
		}

		for eid, name := range item.entities {
			if seenEntities[eid] {
				continue
			}
			seenEntities[eid] = true
			exists, err := e.graph.HasNode(ctx, eid)
			if err != nil {
				return nil, err
			}
			if exists {
				summary.MergedEntities++
			} else {
				summary.NewEntities++
				if err := embedOnce(eid, name); err != nil {
					return nil, err
				}
			}
		}

		for _, edge := range item.edges {
			exists, err := e.graph.HasEdge(ctx, edge.id)
			if err != nil {
				return nil, err
			}
			if exists {
				summary.RelationsMerged++
				continue
			}
			if !work.newEdges[edge.id] {
				work.newEdges[edge.id] = true
				summary.Relations++
				if err := embedOnce(edge.id, edge.text); err != nil {
					return nil, err
				}
			}
		}
	}
	return work, nil
}

func (e *Engine) commitImport(ctx context.Context, batch *types.ExtractionBatch, items []batchItem, work *importWork, summary *ImportSummary) (err error) {
	existedBefore, err := e.ledger.BeginImport(ctx, batch.Source, batch.Source)
	if err != nil {
		return err
	}

	vtx, err := e.vec.Begin(ctx)
	if err != nil {
		e.ledger.AbortImport(ctx, batch.Source, existedBefore)
		return err
	}
	gtx, err := e.graph.Begin(ctx)
	if err != nil {
		vtx.Rollback()
		e.ledger.AbortImport(ctx, batch.Source, existedBefore)
		return err
	}

	rollback := func(cause error) error {
		vtx.Rollback()
		gtx.Rollback()
		if aerr := e.ledger.AbortImport(ctx, batch.Source, existedBefore); aerr != nil {
			e.log.Error("ledger abort failed; batch left in importing state",
				"batch", batch.Source, "err", aerr)
		}
		return cause
	}

	var ledgerItems []ledger.Item
	recordedEntities := make(map[string]bool)

	// Only ids this transaction inserts are eligible for compensation.
	// Prepare ran outside the mutation lock, so an id prepared as new can
	// already exist by now and its embedding belongs to the import that
	// landed in between.
	var insertedVectors []string

	for _, item := range items {
		if work.newParagraphs[item.paragraphID] {
			if err := gtx.InsertParagraph(ctx, item.paragraphID, item.text, batch.Source, item.rawIndex); err != nil {
				return rollback(err)
			}
			if err := vtx.Insert(ctx, item.paragraphID, vecstore.KindParagraph, work.vectors[item.paragraphID]); err != nil {
				return rollback(err)
			}
			insertedVectors = append(insertedVectors, item.paragraphID)
			ledgerItems = append(ledgerItems, ledger.Item{Kind: ledger.KindParagraph, ID: item.paragraphID})
		}

		for eid, name := range item.entities {
			created, err := gtx.EnsureEntity(ctx, eid, name)
			if err != nil {
				return rollback(err)
			}
			if created {
				if err := vtx.Insert(ctx, eid, vecstore.KindEntity, work.vectors[eid]); err != nil {
					return rollback(err)
				}
				insertedVectors = append(insertedVectors, eid)
			}
			if _, err := gtx.AddMention(ctx, eid, item.paragraphID); err != nil {
				return rollback(err)
			}
			if !recordedEntities[eid] {
				recordedEntities[eid] = true
				ledgerItems = append(ledgerItems, ledger.Item{Kind: ledger.KindEntity, ID: eid})
			}
		}

		for _, edge := range item.edges {
			if work.newEdges[edge.id] {
				if err := gtx.InsertEdge(ctx, edge.toGraphEdge(item.paragraphID)); err != nil {
					return rollback(err)
				}
				if err := vtx.Insert(ctx, edge.id, vecstore.KindRelation, work.vectors[edge.id]); err != nil {
					return rollback(err)
				}
				insertedVectors = append(insertedVectors, edge.id)
			}
			ledgerItems = append(ledgerItems, ledger.Item{Kind: ledger.KindRelation, ID: edge.id})
		}
	}

	// Commit order: vector store, graph store, then the ledger as the
	// logical commit point. A crash between commits leaves the batch in
	// the importing state, which reload reports instead of repairing.
	if err := vtx.Commit(); err != nil {
		return rollback(fmt.Errorf("committing vector store: %w", err))
	}
	if err := gtx.Commit(); err != nil {
		if cerr := e.compensateVectorInserts(ctx, insertedVectors); cerr != nil {
			e.log.Error("vector compensation failed after graph commit failure",
				"batch", batch.Source, "err", cerr)
			return types.Consistencyf(
				"batch %s: graph commit failed (%v) and vector rollback failed (%v); run refresh to assess",
				batch.Source, err, cerr)
		}
		gtx.Rollback()
		if aerr := e.ledger.AbortImport(ctx, batch.Source, existedBefore); aerr != nil {
			e.log.Error("ledger abort failed", "batch", batch.Source, "err", aerr)
		}
		return fmt.Errorf("committing graph store: %w", err)
	}
	if err := e.ledger.CommitImport(ctx, batch.Source, ledgerItems); err != nil {
		return types.Consistencyf(
			"batch %s: stores committed but ledger commit failed (%v); batch remains in importing state",
			batch.Source, err)
	}
	return nil
}

// compensateVectorInserts removes the given vector rows after a failed
// import already committed them, restoring dual-store agreement. Callers
// pass exactly the ids their own transaction inserted; embeddings owned
// by other imports are never touched.
func (e *Engine) compensateVectorInserts(ctx context.Context, ids []string) error {
	vtx, err := e.vec.Begin(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := vtx.Delete(ctx, id); err != nil {
			vtx.Rollback()
			return err
		}
	}
	return vtx.Commit()
}

func (r resolvedEdge) toGraphEdge(paragraphID string) graphstore.Edge {
	return graphstore.Edge{
		ID:          r.id,
		Subject:     r.subject,
		Predicate:   r.predicate,
		Object:      r.object,
		ParagraphID: paragraphID,
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"

	"github.com/pdiddy/kb-engine/internal/graphstore"
	"github.com/pdiddy/kb-engine/internal/ledger"
	"github.com/pdiddy/kb-engine/internal/vecstore"
	"github.com/pdiddy/kb-engine/pkg/types"
)

const (
	sampleParagraphs = 3
	sampleEntities   = 5
)

// InspectGlobal summarizes both stores across everything imported.
func (e *Engine) InspectGlobal(ctx context.Context) (*types.GlobalReport, error) {
	report := &types.GlobalReport{}

	var err error
	if report.ParagraphVectors, err = e.vec.Count(ctx, vecstore.KindParagraph); err != nil {
		return nil, err
	}
	if report.EntityVectors, err = e.vec.Count(ctx, vecstore.KindEntity); err != nil {
		return nil, err
	}
	if report.RelationVectors, err = e.vec.Count(ctx, vecstore.KindRelation); err != nil {
		return nil, err
	}

	if report.ParagraphNodes, err = e.graph.CountNodes(ctx, graphstore.NodeParagraph); err != nil {
		return nil, err
	}
	if report.EntityNodes, err = e.graph.CountNodes(ctx, graphstore.NodeEntity); err != nil {
		return nil, err
	}
	report.GraphNodes = report.ParagraphNodes + report.EntityNodes
	if report.GraphEdges, err = e.graph.CountEdges(ctx); err != nil {
		return nil, err
	}

	if report.SampleParagraphs, err = e.graph.SampleNodes(ctx, graphstore.NodeParagraph, sampleParagraphs); err != nil {
		return nil, err
	}
	if report.SampleEntities, err = e.graph.SampleNodes(ctx, graphstore.NodeEntity, sampleEntities); err != nil {
		return nil, err
	}
	return report, nil
}

// InspectBatch reports what remains of a ledger-recorded batch in each
// store. An unknown batch id is a ValidationError.
func (e *Engine) InspectBatch(ctx context.Context, batchID string) (*types.BatchReport, error) {
	state, err := e.ledger.State(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if state == "" {
		return nil, types.Validationf("batch %q is not recorded in the ledger", batchID)
	}

	paragraphs, err := e.ledger.Items(ctx, batchID, ledger.KindParagraph)
	if err != nil {
		return nil, err
	}
	entities, err := e.ledger.Items(ctx, batchID, ledger.KindEntity)
	if err != nil {
		return nil, err
	}
	relations, err := e.ledger.Items(ctx, batchID, ledger.KindRelation)
	if err != nil {
		return nil, err
	}

	report, err := e.presenceReport(ctx, batchID, paragraphs, entities, relations)
	if err != nil {
		return nil, err
	}
	report.State = state
	return report, nil
}

// InspectItems reports the footprint of an extraction batch file without
// requiring a ledger entry, which covers batches imported before the
// ledger existed or files that were never imported at all.
func (e *Engine) InspectItems(ctx context.Context, batch *types.ExtractionBatch) (*types.BatchReport, error) {
	paragraphs, entities, relations, err := BatchIDSets(batch)
	if err != nil {
		return nil, err
	}

	report, err := e.presenceReport(ctx, batch.Source, paragraphs, entities, relations)
	if err != nil {
		return nil, err
	}
	state, err := e.ledger.State(ctx, batch.Source)
	if err != nil {
		return nil, err
	}
	report.State = state
	return report, nil
}

func (e *Engine) presenceReport(ctx context.Context, batchID string, paragraphs, entities, relations []string) (*types.BatchReport, error) {
	report := &types.BatchReport{BatchID: batchID}

	var err error
	if report.Paragraphs, err = e.nodePresence(ctx, paragraphs); err != nil {
		return nil, err
	}
	if report.Entities, err = e.nodePresence(ctx, entities); err != nil {
		return nil, err
	}
	if report.Relations, err = e.edgePresence(ctx, relations); err != nil {
		return nil, err
	}

	for _, pid := range paragraphs {
		if len(report.SampleRemaining) >= sampleParagraphs {
			break
		}
		present, err := e.graph.HasNode(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		node, err := e.graph.Node(ctx, pid)
		if err != nil {
			return nil, err
		}
		report.SampleRemaining = append(report.SampleRemaining, types.Preview{
			ID:      node.ID,
			Content: truncatePreview(node.Content, 80),
		})
	}
	return report, nil
}

func (e *Engine) nodePresence(ctx context.Context, ids []string) (types.ItemPresence, error) {
	p := types.ItemPresence{Total: len(ids)}
	var err error
	if p.InVector, err = e.vec.CountPresent(ctx, ids); err != nil {
		return p, err
	}
	if p.InGraph, err = e.graph.CountNodesPresent(ctx, ids); err != nil {
		return p, err
	}
	return p, nil
}

func (e *Engine) edgePresence(ctx context.Context, ids []string) (types.ItemPresence, error) {
	p := types.ItemPresence{Total: len(ids)}
	var err error
	if p.InVector, err = e.vec.CountPresent(ctx, ids); err != nil {
		return p, err
	}
	if p.InGraph, err = e.graph.CountEdgesPresent(ctx, ids); err != nil {
		return p, err
	}
	return p, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// maxDivergentListed caps how many divergent ids a consistency error
// names before eliding the rest.
const maxDivergentListed = 10

// Reload verifies the persisted state before the engine serves requests:
// no journaled mutation may be pending, no batch may be stuck importing,
// and the two stores must hold the same id set. Any violation is a
// ConsistencyError; the engine never repairs divergence on its own.
func (e *Engine) Reload(ctx context.Context) (*types.GlobalReport, error) {
	intents, err := e.ledger.PendingIntents(ctx)
	if err != nil {
		return nil, err
	}
	if len(intents) > 0 {
		return nil, types.Consistencyf(
			"%d journaled %s intent(s) never completed; a mutation was interrupted mid-write",
			len(intents), intents[0].Op)
	}

	importing, err := e.ledger.ImportingBatches(ctx)
	if err != nil {
		return nil, err
	}
	if len(importing) > 0 {
		return nil, types.Consistencyf(
			"batch(es) stuck in importing state: %s", strings.Join(importing, ", "))
	}

	if err := e.verifyIDAgreement(ctx); err != nil {
		return nil, err
	}
	if err := e.graph.VerifyEdgeEndpoints(ctx); err != nil {
		return nil, err
	}

	report, err := e.InspectGlobal(ctx)
	if err != nil {
		return nil, err
	}
	e.log.Info("reload verified",
		"paragraphs", report.ParagraphNodes, "entities", report.EntityNodes,
		"edges", report.GraphEdges)
	return report, nil
}

// verifyIDAgreement computes the symmetric difference between the vector
// id set and the graph's node plus edge id set.
func (e *Engine) verifyIDAgreement(ctx context.Context) error {
	vecIDs, err := e.vec.IDs(ctx)
	if err != nil {
		return err
	}
	nodeIDs, err := e.graph.NodeIDs(ctx)
	if err != nil {
		return err
	}
	edgeIDs, err := e.graph.EdgeIDs(ctx)
	if err != nil {
		return err
	}

	inVec := make(map[string]bool, len(vecIDs))
	for _, id := range vecIDs {
		inVec[id] = true
	}
	inGraph := make(map[string]bool, len(nodeIDs)+len(edgeIDs))
	for _, id := range nodeIDs {
		inGraph[id] = true
	}
	for _, id := range edgeIDs {
		inGraph[id] = true
	}

	var vecOnly, graphOnly []string
	for id := range inVec {
		if !inGraph[id] {
			vecOnly = append(vecOnly, id)
		}
	}
	for id := range inGraph {
		if !inVec[id] {
			graphOnly = append(graphOnly, id)
		}
	}
	if len(vecOnly) == 0 && len(graphOnly) == 0 {
		return nil
	}
	sort.Strings(vecOnly)
	sort.Strings(graphOnly)
	return types.Consistencyf(
		"stores diverged: %d id(s) only in the vector store (%s), %d only in the graph (%s)",
		len(vecOnly), elide(vecOnly), len(graphOnly), elide(graphOnly))
}

func elide(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	if len(ids) > maxDivergentListed {
		return strings.Join(ids[:maxDivergentListed], ", ") + ", ..."
	}
	return strings.Join(ids, ", ")
}

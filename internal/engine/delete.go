// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pdiddy/kb-engine/internal/hashing"
	"github.com/pdiddy/kb-engine/internal/ledger"
	"github.com/pdiddy/kb-engine/internal/rawtext"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// SelectorKind names the four ways of choosing deletion targets.
type SelectorKind string

const (
	SelectByBatch    SelectorKind = "batch"
	SelectByRawIndex SelectorKind = "raw-index"
	SelectByHashList SelectorKind = "hash-list"
	SelectByKeyword  SelectorKind = "keyword"
)

// ConfirmToken is the exact confirmation a destructive apply requires.
const ConfirmToken = "YES"

// defaultKeywordLimit bounds keyword candidate lists when no limit is set.
const defaultKeywordLimit = 20

// Selector describes which content a deletion targets. Exactly the
// fields for its Kind are consulted.
type Selector struct {
	Kind SelectorKind

	// SelectByBatch
	BatchID string

	// SelectByRawIndex: 1-based paragraph indices into the raw file.
	RawFile    string
	RawIndices []int

	// SelectByHashList: bare hashes or prefixed ids of any kind.
	HashIDs []string

	// SelectByKeyword: substring query, candidate limit, and the 1-based
	// picks confirming which candidates to delete.
	Query string
	Limit int
	Picks []int
}

// PlanOptions controls how far a deletion cascades beyond the selected
// paragraphs.
type PlanOptions struct {
	// DeleteEntities removes entities whose every mentioning paragraph is
	// selected. Entities mentioned elsewhere always survive.
	DeleteEntities bool

	// DeleteRelations removes the edges owned by selected paragraphs.
	// Edges incident to a removed entity are removed regardless, so no
	// edge ever references a missing node.
	DeleteRelations bool

	// RemoveOrphans runs a second pass deleting entities whose incident
	// edge count reached zero as a direct result of this deletion.
	RemoveOrphans bool
}

// Plan is the pure output of the planning phase. Nothing has been
// mutated; Apply executes it.
type Plan struct {
	Selector Selector
	Options  PlanOptions
	Impact   types.ImpactReport

	// Candidates is populated instead of Impact when a keyword selector
	// had no picks. Such a plan cannot be applied.
	Candidates []types.KeywordCandidate
}

// NeedsSelection reports whether the operator still has to pick from
// keyword candidates before the plan is executable.
func (p *Plan) NeedsSelection() bool {
	return len(p.Candidates) > 0
}

// ApplyOptions carries the safety and confirmation state for Apply.
type ApplyOptions struct {
	// MaxDeleteNodes overrides the configured threshold when positive.
	MaxDeleteNodes int

	// OverrideSafety permits plans above the threshold. Confirmation is
	// still required separately.
	OverrideSafety bool

	// Confirmation must equal ConfirmToken unless SkipConfirmation is set.
	Confirmation     string
	SkipConfirmation bool
}

// Plan computes the deletion impact for the selector without touching
// either store. A keyword selector without picks returns a plan holding
// candidates for the operator to choose from.
func (e *Engine) Plan(ctx context.Context, sel Selector, opts PlanOptions) (*Plan, error) {
	plan := &Plan{Selector: sel, Options: opts}

	paragraphs, explicitEntities, explicitRelations, candidates, err := e.resolveSelector(ctx, sel)
	if err != nil {
		return nil, err
	}
	if candidates != nil {
		plan.Candidates = candidates
		return plan, nil
	}

	impact, err := e.computeImpact(ctx, paragraphs, explicitEntities, explicitRelations, opts)
	if err != nil {
		return nil, err
	}
	plan.Impact = *impact
	return plan, nil
}

func (e *Engine) resolveSelector(ctx context.Context, sel Selector) (paragraphs, entities, relations []string, candidates []types.KeywordCandidate, err error) {
	switch sel.Kind {
	case SelectByBatch:
		state, err := e.ledger.State(ctx, sel.BatchID)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if state == "" {
			return nil, nil, nil, nil, types.Validationf("unknown batch %q", sel.BatchID)
		}
		paragraphs, err = e.ledger.Items(ctx, sel.BatchID, ledger.KindParagraph)
		if err != nil {
			return nil, nil, nil, nil, err
		}

	case SelectByRawIndex:
		all, err := rawtext.SplitFile(sel.RawFile)
		if err != nil {
			return nil, nil, nil, nil, types.Validationf("reading raw file %s: %v", sel.RawFile, err)
		}
		selected, err := rawtext.Select(all, sel.RawIndices)
		if err != nil {
			return nil, nil, nil, nil, types.Validationf("%v", err)
		}
		for _, text := range selected {
			paragraphs = append(paragraphs, hashing.ParagraphID(text))
		}

	case SelectByHashList:
		if len(sel.HashIDs) == 0 {
			return nil, nil, nil, nil, types.Validationf("hash list is empty")
		}
		for _, raw := range sel.HashIDs {
			id := hashing.NormalizeKey(raw)
			switch hashing.Kind(id) {
			case "paragraph":
				paragraphs = append(paragraphs, id)
			case "entity":
				entities = append(entities, id)
			case "relation":
				relations = append(relations, id)
			default:
				return nil, nil, nil, nil, types.Validationf("unrecognized id %q", raw)
			}
		}

	case SelectByKeyword:
		if sel.Query == "" {
			return nil, nil, nil, nil, types.Validationf("keyword query is empty")
		}
		limit := sel.Limit
		if limit <= 0 {
			limit = defaultKeywordLimit
		}
		hits, err := e.graph.SearchParagraphs(ctx, sel.Query, limit)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if len(hits) == 0 {
			return nil, nil, nil, nil, types.Validationf("no paragraphs match %q", sel.Query)
		}
		if len(sel.Picks) == 0 {
			for _, h := range hits {
				candidates = append(candidates, types.KeywordCandidate{
					ID:      h.ID,
					Preview: truncatePreview(h.Content, 80),
				})
			}
			return nil, nil, nil, candidates, nil
		}
		for _, pick := range sel.Picks {
			if pick < 1 || pick > len(hits) {
				return nil, nil, nil, nil, types.Validationf(
					"pick %d out of range (valid 1..%d)", pick, len(hits))
			}
			paragraphs = append(paragraphs, hits[pick-1].ID)
		}

	default:
		return nil, nil, nil, nil, types.Validationf("unknown selector kind %q", sel.Kind)
	}
	return paragraphs, entities, relations, nil, nil
}

// computeImpact predicts the full removal set against committed state.
func (e *Engine) computeImpact(ctx context.Context, paragraphs, explicitEntities, explicitRelations []string, opts PlanOptions) (*types.ImpactReport, error) {
	impact := &types.ImpactReport{}

	// Only paragraphs still present participate. Missing ids were removed
	// by an earlier deletion and simply drop out of the plan.
	present := make([]string, 0, len(paragraphs))
	seenPara := make(map[string]bool)
	for _, pid := range paragraphs {
		if seenPara[pid] {
			continue
		}
		seenPara[pid] = true
		ok, err := e.graph.HasNode(ctx, pid)
		if err != nil {
			return nil, err
		}
		if ok {
			present = append(present, pid)
		}
	}
	sort.Strings(present)
	impact.Paragraphs = present

	// Entities doomed because every paragraph mentioning them is selected.
	doomed := make(map[string]bool)
	if opts.DeleteEntities {
		mentioned, err := e.graph.EntitiesMentionedBy(ctx, present)
		if err != nil {
			return nil, err
		}
		for eid, pids := range mentioned {
			total, err := e.graph.MentionCount(ctx, eid)
			if err != nil {
				return nil, err
			}
			if total == len(pids) {
				doomed[eid] = true
			}
		}
	}
	for _, eid := range explicitEntities {
		ok, err := e.graph.HasNode(ctx, eid)
		if err != nil {
			return nil, err
		}
		if ok {
			doomed[eid] = true
		}
	}
	impact.Entities = sortedKeys(doomed)

	// The relation set: edges owned by selected paragraphs (when
	// requested), every edge incident to a doomed entity (always), and
	// explicitly listed relation ids.
	removeEdges := make(map[string]bool)
	edgeEndpoints := make(map[string][]string) // edge id -> entity endpoints
	recordEdge := func(id, subject, object string) {
		removeEdges[id] = true
		edgeEndpoints[id] = []string{subject, object}
	}
	if opts.DeleteRelations {
		edges, err := e.graph.EdgesForParagraphs(ctx, present)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			recordEdge(edge.ID, edge.Subject, edge.Object)
		}
	}
	for eid := range doomed {
		edges, err := e.graph.EdgesForEntity(ctx, eid)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			recordEdge(edge.ID, edge.Subject, edge.Object)
		}
	}
	for _, rid := range explicitRelations {
		edge, err := e.graph.Edge(ctx, rid)
		if err != nil {
			return nil, err
		}
		if edge != nil {
			recordEdge(edge.ID, edge.Subject, edge.Object)
		}
	}
	impact.Relations = sortedKeys(removeEdges)

	// Orphan prediction: endpoint entities of removed edges whose incident
	// edge count would reach zero. Only entities an edge removal touches
	// are candidates; an entity that never had edges is not an orphan.
	if opts.RemoveOrphans {
		removedIncident := make(map[string]int)
		for _, endpoints := range edgeEndpoints {
			for _, eid := range endpoints {
				removedIncident[eid]++
			}
		}
		orphans := make(map[string]bool)
		for eid, n := range removedIncident {
			if doomed[eid] {
				continue
			}
			total, err := e.graph.IncidentEdgeCount(ctx, eid)
			if err != nil {
				return nil, err
			}
			if total == n {
				orphans[eid] = true
			}
		}
		impact.OrphanEntities = sortedKeys(orphans)
	}

	return impact, nil
}

// Apply executes a plan. The safety gate runs before the confirmation
// gate: a plan above the node threshold aborts even with confirmation
// unless OverrideSafety is set.
func (e *Engine) Apply(ctx context.Context, plan *Plan, opts ApplyOptions) (*types.DeletionReport, error) {
	if plan == nil {
		return nil, types.Validationf("no plan to apply")
	}
	if plan.NeedsSelection() {
		return nil, types.Validationf(
			"keyword selection has %d unconfirmed candidates; re-run with explicit picks",
			len(plan.Candidates))
	}

	limit := opts.MaxDeleteNodes
	if limit <= 0 {
		limit = e.cfg.MaxDeleteNodes
	}
	if n := plan.Impact.TotalRemovedNodes(); n > limit && !opts.OverrideSafety {
		return nil, types.SafetyAbortf(
			"plan removes %d nodes, above the threshold of %d", n, limit)
	}
	if !opts.SkipConfirmation && opts.Confirmation != ConfirmToken {
		return nil, types.SafetyAbortf("deletion not confirmed")
	}

	report := &types.DeletionReport{Planned: plan.Impact}
	if plan.Impact.TotalRemovedNodes() == 0 && len(plan.Impact.Relations) == 0 {
		return report, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	intentID, err := e.ledger.OpenIntent(ctx, "delete",
		fmt.Sprintf("selector=%s nodes=%d edges=%d",
			plan.Selector.Kind, plan.Impact.TotalRemovedNodes(), len(plan.Impact.Relations)))
	if err != nil {
		return nil, err
	}

	removedIDs, err := e.applyPlan(ctx, plan, report)
	if err != nil {
		// A rolled-back apply left both stores untouched, so the intent
		// can be cleared. A consistency failure keeps it open for reload.
		if !errors.Is(err, types.ErrConsistency) {
			if cerr := e.ledger.CloseIntent(ctx, intentID); cerr != nil {
				e.log.Error("closing intent after failed apply", "err", cerr)
			}
		}
		return nil, err
	}

	emptied, err := e.ledger.DeleteItemsByID(ctx, removedIDs)
	if err != nil {
		return nil, types.Consistencyf(
			"stores updated but ledger cleanup failed: %v", err)
	}
	report.BatchesRemoved = emptied

	if err := e.ledger.CloseIntent(ctx, intentID); err != nil {
		return nil, types.Consistencyf(
			"deletion complete but intent %s could not be closed: %v", intentID, err)
	}

	e.log.Info("deletion applied",
		"paragraphs", report.ParagraphsRemoved, "entities", report.EntitiesRemoved,
		"relations", report.RelationsRemoved, "orphans", report.OrphansRemoved,
		"skipped", report.Skipped, "drift", report.Drift)
	return report, nil
}

// applyPlan performs the store mutations inside one transaction per
// store. It returns the ids actually removed, for ledger cleanup.
func (e *Engine) applyPlan(ctx context.Context, plan *Plan, report *types.DeletionReport) ([]string, error) {
	vtx, err := e.vec.Begin(ctx)
	if err != nil {
		return nil, err
	}
	gtx, err := e.graph.Begin(ctx)
	if err != nil {
		vtx.Rollback()
		return nil, err
	}
	rollback := func(cause error) ([]string, error) {
		vtx.Rollback()
		gtx.Rollback()
		return nil, cause
	}

	var removedIDs []string

	// Relations go first so no surviving edge can reference a node
	// removed later in the same pass.
	for _, rid := range plan.Impact.Relations {
		existed, err := gtx.DeleteEdge(ctx, rid)
		if err != nil {
			return rollback(err)
		}
		if _, err := vtx.Delete(ctx, rid); err != nil {
			return rollback(err)
		}
		if existed {
			report.RelationsRemoved++
			removedIDs = append(removedIDs, rid)
		} else {
			report.Skipped++
		}
	}

	for _, pid := range plan.Impact.Paragraphs {
		existed, err := gtx.DeleteNode(ctx, pid)
		if err != nil {
			return rollback(err)
		}
		if _, err := gtx.RemoveMentionsForParagraph(ctx, pid); err != nil {
			return rollback(err)
		}
		if _, err := vtx.Delete(ctx, pid); err != nil {
			return rollback(err)
		}
		if existed {
			report.ParagraphsRemoved++
			removedIDs = append(removedIDs, pid)
		} else {
			report.Skipped++
		}
	}

	for _, eid := range plan.Impact.Entities {
		// An entity that picked up edges since the plan was computed
		// survives; deleting it would strand those edges.
		incident, err := gtx.IncidentEdgeCount(ctx, eid)
		if err != nil {
			return rollback(err)
		}
		if incident > 0 {
			report.Skipped++
			continue
		}
		if err := gtx.RemoveMentionsForEntity(ctx, eid); err != nil {
			return rollback(err)
		}
		existed, err := gtx.DeleteNode(ctx, eid)
		if err != nil {
			return rollback(err)
		}
		if _, err := vtx.Delete(ctx, eid); err != nil {
			return rollback(err)
		}
		if existed {
			report.EntitiesRemoved++
			removedIDs = append(removedIDs, eid)
		} else {
			report.Skipped++
		}
	}

	// Orphan second pass. The in-transaction counts observe the edge
	// removals above, so an entity is removed exactly when this deletion
	// took its last incident edge.
	if plan.Options.RemoveOrphans {
		for _, eid := range orphanCandidates(plan) {
			present, err := gtx.HasNode(ctx, eid)
			if err != nil {
				return rollback(err)
			}
			if !present {
				continue
			}
			incident, err := gtx.IncidentEdgeCount(ctx, eid)
			if err != nil {
				return rollback(err)
			}
			if incident > 0 {
				continue
			}
			if err := gtx.RemoveMentionsForEntity(ctx, eid); err != nil {
				return rollback(err)
			}
			if _, err := gtx.DeleteNode(ctx, eid); err != nil {
				return rollback(err)
			}
			if _, err := vtx.Delete(ctx, eid); err != nil {
				return rollback(err)
			}
			report.OrphansRemoved++
			removedIDs = append(removedIDs, eid)
		}
	}

	if err := vtx.Commit(); err != nil {
		gtx.Rollback()
		return nil, fmt.Errorf("committing vector deletions: %w", err)
	}
	if err := gtx.Commit(); err != nil {
		// The vector side already committed. The open intent makes the
		// divergence visible to reload instead of being silently absorbed.
		return nil, types.Consistencyf(
			"vector deletions committed but graph commit failed: %v", err)
	}

	report.Drift = report.Skipped > 0 ||
		report.OrphansRemoved != len(plan.Impact.OrphanEntities)
	return removedIDs, nil
}

// orphanCandidates returns the planned orphan set, deduped. Planned
// entities are not included; the main pass deletes or skips those, and
// the second pass re-checks each candidate against live edge counts.
func orphanCandidates(plan *Plan) []string {
	seen := make(map[string]bool)
	var out []string
	for _, eid := range plan.Impact.OrphanEntities {
		if !seen[eid] {
			seen[eid] = true
			out = append(out, eid)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func truncatePreview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

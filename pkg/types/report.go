// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Preview pairs an id with a short content excerpt for report samples.
type Preview struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
}

// KeywordCandidate is one ranked hit from a keyword deletion search,
// shown to the operator for explicit sub-selection.
type KeywordCandidate struct {
	ID      string `json:"id" yaml:"id"`
	Preview string `json:"preview" yaml:"preview"`
}

// ImpactReport is the pure output of the deletion plan phase: the ids that
// would be removed, with no mutation performed.
type ImpactReport struct {
	// Paragraphs lists the paragraph ids selected for removal.
	Paragraphs []string `json:"paragraphs" yaml:"paragraphs"`

	// Entities lists entity ids whose every contributing paragraph is in
	// Paragraphs, so their appear count would reach zero.
	Entities []string `json:"entities" yaml:"entities"`

	// Relations lists relation ids removed alongside their source
	// paragraphs or deleted endpoint entities.
	Relations []string `json:"relations" yaml:"relations"`

	// OrphanEntities lists entities whose incident edge count would reach
	// zero as a direct result of this deletion. Populated only when orphan
	// cleanup was requested.
	OrphanEntities []string `json:"orphan_entities,omitempty" yaml:"orphan_entities,omitempty"`
}

// TotalRemovedNodes counts the graph nodes the plan would remove. Edges do
// not count against the safety threshold.
func (r *ImpactReport) TotalRemovedNodes() int {
	return len(r.Paragraphs) + len(r.Entities) + len(r.OrphanEntities)
}

// DeletionReport mirrors the plan plus the counts actually removed. Actual
// counts can fall short of the plan when state changed between plan and
// apply; Drift flags that case instead of hiding it.
type DeletionReport struct {
	Planned ImpactReport `json:"planned" yaml:"planned"`

	ParagraphsRemoved int `json:"paragraphs_removed" yaml:"paragraphs_removed"`
	EntitiesRemoved   int `json:"entities_removed" yaml:"entities_removed"`
	RelationsRemoved  int `json:"relations_removed" yaml:"relations_removed"`
	OrphansRemoved    int `json:"orphans_removed" yaml:"orphans_removed"`

	// Skipped counts planned ids that were already absent at apply time.
	Skipped int  `json:"skipped" yaml:"skipped"`
	Drift   bool `json:"drift" yaml:"drift"`

	// BatchesRemoved lists batches whose ledger set became empty.
	BatchesRemoved []string `json:"batches_removed,omitempty" yaml:"batches_removed,omitempty"`
}

// GlobalReport summarizes both stores across all batches.
type GlobalReport struct {
	ParagraphVectors int `json:"paragraph_vectors" yaml:"paragraph_vectors"`
	EntityVectors    int `json:"entity_vectors" yaml:"entity_vectors"`
	RelationVectors  int `json:"relation_vectors" yaml:"relation_vectors"`

	GraphNodes     int `json:"graph_nodes" yaml:"graph_nodes"`
	GraphEdges     int `json:"graph_edges" yaml:"graph_edges"`
	ParagraphNodes int `json:"paragraph_nodes" yaml:"paragraph_nodes"`
	EntityNodes    int `json:"entity_nodes" yaml:"entity_nodes"`

	SampleParagraphs []Preview `json:"sample_paragraphs,omitempty" yaml:"sample_paragraphs,omitempty"`
	SampleEntities   []Preview `json:"sample_entities,omitempty" yaml:"sample_entities,omitempty"`
}

// ItemPresence splits a batch's items by where they still exist, so a
// vector/graph divergence is visible directly from the report.
type ItemPresence struct {
	Total    int `json:"total" yaml:"total"`
	InVector int `json:"in_vector" yaml:"in_vector"`
	InGraph  int `json:"in_graph" yaml:"in_graph"`
}

// Diverged reports whether the two stores disagree for this item kind.
func (p ItemPresence) Diverged() bool {
	return p.InVector != p.InGraph
}

// BatchReport summarizes one batch's remaining footprint in both stores.
type BatchReport struct {
	BatchID string `json:"batch_id" yaml:"batch_id"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`

	Paragraphs ItemPresence `json:"paragraphs" yaml:"paragraphs"`
	Entities   ItemPresence `json:"entities" yaml:"entities"`
	Relations  ItemPresence `json:"relations" yaml:"relations"`

	// SampleRemaining previews paragraphs still present in the graph.
	SampleRemaining []Preview `json:"sample_remaining,omitempty" yaml:"sample_remaining,omitempty"`
}

// Empty reports whether nothing from the batch remains in either store.
func (r *BatchReport) Empty() bool {
	return r.Paragraphs.InVector == 0 && r.Paragraphs.InGraph == 0 &&
		r.Entities.InVector == 0 && r.Entities.InGraph == 0 &&
		r.Relations.InVector == 0 && r.Relations.InGraph == 0
}

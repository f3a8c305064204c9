// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
)

// Triple is a (subject, predicate, object) relation extracted from a
// paragraph. On the wire it is a three-element JSON array, matching the
// output of the extraction collaborator.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// UnmarshalJSON accepts the ["subject", "predicate", "object"] form.
func (t *Triple) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("parsing triple: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("triple must have exactly 3 elements, got %d", len(parts))
	}
	t.Subject, t.Predicate, t.Object = parts[0], parts[1], parts[2]
	return nil
}

// MarshalJSON emits the three-element array form.
func (t Triple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{t.Subject, t.Predicate, t.Object})
}

// ExtractionDoc is one paragraph of an extraction batch together with the
// entities and triples the extraction collaborator produced for it.
type ExtractionDoc struct {
	// Hash is the content hash the collaborator recorded for the passage.
	// Optional; when present it is verified against the recomputed hash.
	Hash string `json:"idx,omitempty"`

	// Text is the paragraph text.
	Text string `json:"passage"`

	// RawIndex is the 1-based position of the paragraph within the raw
	// source file.
	RawIndex int `json:"raw_index"`

	// Entities are the names extracted from the paragraph.
	Entities []string `json:"extracted_entities"`

	// Triples are the relations extracted from the paragraph. Subjects
	// and objects participate as entities even when absent from Entities.
	Triples []Triple `json:"extracted_triples"`
}

// ExtractionBatch is the file-level unit of import. The source file
// identifier doubles as the batch id.
type ExtractionBatch struct {
	// Source identifies the raw source file this batch covers.
	Source string `json:"source"`

	// Docs holds the covered paragraphs with their extractions.
	Docs []ExtractionDoc `json:"docs"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/kb-engine/internal/hashing"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// LoadBatch reads an extraction batch file produced by the extraction
// collaborator. A missing file is a ValidationError; a file that cannot
// be parsed is a DataError. When the file records no source, the file
// name (without extension) becomes the batch id.
func LoadBatch(path string) (*types.ExtractionBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Validationf("batch file does not exist: %s", path)
		}
		return nil, types.Validationf("reading batch file %s: %v", path, err)
	}

	var batch types.ExtractionBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, types.Dataf("parsing batch file %s: %v", path, err)
	}
	if batch.Source == "" {
		base := filepath.Base(path)
		batch.Source = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if len(batch.Docs) == 0 {
		return nil, types.Dataf("batch file %s contains no documents", path)
	}
	return &batch, nil
}

// batchItem is one doc of a batch resolved to prefixed ids.
type batchItem struct {
	paragraphID string
	text        string
	rawIndex    int
	entities    map[string]string // id -> name
	edges       []resolvedEdge
}

type resolvedEdge struct {
	id        string
	subject   string // entity id
	predicate string
	object    string // entity id
	text      string // embedding input
}

// resolveBatch derives every id a batch contributes and validates its
// contents. Recorded hashes that disagree with recomputed ones surface
// as DataErrors instead of silently splitting the id space.
func resolveBatch(batch *types.ExtractionBatch) ([]batchItem, error) {
	items := make([]batchItem, 0, len(batch.Docs))
	for i, doc := range batch.Docs {
		if strings.TrimSpace(doc.Text) == "" {
			return nil, types.Dataf("batch %s doc %d has empty text", batch.Source, i+1)
		}

		pid := hashing.ParagraphID(doc.Text)
		if doc.Hash != "" && hashing.NormalizeKey(doc.Hash) != pid {
			return nil, types.Dataf("batch %s doc %d hash mismatch: recorded %s, computed %s",
				batch.Source, i+1, doc.Hash, pid)
		}

		item := batchItem{
			paragraphID: pid,
			text:        strings.TrimSpace(doc.Text),
			rawIndex:    doc.RawIndex,
			entities:    make(map[string]string),
		}

		for _, name := range doc.Entities {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			item.entities[hashing.EntityID(name)] = name
		}

		// Triple subjects and objects participate as entities even when
		// the entity list omits them, matching how the graph is built.
		for _, t := range doc.Triples {
			subject := strings.TrimSpace(t.Subject)
			predicate := strings.TrimSpace(t.Predicate)
			object := strings.TrimSpace(t.Object)
			if subject == "" || predicate == "" || object == "" {
				return nil, types.Dataf("batch %s doc %d has an incomplete triple", batch.Source, i+1)
			}
			item.entities[hashing.EntityID(subject)] = subject
			item.entities[hashing.EntityID(object)] = object

			item.edges = append(item.edges, resolvedEdge{
				id:        hashing.RelationID(subject, predicate, object, pid),
				subject:   hashing.EntityID(subject),
				predicate: predicate,
				object:    hashing.EntityID(object),
				text:      subject + " " + predicate + " " + object,
			})
		}

		items = append(items, item)
	}
	return items, nil
}

// BatchIDSets returns the paragraph, entity, and relation ids an
// extraction batch file covers. Used to inspect batches that were never
// recorded in the ledger.
func BatchIDSets(batch *types.ExtractionBatch) (paragraphs, entities, relations []string, err error) {
	items, err := resolveBatch(batch)
	if err != nil {
		return nil, nil, nil, err
	}

	seenEnt := make(map[string]bool)
	seenRel := make(map[string]bool)
	for _, item := range items {
		paragraphs = append(paragraphs, item.paragraphID)
		for eid := range item.entities {
			if !seenEnt[eid] {
				seenEnt[eid] = true
				entities = append(entities, eid)
			}
		}
		for _, edge := range item.edges {
			if !seenRel[edge.id] {
				seenRel[edge.id] = true
				relations = append(relations, edge.id)
			}
		}
	}
	return paragraphs, entities, relations, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/internal/hashing"
	"github.com/pdiddy/kb-engine/pkg/types"
)

func TestLoadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus-1.json")
	content := `{
		"source": "corpus-1",
		"docs": [
			{
				"passage": "Alice founded Acme.",
				"raw_index": 1,
				"extracted_entities": ["Alice", "Acme"],
				"extracted_triples": [["Alice", "founded", "Acme"]]
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	batch, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, "corpus-1", batch.Source)
	require.Len(t, batch.Docs, 1)
	assert.Equal(t, "Alice founded Acme.", batch.Docs[0].Text)
	require.Len(t, batch.Docs[0].Triples, 1)
	assert.Equal(t, "founded", batch.Docs[0].Triples[0].Predicate)
}

func TestLoadBatchSourceDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "night-batch.json")
	content := `{"docs": [{"passage": "p", "raw_index": 1}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	batch, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, "night-batch", batch.Source)
}

func TestLoadBatchMissingFileIsValidationError(t *testing.T) {
	_, err := LoadBatch(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestLoadBatchGarbageIsDataError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadBatch(path)
	assert.ErrorIs(t, err, types.ErrData)
}

func TestResolveBatchTripleEndpointsBecomeEntities(t *testing.T) {
	batch := &types.ExtractionBatch{
		Source: "b",
		Docs: []types.ExtractionDoc{{
			Text:     "Rivers flow to the sea.",
			RawIndex: 1,
			// Entity list omits both endpoints on purpose.
			Triples: []types.Triple{{Subject: "River", Predicate: "flows to", Object: "Sea"}},
		}},
	}

	_, entities, relations, err := BatchIDSets(batch)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{hashing.EntityID("River"), hashing.EntityID("Sea")}, entities)
	assert.Len(t, relations, 1)
}

func TestResolveBatchRejectsIncompleteTriple(t *testing.T) {
	batch := &types.ExtractionBatch{
		Source: "b",
		Docs: []types.ExtractionDoc{{
			Text:     "text",
			RawIndex: 1,
			Triples:  []types.Triple{{Subject: "A", Predicate: "", Object: "B"}},
		}},
	}

	_, _, _, err := BatchIDSets(batch)
	assert.ErrorIs(t, err, types.ErrData)
}

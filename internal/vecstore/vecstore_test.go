// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vecstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertOne(t *testing.T, s *Store, id string, kind Kind, vec []float32) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, id, kind, vec))
	require.NoError(t, tx.Commit())
}

func TestEncodingRoundTrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.125}
	got, err := Decode(Encode(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestInsertGetDelete(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	insertOne(t, s, "paragraph-aaa", KindParagraph, []float32{1, 2, 3})

	ok, err := s.Has(ctx, "paragraph-aaa")
	require.NoError(t, err)
	assert.True(t, ok)

	vec, err := s.Get(ctx, "paragraph-aaa")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	existed, err := tx.Delete(ctx, "paragraph-aaa")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = tx.Delete(ctx, "paragraph-missing")
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, tx.Commit())

	ok, err = s.Has(ctx, "paragraph-aaa")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountsByKind(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	insertOne(t, s, "paragraph-a", KindParagraph, []float32{1})
	insertOne(t, s, "paragraph-b", KindParagraph, []float32{2})
	insertOne(t, s, "entity-a", KindEntity, []float32{3})
	insertOne(t, s, "relation-a", KindRelation, []float32{4})

	for kind, want := range map[Kind]int{KindParagraph: 2, KindEntity: 1, KindRelation: 1} {
		n, err := s.Count(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, want, n, "kind %s", kind)
	}

	present, err := s.CountPresent(ctx, []string{"paragraph-a", "paragraph-missing", "entity-a"})
	require.NoError(t, err)
	assert.Equal(t, 2, present)
}

func TestInsertIsIdempotentPerID(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	insertOne(t, s, "entity-x", KindEntity, []float32{1, 1})
	insertOne(t, s, "entity-x", KindEntity, []float32{1, 1})

	n, err := s.Count(ctx, KindEntity)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRollbackLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, "paragraph-tmp", KindParagraph, []float32{9}))
	require.NoError(t, tx.Rollback())

	ok, err := s.Has(ctx, "paragraph-tmp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSampleOrderedAndLimited(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	insertOne(t, s, "paragraph-c", KindParagraph, []float32{1})
	insertOne(t, s, "paragraph-a", KindParagraph, []float32{1})
	insertOne(t, s, "paragraph-b", KindParagraph, []float32{1})

	ids, err := s.Sample(ctx, KindParagraph, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"paragraph-a", "paragraph-b"}, ids)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumNormalizesWhitespace(t *testing.T) {
	a := Sum("the quick brown fox")
	b := Sum("  the quick brown fox\n")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSumDistinctText(t *testing.T) {
	assert.NotEqual(t, Sum("alpha"), Sum("beta"))
}

func TestParagraphIDStable(t *testing.T) {
	text := "Entropy never decreases in a closed system."
	assert.Equal(t, ParagraphID(text), ParagraphID(text))
	assert.True(t, strings.HasPrefix(ParagraphID(text), ParagraphPrefix))
}

func TestRelationIDIncludesSourceParagraph(t *testing.T) {
	p1 := ParagraphID("first source")
	p2 := ParagraphID("second source")

	r1 := RelationID("sun", "is", "a star", p1)
	r2 := RelationID("sun", "is", "a star", p2)
	assert.NotEqual(t, r1, r2, "same triple from different paragraphs must stay distinct")

	again := RelationID("sun", "is", "a star", p1)
	assert.Equal(t, r1, again, "re-extraction of the same paragraph must not mint a new edge id")
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"abc123":           "paragraph-abc123",
		"paragraph-abc123": "paragraph-abc123",
		"entity-def456":    "entity-def456",
		"relation-0ff":     "relation-0ff",
		"  paragraph-x \n": "paragraph-x",
		"":                 "",
		"   ":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "input %q", in)
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "paragraph", Kind(ParagraphID("x")))
	assert.Equal(t, "entity", Kind(EntityID("x")))
	assert.Equal(t, "relation", Kind(RelationID("a", "b", "c", "p")))
	assert.Equal(t, "", Kind("raw-hash"))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/pkg/types"
)

func TestResolveKeywordPicksUnattendedFailsValidation(t *testing.T) {
	candidates := []types.KeywordCandidate{
		{ID: "paragraph-a", Preview: "alpha"},
		{ID: "paragraph-b", Preview: "beta"},
	}

	// An unattended run must not read stdin; the empty reader would
	// otherwise surface as an EOF-driven selection error.
	in := bufio.NewReader(strings.NewReader(""))
	_, err := resolveKeywordPicks(in, candidates, true)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestResolveKeywordPicksInteractive(t *testing.T) {
	candidates := []types.KeywordCandidate{
		{ID: "paragraph-a", Preview: "alpha"},
		{ID: "paragraph-b", Preview: "beta"},
	}

	in := bufio.NewReader(strings.NewReader("1,2\n"))
	picks, err := resolveKeywordPicks(in, candidates, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, picks)
}

func TestParsePicksRejectsGarbage(t *testing.T) {
	_, err := parsePicks("1,two\n")
	assert.Error(t, err)
	_, err = parsePicks("\n")
	assert.Error(t, err)
}

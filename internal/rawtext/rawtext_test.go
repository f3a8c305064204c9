// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rawtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBlankLineSeparated(t *testing.T) {
	in := "first paragraph\nsecond line\n\nsecond paragraph\n\n\nthird paragraph"
	got, err := Split(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"first paragraph\nsecond line",
		"second paragraph",
		"third paragraph",
	}, got)
}

func TestSplitWhitespaceOnlyLinesSeparate(t *testing.T) {
	in := "alpha\n   \t\nbeta\n"
	got, err := Split(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}

func TestSplitEmptyInput(t *testing.T) {
	got, err := Split(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectValidAndInvalid(t *testing.T) {
	paragraphs := []string{"one", "two", "three"}

	got, err := Select(paragraphs, []int{3, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "one"}, got)

	_, err = Select(paragraphs, []int{0})
	assert.Error(t, err)
	_, err = Select(paragraphs, []int{4})
	assert.Error(t, err)
}

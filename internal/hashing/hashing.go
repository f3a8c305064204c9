// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hashing derives stable, content-addressed identifiers for
// paragraphs, entities, and relations. Identical text always yields the
// same id, which is what makes re-imports idempotent and hash-list
// deletion possible.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Id prefixes keep the three item kinds in one namespace without
// colliding. They match the keys used throughout both stores.
const (
	ParagraphPrefix = "paragraph-"
	EntityPrefix    = "entity-"
	RelationPrefix  = "relation-"
)

// relationSep separates relation id components. A non-printing separator
// avoids ambiguity when a predicate itself contains punctuation.
const relationSep = "\x1f"

// Sum returns the hex sha256 of text after whitespace normalization.
func Sum(text string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(h[:])
}

// ParagraphID returns the prefixed content-hash id for a paragraph.
func ParagraphID(text string) string {
	return ParagraphPrefix + Sum(text)
}

// EntityID returns the prefixed id for an entity name.
func EntityID(name string) string {
	return EntityPrefix + Sum(name)
}

// RelationID derives an edge id from the triple plus its source
// paragraph, so re-extracting the same paragraph never duplicates edges
// while the same triple from two paragraphs stays distinct.
func RelationID(subject, predicate, object, paragraphID string) string {
	parts := strings.Join([]string{
		strings.TrimSpace(subject),
		strings.TrimSpace(predicate),
		strings.TrimSpace(object),
		paragraphID,
	}, relationSep)
	h := sha256.Sum256([]byte(parts))
	return RelationPrefix + hex.EncodeToString(h[:])
}

// NormalizeKey accepts either a bare content hash or an already-prefixed
// id and returns the canonical prefixed form. Bare hashes are assumed to
// be paragraph hashes, matching the hash-list file format.
func NormalizeKey(raw string) string {
	v := strings.TrimSpace(raw)
	switch {
	case v == "":
		return ""
	case strings.HasPrefix(v, ParagraphPrefix),
		strings.HasPrefix(v, EntityPrefix),
		strings.HasPrefix(v, RelationPrefix):
		return v
	default:
		return ParagraphPrefix + v
	}
}

// Kind reports the item kind encoded in a prefixed id, or "" when the id
// carries no known prefix.
func Kind(id string) string {
	switch {
	case strings.HasPrefix(id, ParagraphPrefix):
		return "paragraph"
	case strings.HasPrefix(id, EntityPrefix):
		return "entity"
	case strings.HasPrefix(id, RelationPrefix):
		return "relation"
	default:
		return ""
	}
}

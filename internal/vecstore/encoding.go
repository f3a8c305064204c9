// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vecstore

import (
	"encoding/binary"
	"math"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Encode packs a float32 vector into a little-endian BLOB for SQLite
// storage. No length prefix; the width is derived from the BLOB size on
// decode.
func Encode(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// Decode unpacks a BLOB produced by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, types.Dataf("embedding blob length %d is not a multiple of 4", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

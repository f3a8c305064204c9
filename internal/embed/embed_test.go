// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/internal/httputil"
	"github.com/pdiddy/kb-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

func testClient(endpoint string, dims int) *Client {
	return NewClient(types.EmbeddingConfig{
		Endpoint:   endpoint,
		Model:      "test-embed",
		Dimensions: dims,
		MaxRetries: 2,
		Timeout:    5 * time.Second,
	})
}

func TestClientEmbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.Equal(t, "hello world", req.Input)

		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer ts.Close()

	vec, err := testClient(ts.URL, 3).Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClientEmbedRetriesTransient(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2}})
	}))
	defer ts.Close()

	vec, err := testClient(ts.URL, 2).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientEmbedExhaustionIsRetryableIO(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL, 2).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrRetryableIO)
}

func TestClientEmbedDimensionMismatchIsDataError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer ts.Close()

	_, err := testClient(ts.URL, 8).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrData)
}

func TestDeterministicStableAndSized(t *testing.T) {
	d := Deterministic{Dimensions: 32}

	a, err := d.Embed(context.Background(), "same text")
	require.NoError(t, err)
	b, err := d.Embed(context.Background(), "same text")
	require.NoError(t, err)
	c, err := d.Embed(context.Background(), "other text")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}

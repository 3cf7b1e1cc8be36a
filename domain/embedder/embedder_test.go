package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, dim int, handler func(req embedRequest) embedResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func echoHandler(dim int) func(req embedRequest) embedResponse {
	return func(req embedRequest) embedResponse {
		vecs := make([][]float32, len(req.Texts))
		for i, text := range req.Texts {
			v := make([]float32, dim)
			if text != "" {
				v[0] = float32(len(text))
			}
			vecs[i] = v
		}
		return embedResponse{Embeddings: vecs}
	}
}

func TestHTTPEmbedder_EmbedOne(t *testing.T) {
	srv := newTestServer(t, 4, echoHandler(4))

	e := &httpEmbedder{
		client:    NewClient(srv.URL, "test-model", time.Second),
		batchSize: 8,
		dimension: 4,
	}

	vec, err := e.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)

	var sumSquares float32
	for _, f := range vec {
		sumSquares += f * f
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-4, "embedding must be unit-normalized")
}

func TestHTTPEmbedder_EmbedOne_EmptyTextIsDeterministic(t *testing.T) {
	srv := newTestServer(t, 4, echoHandler(4))
	e := &httpEmbedder{client: NewClient(srv.URL, "test-model", time.Second), batchSize: 8, dimension: 4}

	v1, err := e.EmbedOne(context.Background(), "")
	require.NoError(t, err)
	v2, err := e.EmbedOne(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestHTTPEmbedder_EmbedBatch_SplitsAcrossBatchSize(t *testing.T) {
	var callSizes []int
	srv := newTestServer(t, 4, func(req embedRequest) embedResponse {
		callSizes = append(callSizes, len(req.Texts))
		return echoHandler(4)(req)
	})
	e := &httpEmbedder{client: NewClient(srv.URL, "test-model", time.Second), batchSize: 2, dimension: 4}

	texts := []string{"a", "bb", "ccc", "dddd", "e"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.Equal(t, []int{2, 2, 1}, callSizes)
}

func TestHTTPEmbedder_EmbedBatch_Empty(t *testing.T) {
	e := &httpEmbedder{batchSize: 8, dimension: 4}
	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestClient_Embed_RejectsWrongDimension(t *testing.T) {
	srv := newTestServer(t, 4, func(req embedRequest) embedResponse {
		return embedResponse{Embeddings: [][]float32{{1, 2, 3}}}
	})
	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Embed(context.Background(), []string{"x"}, 4)
	assert.Error(t, err)
}

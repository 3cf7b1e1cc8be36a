package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/transcribe-core/domain/store"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }
func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = f.vec
	}
	return vecs, nil
}

type fakeSearchStore struct {
	store.Store // embed nil; only SearchChunks is exercised
	gotUserID   string
	gotQuery    []float32
	gotK        int
	hits        []store.SearchHit
}

func (f *fakeSearchStore) SearchChunks(ctx context.Context, userID string, query []float32, k int) ([]store.SearchHit, error) {
	f.gotUserID = userID
	f.gotQuery = query
	f.gotK = k
	return f.hits, nil
}

func TestSearchEngine_Search_EmbedsQueryOnceAndDelegatesToStore(t *testing.T) {
	now := time.Now()
	st := &fakeSearchStore{
		hits: []store.SearchHit{
			{
				Chunk: store.Chunk{ID: 1, JobID: 10, ChunkIndex: 0, Text: "hello", TopicSummary: "greeting", CreatedAt: now},
				Score: 0.9,
			},
		},
	}
	em := &fakeEmbedder{vec: []float32{1, 0, 0}}
	eng := NewSearchEngine(em, st, slog.Default())

	hits, err := eng.Search(context.Background(), "user-1", "hello there", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(10), hits[0].JobID)
	assert.Equal(t, float32(0.9), hits[0].Score)
	assert.Equal(t, "user-1", st.gotUserID)
	assert.Equal(t, []float32{1, 0, 0}, st.gotQuery)
	assert.Equal(t, 5, st.gotK)
}

func TestSearchEngine_Search_PropagatesEmbedderError(t *testing.T) {
	em := &fakeEmbedder{err: assertErr{}}
	st := &fakeSearchStore{}
	eng := NewSearchEngine(em, st, slog.Default())

	_, err := eng.Search(context.Background(), "user-1", "q", 5)
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "embed failed" }

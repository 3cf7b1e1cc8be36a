// Package search implements the SearchEngine collaborator boundary (spec
// §4.7, component C7): embeds a query once and ranks a user's completed
// chunks by cosine similarity against it.
package search

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/domain/embedder"
	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// Module wires SearchEngine into the fx graph.
var Module = fx.Module("search",
	fx.Provide(
		fx.Annotate(
			NewSearchEngine,
			fx.As(new(SearchEngine)),
		),
	),
)

// Hit is one ranked search result (spec §4.7).
type Hit struct {
	JobID        int64
	ChunkID      int64
	ChunkIndex   int
	Text         string
	TopicSummary string
	Score        float32
	StartTime    float64
	EndTime      float64
	CreatedAt    time.Time
}

// SearchEngine is the collaborator boundary for semantic search over a
// user's completed transcripts (spec §2, §4.7).
type SearchEngine interface {
	// Search embeds queryText once and returns up to k hits, ordered by
	// score descending, scoped to userID's completed jobs.
	Search(ctx context.Context, userID, queryText string, k int) ([]Hit, error)
}

type searchEngine struct {
	embedder embedder.Embedder
	store    store.Store
	log      *slog.Logger
}

// NewSearchEngine builds a SearchEngine.
func NewSearchEngine(em embedder.Embedder, st store.Store, log *slog.Logger) SearchEngine {
	return &searchEngine{embedder: em, store: st, log: log.With(logger.Scope("search"))}
}

func (s *searchEngine) Search(ctx context.Context, userID, queryText string, k int) ([]Hit, error) {
	ctx, span := tracing.Start(ctx, "search.Search")
	defer span.End()

	vec, err := s.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		return nil, err
	}

	// Store.SearchChunks already scopes to completed jobs owned by userID
	// and orders by (distance asc, created_at desc, id asc) — spec §4.7's
	// "exclude non-completed/other-users' chunks" and tie-break rule.
	rawHits, err := s.store.SearchChunks(ctx, userID, vec, k)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(rawHits))
	for i, h := range rawHits {
		hits[i] = Hit{
			JobID:        h.Chunk.JobID,
			ChunkID:      h.Chunk.ID,
			ChunkIndex:   h.Chunk.ChunkIndex,
			Text:         h.Chunk.Text,
			TopicSummary: h.Chunk.TopicSummary,
			Score:        h.Score,
			StartTime:    h.Chunk.StartTime,
			EndTime:      h.Chunk.EndTime,
			CreatedAt:    h.Chunk.CreatedAt,
		}
	}
	return hits, nil
}

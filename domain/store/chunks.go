package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/loomwork/transcribe-core/pkg/apperror"
	"github.com/loomwork/transcribe-core/pkg/pgutils"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// ReplaceChunks atomically deletes a job's existing chunks and inserts the
// given set, enforcing the dense 0..N-1 chunk_index permutation invariant
// from spec §3. The delete+insert happens in one transaction so a reader
// never observes a job with zero chunks mid-replace.
func (s *postgresStore) ReplaceChunks(ctx context.Context, jobID int64, chunks []NewChunk) ([]*Chunk, error) {
	ctx, span := tracing.Start(ctx, "store.ReplaceChunks")
	defer span.End()

	if err := validateChunkIndices(chunks); err != nil {
		return nil, err
	}

	var result []*Chunk
	err := s.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		tx := txStore.(*postgresStore)

		if _, err := tx.db.NewDelete().Model((*Chunk)(nil)).Where("job_id = ?", jobID).Exec(ctx); err != nil {
			return apperror.NewInternal("failed to clear existing chunks", err)
		}

		now := time.Now().UTC()
		rows := make([]*Chunk, len(chunks))
		for i, c := range chunks {
			row := &Chunk{
				JobID:        jobID,
				ChunkIndex:   c.ChunkIndex,
				Text:         c.Text,
				TopicSummary: c.TopicSummary,
				Keywords:     c.Keywords,
				Confidence:   c.Confidence,
				StartTime:    c.StartTime,
				EndTime:      c.EndTime,
				StartCharPos: c.StartCharPos,
				EndCharPos:   c.EndCharPos,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if _, err := tx.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
				return apperror.NewInternal("failed to insert chunk", err)
			}
			rows[i] = row
		}
		result = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListChunks returns a job's chunks in ascending chunk_index order, for the
// Embed activity to read before computing embeddings.
func (s *postgresStore) ListChunks(ctx context.Context, jobID int64) ([]*Chunk, error) {
	var chunks []*Chunk
	err := s.db.NewSelect().Model(&chunks).
		Where("job_id = ?", jobID).
		OrderExpr("chunk_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.NewInternal("failed to list chunks", err)
	}
	return chunks, nil
}

// validateChunkIndices enforces that chunks form a dense permutation of
// 0..len(chunks)-1, in any input order.
func validateChunkIndices(chunks []NewChunk) error {
	seen := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		if c.ChunkIndex < 0 || c.ChunkIndex >= len(chunks) || seen[c.ChunkIndex] {
			return ErrChunkIndexGap
		}
		seen[c.ChunkIndex] = true
	}
	return nil
}

// PatchChunkEmbeddings bulk-updates the pgvector embedding column for an
// existing set of chunks. Embeddings are written with a raw query because
// bun has no native pgvector column type (pkg/pgutils.FormatVector renders
// the literal). Any chunk_index absent from the job's chunk set is an error
// rather than a silent no-op, so Embed activity bugs surface immediately.
func (s *postgresStore) PatchChunkEmbeddings(ctx context.Context, jobID int64, embeddings map[int][]float32) error {
	ctx, span := tracing.Start(ctx, "store.PatchChunkEmbeddings")
	defer span.End()

	return s.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		tx := txStore.(*postgresStore)

		indices := make([]int, 0, len(embeddings))
		for idx := range embeddings {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		for _, idx := range indices {
			vec := embeddings[idx]
			literal := pgutils.FormatVector(vec)
			res, err := tx.db.ExecContext(ctx,
				fmt.Sprintf("UPDATE chunks SET embedding = '%s'::vector, updated_at = ? WHERE job_id = ? AND chunk_index = ?", literal),
				time.Now().UTC(), jobID, idx)
			if err != nil {
				return apperror.NewInternal("failed to patch chunk embedding", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperror.NewInternal("failed to read rows affected", err)
			}
			if n == 0 {
				return ErrChunkIndexNotFound
			}
		}
		return nil
	})
}

// SearchChunks runs an HNSW cosine-distance ANN query scoped to chunks that
// belong to the given user's completed jobs (spec §4.1, §4.7). Postgres's
// <=> operator is cosine distance; score = 1 - distance so higher is better.
func (s *postgresStore) SearchChunks(ctx context.Context, userID string, query []float32, k int) ([]SearchHit, error) {
	ctx, span := tracing.Start(ctx, "store.SearchChunks")
	defer span.End()

	literal := pgutils.FormatVector(query)

	var rows []struct {
		bun.BaseModel `bun:"table:chunks"`

		ID           int64     `bun:"id"`
		JobID        int64     `bun:"job_id"`
		ChunkIndex   int       `bun:"chunk_index"`
		Text         string    `bun:"text"`
		TopicSummary string    `bun:"topic_summary"`
		Keywords     []string  `bun:"keywords"`
		Confidence   float64   `bun:"confidence"`
		StartTime    float64   `bun:"start_time"`
		EndTime      float64   `bun:"end_time"`
		StartCharPos int       `bun:"start_char_pos"`
		EndCharPos   int       `bun:"end_char_pos"`
		CreatedAt    time.Time `bun:"created_at"`
		UpdatedAt    time.Time `bun:"updated_at"`
		Distance     float32   `bun:"distance"`
	}

	query2 := fmt.Sprintf(`
		SELECT c.id, c.job_id, c.chunk_index, c.text, c.topic_summary, c.keywords,
		       c.confidence, c.start_time, c.end_time, c.start_char_pos, c.end_char_pos,
		       c.created_at, c.updated_at,
		       c.embedding <=> '%s'::vector AS distance
		FROM chunks c
		JOIN jobs j ON j.id = c.job_id
		WHERE j.user_id = ? AND j.status = ? AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> '%s'::vector ASC, c.created_at DESC, c.id ASC
		LIMIT ?`, literal, literal)

	if err := s.db.NewRaw(query2, userID, JobCompleted, k).Scan(ctx, &rows); err != nil {
		return nil, apperror.NewInternal("failed to search chunks", err)
	}

	hits := make([]SearchHit, len(rows))
	for i, r := range rows {
		hits[i] = SearchHit{
			Chunk: Chunk{
				ID:           r.ID,
				JobID:        r.JobID,
				ChunkIndex:   r.ChunkIndex,
				Text:         r.Text,
				TopicSummary: r.TopicSummary,
				Keywords:     r.Keywords,
				Confidence:   r.Confidence,
				StartTime:    r.StartTime,
				EndTime:      r.EndTime,
				StartCharPos: r.StartCharPos,
				EndCharPos:   r.EndCharPos,
				CreatedAt:    r.CreatedAt,
				UpdatedAt:    r.UpdatedAt,
			},
			Score: 1 - r.Distance,
		}
	}
	return hits, nil
}

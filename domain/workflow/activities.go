package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loomwork/transcribe-core/domain/chunker"
	"github.com/loomwork/transcribe-core/domain/embedder"
	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/domain/transcriber"
)

// Activities executes the durable work behind each ActivityName. An
// activity function is only ever given a job_id (spec §4.6.2: "never large
// payloads — activities re-read state from Store").
type Activities struct {
	store       store.Store
	transcriber transcriber.Transcriber
	chunker     chunker.Chunker
	embedder    embedder.Embedder
	log         *slog.Logger
}

// NewActivities wires the concrete collaborators behind each activity.
func NewActivities(st store.Store, tr transcriber.Transcriber, ch chunker.Chunker, em embedder.Embedder, log *slog.Logger) *Activities {
	return &Activities{store: st, transcriber: tr, chunker: ch, embedder: em, log: log}
}

// Execute runs one activity for jobID (spec §9's "fixed execute(ctx, job_id)
// -> ActivityResult operation").
func (a *Activities) Execute(ctx context.Context, name ActivityName, jobID int64) *Failure {
	switch name {
	case ActivityTranscribe:
		return a.transcribeJob(ctx, jobID)
	case ActivityChunk:
		return a.chunkJob(ctx, jobID)
	case ActivityEmbed:
		return a.embedJob(ctx, jobID)
	default:
		return NewPermanentFailure(fmt.Errorf("unknown activity %q", name))
	}
}

func (a *Activities) transcribeJob(ctx context.Context, jobID int64) *Failure {
	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return NewTransientFailure(err)
	}

	result, err := a.transcriber.Transcribe(ctx, job.FilePath)
	if err != nil {
		var tErr *transcriber.TranscribeError
		if errors.As(err, &tErr) && tErr.Permanent() {
			return NewPermanentFailure(err)
		}
		return NewTransientFailure(err)
	}

	if err := a.store.SaveTranscription(ctx, jobID, result.Transcript, result.Segments, result.Language); err != nil {
		if errors.Is(err, store.ErrTranscriptAlreadySet) {
			// Another attempt already wrote it durably; the completion
			// marker write that follows makes this attempt a no-op retry.
			return nil
		}
		return NewTransientFailure(err)
	}
	return nil
}

func (a *Activities) chunkJob(ctx context.Context, jobID int64) *Failure {
	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return NewTransientFailure(err)
	}
	if job.Transcript == nil {
		return NewPermanentFailure(fmt.Errorf("chunk activity: job %d has no transcript", jobID))
	}

	chunks, err := a.chunker.Chunk(ctx, *job.Transcript, job.Segments)
	if err != nil {
		return NewTransientFailure(err)
	}
	if _, err := a.store.ReplaceChunks(ctx, jobID, chunks); err != nil {
		if errors.Is(err, store.ErrChunkIndexGap) {
			return NewPermanentFailure(err)
		}
		return NewTransientFailure(err)
	}
	return nil
}

func (a *Activities) embedJob(ctx context.Context, jobID int64) *Failure {
	chunks, err := a.store.ListChunks(ctx, jobID)
	if err != nil {
		return NewTransientFailure(err)
	}
	if len(chunks) == 0 {
		// Zero-length transcript / zero-chunk job: nothing to embed (spec §8
		// boundary behavior).
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return NewTransientFailure(err)
	}

	embeddings := make(map[int][]float32, len(chunks))
	for i, c := range chunks {
		embeddings[c.ChunkIndex] = vecs[i]
	}
	if err := a.store.PatchChunkEmbeddings(ctx, jobID, embeddings); err != nil {
		if errors.Is(err, store.ErrChunkIndexNotFound) {
			return NewPermanentFailure(err)
		}
		return NewTransientFailure(err)
	}
	return nil
}

package store

import "errors"

// ErrInvalidTransition is returned by UpdateStatus when from -> to is not a
// legal edge in the job status DAG (spec §3 Invariants).
var ErrInvalidTransition = errors.New("store: invalid job status transition")

// ErrTranscriptAlreadySet is returned by SaveTranscription on a job that
// already has a transcript (spec §4.1: one-shot write).
var ErrTranscriptAlreadySet = errors.New("store: transcript already set")

// ErrChunkIndexGap is returned by ReplaceChunks when the supplied chunks do
// not form a dense 0..N-1 permutation of chunk_index (spec §3 Invariants).
var ErrChunkIndexGap = errors.New("store: chunk indices are not a dense permutation")

// ErrChunkIndexNotFound is returned by PatchChunkEmbeddings when a supplied
// chunk_index does not exist for the job.
var ErrChunkIndexNotFound = errors.New("store: chunk_index not found")

// ErrEmbeddingDimension is returned when a vector's length does not match
// the configured embedding dimension.
var ErrEmbeddingDimension = errors.New("store: embedding has wrong dimension")

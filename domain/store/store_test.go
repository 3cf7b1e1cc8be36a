package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to processing", JobPending, JobProcessing, true},
		{"processing to completed", JobProcessing, JobCompleted, true},
		{"processing to failed", JobProcessing, JobFailed, true},
		{"pending to completed skips processing", JobPending, JobCompleted, false},
		{"completed is terminal", JobCompleted, JobProcessing, false},
		{"failed is terminal", JobFailed, JobProcessing, false},
		{"same state is a no-op success", JobProcessing, JobProcessing, true},
		{"pending to failed skips processing", JobPending, JobFailed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobPending.IsTerminal())
	assert.False(t, JobProcessing.IsTerminal())
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}

func TestValidateChunkIndices(t *testing.T) {
	t.Run("dense permutation in any order", func(t *testing.T) {
		chunks := []NewChunk{{ChunkIndex: 2}, {ChunkIndex: 0}, {ChunkIndex: 1}}
		assert.NoError(t, validateChunkIndices(chunks))
	})

	t.Run("empty set is valid", func(t *testing.T) {
		assert.NoError(t, validateChunkIndices(nil))
	})

	t.Run("gap is rejected", func(t *testing.T) {
		chunks := []NewChunk{{ChunkIndex: 0}, {ChunkIndex: 2}}
		assert.ErrorIs(t, validateChunkIndices(chunks), ErrChunkIndexGap)
	})

	t.Run("duplicate index is rejected", func(t *testing.T) {
		chunks := []NewChunk{{ChunkIndex: 0}, {ChunkIndex: 0}}
		assert.ErrorIs(t, validateChunkIndices(chunks), ErrChunkIndexGap)
	})

	t.Run("negative index is rejected", func(t *testing.T) {
		chunks := []NewChunk{{ChunkIndex: -1}, {ChunkIndex: 0}}
		assert.ErrorIs(t, validateChunkIndices(chunks), ErrChunkIndexGap)
	})
}

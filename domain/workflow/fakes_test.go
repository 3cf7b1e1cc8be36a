package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/domain/transcriber"
)

// fakeStore is an in-memory stand-in for store.Store, enough of the
// contract to exercise the Scheduler/Activities without a live Postgres.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	jobs        map[int64]*store.Job
	chunks      map[int64][]*store.Chunk
	cancelled   map[int64]bool
	completions map[string]bool // runID.String()+"/"+activity
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        make(map[int64]*store.Job),
		chunks:      make(map[int64][]*store.Chunk),
		cancelled:   make(map[int64]bool),
		completions: make(map[string]bool),
	}
}

func (f *fakeStore) CreateJob(ctx context.Context, userID, filename, filePath string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	job := &store.Job{
		ID:            f.nextID,
		WorkflowRunID: uuid.New(),
		UserID:        userID,
		Filename:      filename,
		FilePath:      filePath,
		Status:        store.JobPending,
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID int64) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, errors.New("job not found")
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) GetJobByWorkflowRunID(ctx context.Context, runID uuid.UUID) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.WorkflowRunID == runID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, errors.New("job not found")
}

func (f *fakeStore) ListJobsByUser(ctx context.Context, userID string, limit, offset int) ([]*store.Job, error) {
	return nil, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, jobID int64, status store.JobStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	if !store.CanTransition(job.Status, status) {
		return store.ErrInvalidTransition
	}
	job.Status = status
	job.Error = errMsg
	return nil
}

func (f *fakeStore) SetCancelled(ctx context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[jobID] = true
	return nil
}

func (f *fakeStore) IsCancelled(ctx context.Context, jobID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[jobID], nil
}

func (f *fakeStore) SaveTranscription(ctx context.Context, jobID int64, transcript string, segments []store.Segment, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	if job.Transcript != nil {
		return store.ErrTranscriptAlreadySet
	}
	job.Transcript = &transcript
	job.Segments = segments
	job.Language = &language
	return nil
}

func (f *fakeStore) ReplaceChunks(ctx context.Context, jobID int64, chunks []store.NewChunk) ([]*store.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]*store.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = &store.Chunk{
			ID:           int64(i + 1),
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
		}
	}
	f.chunks[jobID] = rows
	return rows, nil
}

func (f *fakeStore) ListChunks(ctx context.Context, jobID int64) ([]*store.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[jobID], nil
}

func (f *fakeStore) PatchChunkEmbeddings(ctx context.Context, jobID int64, embeddings map[int][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.chunks[jobID]
	for idx, vec := range embeddings {
		found := false
		for _, r := range rows {
			if r.ChunkIndex == idx {
				r.Embedding = vec
				found = true
				break
			}
		}
		if !found {
			return store.ErrChunkIndexNotFound
		}
	}
	return nil
}

func (f *fakeStore) SearchChunks(ctx context.Context, userID string, query []float32, k int) ([]store.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) MarkActivityComplete(ctx context.Context, runID uuid.UUID, activityName string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions[runID.String()+"/"+activityName] = true
	return nil
}

func (f *fakeStore) IsActivityComplete(ctx context.Context, runID uuid.UUID, activityName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completions[runID.String()+"/"+activityName], nil
}

func (f *fakeStore) ListNonTerminalJobs(ctx context.Context) ([]*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []*store.Job
	for _, job := range f.jobs {
		if !job.Status.IsTerminal() {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	return jobs, nil
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, f)
}

// fakeTranscriber fails its first failTimes calls with failErr, then
// returns result, letting tests exercise the Scheduler's retry loop.
type fakeTranscriber struct {
	mu        sync.Mutex
	calls     int
	failTimes int
	failErr   error
	result    *transcriber.Result
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filePath string) (*transcriber.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call <= f.failTimes {
		return nil, f.failErr
	}
	return f.result, nil
}

// fakeChunker returns a fixed set of chunks.
type fakeChunker struct {
	chunks []store.NewChunk
	err    error
}

func (f *fakeChunker) Chunk(ctx context.Context, transcript string, segments []store.Segment) ([]store.NewChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

// fakeEmbedder returns a fixed-dimension zero vector per input text.
type fakeEmbedder struct {
	dimension int
	err       error
}

func (f *fakeEmbedder) Dimension() int { return f.dimension }

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dimension)
	}
	return vecs, nil
}

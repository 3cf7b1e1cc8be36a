package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JobStatus is one of the DAG states in spec §3: pending -> processing ->
// {completed, failed}. No transition leaves completed or failed.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether status is a terminal DAG state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// validTransitions enumerates the state machine's permitted edges (spec §3 Invariants).
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobPending:    {JobProcessing: true},
	JobProcessing: {JobCompleted: true, JobFailed: true},
}

// CanTransition reports whether from -> to is a legal DAG edge.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	edges, ok := validTransitions[from]
	return ok && edges[to]
}

// Segment is a Whisper-style timestamped span of transcript text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Job is one row per uploaded audio file (spec §3).
type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID            int64     `bun:"id,pk,autoincrement"`
	WorkflowRunID uuid.UUID `bun:"workflow_run_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	Filename      string    `bun:"filename,notnull"`
	FilePath      string    `bun:"file_path,notnull"`
	Status        JobStatus `bun:"status,notnull"`
	Transcript    *string   `bun:"transcript"`
	Segments      []Segment `bun:"segments,type:jsonb"`
	Language      *string   `bun:"language"`
	Error         *string   `bun:"error"`
	Cancelled     bool      `bun:"cancelled,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// Chunk is a topic-coherent span of a Job's transcript (spec §3).
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID            int64     `bun:"id,pk,autoincrement"`
	JobID         int64     `bun:"job_id,notnull"`
	ChunkIndex    int       `bun:"chunk_index,notnull"`
	Text          string    `bun:"text,notnull"`
	TopicSummary  string    `bun:"topic_summary,notnull"`
	Keywords      []string  `bun:"keywords,type:jsonb"`
	Confidence    float64   `bun:"confidence,notnull"`
	StartTime     float64   `bun:"start_time,notnull"`
	EndTime       float64   `bun:"end_time,notnull"`
	StartCharPos  int       `bun:"start_char_pos,notnull"`
	EndCharPos    int       `bun:"end_char_pos,notnull"`
	Embedding     []float32 `bun:"-"` // persisted via raw SQL; pgvector has no bun column type
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// NewChunk is the Chunker's output shape for one span, before it has an id
// or timestamps assigned by the Store (spec §4.4).
type NewChunk struct {
	ChunkIndex   int
	Text         string
	TopicSummary string
	Keywords     []string
	Confidence   float64
	StartTime    float64
	EndTime      float64
	StartCharPos int
	EndCharPos   int
}

// SearchHit is one ranked result from Store.SearchChunks (spec §4.1, §4.7).
type SearchHit struct {
	Chunk Chunk
	Score float32 // cosine similarity, higher is better
}

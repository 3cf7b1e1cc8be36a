// Package store is the durable system of record for jobs, chunks and
// activity completion markers (spec §3, §4.1). It is the only component
// that talks to Postgres directly; every other domain package depends on
// the Store interface rather than on bun or pgx.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/pkg/apperror"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// Module wires Store into the fx graph, binding it behind the Store interface
// so callers never depend on *postgresStore or bun directly.
var Module = fx.Module("store",
	fx.Provide(
		fx.Annotate(
			NewPostgresStore,
			fx.As(new(Store)),
		),
	),
)

// Store is the durable persistence contract consumed by every other domain
// package (spec §4.1, component C1).
type Store interface {
	CreateJob(ctx context.Context, userID, filename, filePath string) (*Job, error)
	GetJob(ctx context.Context, jobID int64) (*Job, error)
	GetJobByWorkflowRunID(ctx context.Context, runID uuid.UUID) (*Job, error)
	ListJobsByUser(ctx context.Context, userID string, limit, offset int) ([]*Job, error)
	UpdateStatus(ctx context.Context, jobID int64, status JobStatus, errMsg *string) error
	SetCancelled(ctx context.Context, jobID int64) error
	IsCancelled(ctx context.Context, jobID int64) (bool, error)
	SaveTranscription(ctx context.Context, jobID int64, transcript string, segments []Segment, language string) error

	ReplaceChunks(ctx context.Context, jobID int64, chunks []NewChunk) ([]*Chunk, error)
	ListChunks(ctx context.Context, jobID int64) ([]*Chunk, error)
	PatchChunkEmbeddings(ctx context.Context, jobID int64, embeddings map[int][]float32) error
	SearchChunks(ctx context.Context, userID string, query []float32, k int) ([]SearchHit, error)

	MarkActivityComplete(ctx context.Context, runID uuid.UUID, activityName string, payload []byte) error
	IsActivityComplete(ctx context.Context, runID uuid.UUID, activityName string) (bool, error)

	// ListNonTerminalJobs returns jobs whose status is pending or processing,
	// for crash recovery (spec §4.6.4).
	ListNonTerminalJobs(ctx context.Context) ([]*Job, error)

	// WithTx runs fn inside a single transaction. ReplaceChunks and
	// PatchChunkEmbeddings use it for their multi-statement writes; the
	// workflow scheduler does not, and writes completion markers separately
	// after an activity's output is saved.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type postgresStore struct {
	db  bun.IDB
	log *slog.Logger
}

// NewPostgresStore constructs a Store backed by the given bun handle. db may
// be a *bun.DB or a *bun.Tx, which is how WithTx hands callers a
// transaction-scoped Store.
func NewPostgresStore(db *bun.DB, log *slog.Logger) Store {
	return &postgresStore{db: db, log: log.With(logger.Scope("store"))}
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	bdb, ok := s.db.(*bun.DB)
	if !ok {
		// already inside a transaction; run fn against the same handle.
		return fn(ctx, s)
	}
	return bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &postgresStore{db: tx, log: s.log})
	})
}

func (s *postgresStore) CreateJob(ctx context.Context, userID, filename, filePath string) (*Job, error) {
	ctx, span := tracing.Start(ctx, "store.CreateJob")
	defer span.End()

	now := time.Now().UTC()
	job := &Job{
		WorkflowRunID: uuid.New(),
		UserID:        userID,
		Filename:      filename,
		FilePath:      filePath,
		Status:        JobPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(job).Returning("id").Exec(ctx); err != nil {
		return nil, apperror.NewInternal("failed to create job", err)
	}
	return job, nil
}

func (s *postgresStore) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	job := new(Job)
	err := s.db.NewSelect().Model(job).Where("id = ?", jobID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("job", jobIDString(jobID))
		}
		return nil, apperror.NewInternal("failed to get job", err)
	}
	return job, nil
}

func (s *postgresStore) GetJobByWorkflowRunID(ctx context.Context, runID uuid.UUID) (*Job, error) {
	job := new(Job)
	err := s.db.NewSelect().Model(job).Where("workflow_run_id = ?", runID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("job", runID.String())
		}
		return nil, apperror.NewInternal("failed to get job by workflow run id", err)
	}
	return job, nil
}

func (s *postgresStore) ListJobsByUser(ctx context.Context, userID string, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.db.NewSelect().Model(&jobs).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, apperror.NewInternal("failed to list jobs", err)
	}
	return jobs, nil
}

// UpdateStatus enforces the DAG in spec §3: pending -> processing ->
// {completed, failed}, with no transitions out of a terminal state. The
// check-and-set happens in one statement so concurrent workers cannot race
// past the guard.
func (s *postgresStore) UpdateStatus(ctx context.Context, jobID int64, status JobStatus, errMsg *string) error {
	ctx, span := tracing.Start(ctx, "store.UpdateStatus")
	defer span.End()

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, status) {
		return ErrInvalidTransition
	}

	res, err := s.db.NewUpdate().Model((*Job)(nil)).
		Set("status = ?", status).
		Set("error = ?", errMsg).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ? AND status = ?", jobID, current.Status).
		Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to update job status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.NewInternal("failed to read rows affected", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *postgresStore) SetCancelled(ctx context.Context, jobID int64) error {
	_, err := s.db.NewUpdate().Model((*Job)(nil)).
		Set("cancelled = TRUE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to cancel job", err)
	}
	return nil
}

func (s *postgresStore) IsCancelled(ctx context.Context, jobID int64) (bool, error) {
	var flag bool
	err := s.db.NewSelect().Model((*Job)(nil)).Column("cancelled").Where("id = ?", jobID).Scan(ctx, &flag)
	if err != nil {
		return false, apperror.NewInternal("failed to read cancellation flag", err)
	}
	return flag, nil
}

// SaveTranscription is a one-shot write: spec §4.1 requires rejecting a
// second write once a transcript has been recorded, so Transcribe cannot be
// re-run to silently clobber a prior result on retry after its completion
// marker was already written.
func (s *postgresStore) SaveTranscription(ctx context.Context, jobID int64, transcript string, segments []Segment, language string) error {
	ctx, span := tracing.Start(ctx, "store.SaveTranscription")
	defer span.End()

	res, err := s.db.NewUpdate().Model((*Job)(nil)).
		Set("transcript = ?", transcript).
		Set("segments = ?", segments).
		Set("language = ?", language).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ? AND transcript IS NULL", jobID).
		Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to save transcription", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.NewInternal("failed to read rows affected", err)
	}
	if n == 0 {
		return ErrTranscriptAlreadySet
	}
	return nil
}

func (s *postgresStore) ListNonTerminalJobs(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	err := s.db.NewSelect().Model(&jobs).
		Where("status IN (?, ?)", JobPending, JobProcessing).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.NewInternal("failed to list non-terminal jobs", err)
	}
	return jobs, nil
}

func (s *postgresStore) MarkActivityComplete(ctx context.Context, runID uuid.UUID, activityName string, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.db.NewInsert().
		Model(&activityCompletionRow{
			WorkflowRunID: runID,
			ActivityName:  activityName,
			Payload:       string(payload),
		}).
		On("CONFLICT (workflow_run_id, activity_name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to mark activity complete", err)
	}
	return nil
}

func (s *postgresStore) IsActivityComplete(ctx context.Context, runID uuid.UUID, activityName string) (bool, error) {
	exists, err := s.db.NewSelect().
		TableExpr("activity_completion").
		Where("workflow_run_id = ? AND activity_name = ?", runID, activityName).
		Exists(ctx)
	if err != nil {
		return false, apperror.NewInternal("failed to check activity completion", err)
	}
	return exists, nil
}

func jobIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// activityCompletionRow is the bun model for the activity_completion table.
// It lives next to Store rather than in entity.go because callers never see
// it directly; MarkActivityComplete/IsActivityComplete are the whole contract.
type activityCompletionRow struct {
	bun.BaseModel `bun:"table:activity_completion,alias:ac"`

	ID            int64     `bun:"id,pk,autoincrement"`
	WorkflowRunID uuid.UUID `bun:"workflow_run_id,notnull"`
	ActivityName  string    `bun:"activity_name,notnull"`
	Payload       string    `bun:"payload,type:jsonb,notnull"`
	CompletedAt   time.Time `bun:"completed_at,notnull,default:now()"`
}

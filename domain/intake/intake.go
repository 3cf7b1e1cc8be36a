// Package intake implements the Intake API collaborator boundary (spec
// §4.8, component C8): turns an incoming upload into a Job row and a
// workflow-start request, and serves status/transcript/subscription reads
// back out of Store and ProgressBus. It is transport-agnostic — an HTTP
// layer built on top of this core would translate these operations for
// clients, but serving HTTP is explicitly out of scope here.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/domain/progressbus"
	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/pkg/apperror"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/tracing"
)

// Module wires Intake into the fx graph.
var Module = fx.Module("intake",
	fx.Provide(
		fx.Annotate(
			NewIntake,
			fx.As(new(Intake)),
		),
	),
)

// Format selects get_transcript's rendering (spec §4.8, §6.6).
type Format string

const (
	FormatText Format = "txt"
	FormatSRT  Format = "srt"
)

// WorkflowStarter is the subset of the Scheduler Intake needs: enqueueing a
// freshly created job. Kept as a narrow interface so Intake never depends
// on workflow.Scheduler's full surface.
type WorkflowStarter interface {
	Submit(jobID int64)
}

// Intake is the collaborator boundary for turning uploads into jobs and
// serving their status/output back out (spec §2, §4.8).
type Intake interface {
	// Submit persists bytes under a server path, creates the Job row, and
	// hands the new job to the Scheduler.
	Submit(ctx context.Context, userID, filename string, data []byte) (int64, error)

	GetStatus(ctx context.Context, jobID int64) (*store.Job, error)

	// GetTranscript renders a completed job's transcript in the requested
	// format. It is an error to call this before the job reaches completed.
	GetTranscript(ctx context.Context, jobID int64, format Format) ([]byte, error)

	// SubscribeUpdates delegates to ProgressBus.
	SubscribeUpdates(jobID int64) progressbus.Subscription

	// Cancel marks a job cancelled; the Scheduler observes this at the next
	// heartbeat tick of the activity currently executing.
	Cancel(ctx context.Context, jobID int64) error
}

type intake struct {
	store     store.Store
	scheduler WorkflowStarter
	bus       progressbus.ProgressBus
	uploadDir string
	log       *slog.Logger
}

// NewIntake builds an Intake. uploadDir is created if it does not already
// exist.
func NewIntake(cfg *config.Config, st store.Store, scheduler WorkflowStarter, bus progressbus.ProgressBus, log *slog.Logger) Intake {
	return &intake{
		store:     st,
		scheduler: scheduler,
		bus:       bus,
		uploadDir: cfg.Intake.UploadDir,
		log:       log.With(logger.Scope("intake")),
	}
}

func (i *intake) Submit(ctx context.Context, userID, filename string, data []byte) (int64, error) {
	ctx, span := tracing.Start(ctx, "intake.Submit")
	defer span.End()

	if len(data) == 0 {
		return 0, apperror.ErrBadRequest.WithMessage("uploaded file is empty")
	}

	path, err := i.persist(userID, filename, data)
	if err != nil {
		return 0, apperror.NewInternal("failed to persist upload", err)
	}

	job, err := i.store.CreateJob(ctx, userID, filename, path)
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}

	i.log.Info("job submitted",
		slog.Int64("job_id", job.ID),
		slog.String("user_id", userID),
		slog.String("filename", filename),
		slog.Int("size_bytes", len(data)))

	i.scheduler.Submit(job.ID)
	return job.ID, nil
}

// persist writes data under uploadDir, named by a content hash plus a hash
// of the user id, so repeated uploads of identical bytes by the same user
// collide onto the same file rather than accumulating duplicates on disk.
func (i *intake) persist(userID, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(i.uploadDir, 0o755); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])[:16]
	safeName := fmt.Sprintf("%s-%s%s", hash, sanitizeUserID(userID), filepath.Ext(filename))
	path := filepath.Join(i.uploadDir, safeName)

	if _, err := os.Stat(path); err == nil {
		return path, nil // identical upload already on disk
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:8]
}

func (i *intake) GetStatus(ctx context.Context, jobID int64) (*store.Job, error) {
	return i.store.GetJob(ctx, jobID)
}

func (i *intake) GetTranscript(ctx context.Context, jobID int64, format Format) ([]byte, error) {
	job, err := i.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != store.JobCompleted {
		return nil, apperror.NewNotFound("transcript", fmt.Sprintf("%d", jobID))
	}
	if job.Transcript == nil {
		return nil, apperror.NewInternal("completed job missing transcript", nil)
	}

	switch format {
	case FormatText:
		return []byte(*job.Transcript), nil
	case FormatSRT:
		return renderSRT(job.Segments), nil
	default:
		return nil, apperror.ErrBadRequest.WithMessage(fmt.Sprintf("unsupported transcript format %q", format))
	}
}

func (i *intake) SubscribeUpdates(jobID int64) progressbus.Subscription {
	return i.bus.Subscribe(jobID)
}

func (i *intake) Cancel(ctx context.Context, jobID int64) error {
	return i.store.SetCancelled(ctx, jobID)
}

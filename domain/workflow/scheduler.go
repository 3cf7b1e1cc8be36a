package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/loomwork/transcribe-core/domain/progressbus"
	"github.com/loomwork/transcribe-core/domain/store"
	"github.com/loomwork/transcribe-core/internal/config"
	"github.com/loomwork/transcribe-core/pkg/logger"
	"github.com/loomwork/transcribe-core/pkg/syshealth"
)

// Scheduler is the bounded worker pool that drives a job's fixed three-
// activity workflow through to completion (spec §4.6, §5, component C6). It
// follows the teacher's internal/jobs.Worker poll-loop shape, generalized
// from one homogeneous job queue to a fixed per-job activity sequence with
// per-activity retry policies, heartbeats and progress reporting.
type Scheduler struct {
	store      store.Store
	activities *Activities
	bus        progressbus.ProgressBus
	metrics    *Metrics
	policies   map[ActivityName]RetryPolicy
	log        *slog.Logger

	poolSize     int
	pollInterval time.Duration
	scaler       *syshealth.ConcurrencyScaler

	sweepInterval  time.Duration
	staleThreshold time.Duration

	queue   chan int64
	running int32

	inFlightMu sync.Mutex
	inFlight   map[int64]struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
	cron   *cron.Cron
}

// NewScheduler builds a Scheduler. Pass a nil scaler to run at a fixed
// pool size (spec §6.5's adaptive_concurrency defaults to disabled).
func NewScheduler(cfg *config.Config, st store.Store, activities *Activities, bus progressbus.ProgressBus, metrics *Metrics, scaler *syshealth.ConcurrencyScaler, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:          st,
		activities:     activities,
		bus:            bus,
		metrics:        metrics,
		policies:       DefaultPolicies(),
		log:            log.With(logger.Scope("scheduler")),
		poolSize:       cfg.Worker.PoolSize,
		pollInterval:   cfg.Worker.PollInterval(),
		scaler:         scaler,
		sweepInterval:  time.Duration(cfg.Worker.StaleSweepIntervalMinutes) * time.Minute,
		staleThreshold: time.Duration(cfg.Worker.StaleRecoverThresholdMinutes) * time.Minute,
		queue:          make(chan int64, 256),
		inFlight:       make(map[int64]struct{}),
	}
}

// Start recovers any job left non-terminal by a prior process (spec
// §4.6.4 crash recovery), then starts the dispatch loop and the
// supplemental periodic stale-job sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.recoverNonTerminal(ctx); err != nil {
		return fmt.Errorf("recover non-terminal jobs: %w", err)
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.dispatch(ctx)

	if s.sweepInterval > 0 {
		s.cron = cron.New(cron.WithSeconds())
		spec := fmt.Sprintf("@every %s", s.sweepInterval)
		if _, err := s.cron.AddFunc(spec, func() {
			if err := s.sweepStale(context.Background()); err != nil {
				s.log.Warn("stale job sweep failed", logger.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule stale sweep: %w", err)
		}
		s.cron.Start()
	}

	s.log.Info("scheduler started",
		slog.Int("pool_size", s.poolSize),
		slog.Duration("sweep_interval", s.sweepInterval))
	return nil
}

// Stop drains in-flight workflows before returning, or until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron != nil {
		cronStopped := s.cron.Stop()
		select {
		case <-cronStopped.Done():
		case <-ctx.Done():
		}
	}

	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out, abandoning in-flight workflows")
	}
	return nil
}

// Submit enqueues a job for execution. It is a no-op if the job is already
// queued or running in this process (guards the periodic sweep from racing
// a still-running in-process workflow).
func (s *Scheduler) Submit(jobID int64) {
	s.inFlightMu.Lock()
	if _, ok := s.inFlight[jobID]; ok {
		s.inFlightMu.Unlock()
		return
	}
	s.inFlight[jobID] = struct{}{}
	s.inFlightMu.Unlock()

	select {
	case s.queue <- jobID:
	case <-s.stopCh:
		s.releaseInFlight(jobID)
	}
}

func (s *Scheduler) releaseInFlight(jobID int64) {
	s.inFlightMu.Lock()
	delete(s.inFlight, jobID)
	s.inFlightMu.Unlock()
}

// recoverNonTerminal is the mandatory startup sweep (spec §4.6.4): every job
// left pending or processing by a crashed prior process is resumed from the
// lowest-indexed activity lacking a completion marker.
func (s *Scheduler) recoverNonTerminal(ctx context.Context) error {
	jobs, err := s.store.ListNonTerminalJobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		s.log.Info("resuming job after restart", slog.Int64("job_id", job.ID))
		s.Submit(job.ID)
	}
	return nil
}

// sweepStale is the ambient periodic supplement to recoverNonTerminal,
// grounded on the teacher's domain/scheduler.AddIntervalTask cron idiom: it
// catches jobs whose process died without the startup sweep ever running
// again (i.e. this same long-lived process lost track of a job after a
// goroutine leak or panic recovery elsewhere).
func (s *Scheduler) sweepStale(ctx context.Context) error {
	jobs, err := s.store.ListNonTerminalJobs(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-s.staleThreshold)
	for _, job := range jobs {
		if job.Status != store.JobProcessing || job.UpdatedAt.After(cutoff) {
			continue
		}
		s.log.Warn("recovering stale job", slog.Int64("job_id", job.ID), slog.Time("last_updated", job.UpdatedAt))
		s.Submit(job.ID)
	}
	return nil
}

// dispatch is the admission loop: it pulls jobIDs off the FIFO queue and
// blocks admitting a new one until a pool slot is free, honoring the
// syshealth-driven concurrency ceiling when adaptive scaling is enabled.
func (s *Scheduler) dispatch(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case jobID, ok := <-s.queue:
			if !ok {
				return
			}
			s.admit(ctx, jobID)
		}
	}
}

func (s *Scheduler) admit(ctx context.Context, jobID int64) {
	for {
		limit := s.poolSize
		if s.scaler != nil {
			limit = s.scaler.GetConcurrency(s.poolSize)
		}
		if int(atomic.LoadInt32(&s.running)) < limit {
			break
		}
		select {
		case <-s.stopCh:
			s.releaseInFlight(jobID)
			return
		case <-time.After(s.pollInterval):
		}
	}

	atomic.AddInt32(&s.running, 1)
	if s.metrics != nil {
		s.metrics.ActiveWorkers.Inc()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt32(&s.running, -1)
		defer s.releaseInFlight(jobID)
		if s.metrics != nil {
			defer s.metrics.ActiveWorkers.Dec()
		}
		s.runWorkflow(ctx, jobID)
	}()
}

// runWorkflow drives one job through Ordered, skipping any activity already
// marked complete (idempotent resume after a crash or sweep-triggered
// re-submission), and reports the spec's 0/60/80/100 progress milestones
// (spec §4.6.4).
func (s *Scheduler) runWorkflow(ctx context.Context, jobID int64) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.log.Error("runWorkflow: failed to load job", slog.Int64("job_id", jobID), logger.Error(err))
		return
	}

	if job.Status == store.JobPending {
		if err := s.store.UpdateStatus(ctx, jobID, store.JobProcessing, nil); err != nil {
			s.log.Error("runWorkflow: failed to mark processing", slog.Int64("job_id", jobID), logger.Error(err))
			return
		}
		s.bus.Publish(jobID, progressbus.NewStatusEvent(jobID, store.JobProcessing, progressbus.Progress(0), ""))
	}

	for _, name := range Ordered {
		complete, err := s.store.IsActivityComplete(ctx, job.WorkflowRunID, string(name))
		if err != nil {
			s.failJob(ctx, jobID, NewTransientFailure(err))
			return
		}
		if complete {
			continue
		}

		if failure := s.executeWithRetry(ctx, jobID, job.WorkflowRunID, name); failure != nil {
			s.failJob(ctx, jobID, failure)
			return
		}

		if err := s.store.MarkActivityComplete(ctx, job.WorkflowRunID, string(name), nil); err != nil {
			s.failJob(ctx, jobID, NewTransientFailure(err))
			return
		}

		s.bus.Publish(jobID, progressbus.NewStatusEvent(jobID, store.JobProcessing, progressbus.Progress(milestonePercent(name)), ""))
	}

	if err := s.store.UpdateStatus(ctx, jobID, store.JobCompleted, nil); err != nil {
		s.log.Error("runWorkflow: failed to mark completed", slog.Int64("job_id", jobID), logger.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.WorkflowsCompleted.Inc()
	}
	s.bus.Publish(jobID, progressbus.NewStatusEvent(jobID, store.JobCompleted, progressbus.Progress(100), ""))
}

// milestonePercent maps a just-completed activity to the spec's progress
// checkpoint (spec §4.6.4: 0% at start, 60% after transcribe, 80% after
// chunk, 100% after embed).
func milestonePercent(name ActivityName) int {
	switch name {
	case ActivityTranscribe:
		return 60
	case ActivityChunk:
		return 80
	case ActivityEmbed:
		return 100
	default:
		return 0
	}
}

// executeWithRetry runs one activity to completion or exhaustion, honoring
// its RetryPolicy's start-to-close timeout, heartbeat cadence, and bounded
// exponential backoff (spec §4.6.3). A permanent failure or a cancellation
// observed at a heartbeat tick short-circuits remaining attempts.
func (s *Scheduler) executeWithRetry(ctx context.Context, jobID int64, runID uuid.UUID, name ActivityName) *Failure {
	policy := s.policies[name]
	backoff := policy.InitialBackoff

	var lastFailure *Failure
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if cancelled, err := s.store.IsCancelled(ctx, jobID); err == nil && cancelled {
			return NewCancelledFailure()
		}

		if s.metrics != nil {
			s.metrics.ActivitiesProcessed.WithLabelValues(string(name)).Inc()
		}

		failure := s.executeOnce(ctx, jobID, name, policy)

		if failure == nil {
			if s.metrics != nil {
				s.metrics.ActivitiesSucceeded.WithLabelValues(string(name)).Inc()
			}
			return nil
		}

		if s.metrics != nil {
			s.metrics.ActivitiesFailed.WithLabelValues(string(name), failure.Kind.String()).Inc()
		}
		lastFailure = failure

		if !failure.Retriable() || attempt == policy.MaxAttempts {
			return lastFailure
		}

		s.log.Warn("activity failed, retrying",
			slog.Int64("job_id", jobID), slog.String("activity", string(name)),
			slog.Int("attempt", attempt), slog.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return NewTransientFailure(ctx.Err())
		}
		backoff = time.Duration(math.Min(float64(policy.MaxBackoff), float64(backoff)*policy.BackoffCoeff))
	}
	return lastFailure
}

// executeOnce runs a single attempt of name, enforcing its start-to-close
// timeout and polling for cancellation/liveness at its heartbeat cadence.
func (s *Scheduler) executeOnce(ctx context.Context, jobID int64, name ActivityName, policy RetryPolicy) *Failure {
	attemptCtx, cancel := context.WithTimeout(ctx, policy.StartToClose)
	defer cancel()

	start := time.Now()
	done := make(chan *Failure, 1)
	go func() {
		done <- s.activities.Execute(attemptCtx, name, jobID)
	}()

	heartbeat := time.NewTicker(policy.Heartbeat)
	defer heartbeat.Stop()

	var failure *Failure
loop:
	for {
		select {
		case failure = <-done:
			break loop
		case <-attemptCtx.Done():
			failure = NewTransientFailure(attemptCtx.Err())
			break loop
		case <-heartbeat.C:
			if cancelled, err := s.store.IsCancelled(ctx, jobID); err == nil && cancelled {
				cancel()
				failure = NewCancelledFailure()
				break loop
			}
			s.bus.Publish(jobID, progressbus.NewMessageEvent(jobID, fmt.Sprintf("%s still running", name)))
		}
	}

	if s.metrics != nil {
		s.metrics.ActivityDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	}
	return failure
}

// failJob records a terminal failure and notifies subscribers (spec §7).
func (s *Scheduler) failJob(ctx context.Context, jobID int64, failure *Failure) {
	msg := failure.Error()
	if err := s.store.UpdateStatus(ctx, jobID, store.JobFailed, &msg); err != nil {
		s.log.Error("failJob: failed to mark job failed", slog.Int64("job_id", jobID), logger.Error(err))
	}
	if s.metrics != nil {
		s.metrics.WorkflowsFailed.Inc()
	}
	s.bus.Publish(jobID, progressbus.NewStatusEvent(jobID, store.JobFailed, nil, msg))
}

// Package workflow is the Scheduler / Worker Pool (spec §4.6, component
// C6): executes a fixed three-activity workflow per job, with retries,
// timeouts, heartbeats, crash recovery, a bounded worker pool, and
// cancellation.
package workflow

// FailureKind classifies an activity failure for the Scheduler's retry
// decision (spec §7).
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailurePermanent
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Failure is the typed error an Activity returns (spec §7: "activities
// return typed errors bearing {kind, message}"). It is distinct from
// pkg/apperror.Error, which is the outward-facing API error shape; Failure
// never leaves the Scheduler except as Job.error text.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Retriable reports whether the Scheduler should attempt another try.
func (f *Failure) Retriable() bool {
	return f.Kind == FailureTransient
}

// NewTransientFailure wraps err as a retriable failure.
func NewTransientFailure(err error) *Failure {
	return &Failure{Kind: FailureTransient, Message: err.Error()}
}

// NewPermanentFailure wraps err as a non-retriable failure.
func NewPermanentFailure(err error) *Failure {
	return &Failure{Kind: FailurePermanent, Message: err.Error()}
}

// NewCancelledFailure builds the failure recorded when a job is cancelled
// mid-workflow (spec §5 "Cancellation", §7).
func NewCancelledFailure() *Failure {
	return &Failure{Kind: FailureCancelled, Message: "cancelled"}
}

package workflow

import "time"

// ActivityName is the tagged variant Activity ∈ {Transcribe, Chunk, Embed}
// (spec §9 "model activities as a tagged variant"). The Scheduler switches
// on this tag rather than using reflection or duck typing.
type ActivityName string

const (
	ActivityTranscribe ActivityName = "transcribe"
	ActivityChunk      ActivityName = "chunk"
	ActivityEmbed      ActivityName = "embed"
)

// Ordered is the fixed workflow sequence (spec §4.6, §4.6.1).
var Ordered = []ActivityName{ActivityTranscribe, ActivityChunk, ActivityEmbed}

// indexOf returns name's position in Ordered, or -1.
func indexOf(name ActivityName) int {
	for i, n := range Ordered {
		if n == name {
			return i
		}
	}
	return -1
}

// ActivityResult is what an activity function returns to the Scheduler
// (spec §9's "fixed execute(ctx, job_id) -> ActivityResult operation").
// The durable output itself (transcript, chunks, embeddings) is written to
// Store by the activity before returning; ActivityResult only carries
// enough for the Scheduler to drive progress reporting and retries.
type ActivityResult struct {
	Failure *Failure
}

// RetryPolicy bounds one activity's execution (spec §4.6.3 defaults).
type RetryPolicy struct {
	StartToClose    time.Duration
	Heartbeat       time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	MaxAttempts     int
	BackoffCoeff    float64
}

// DefaultPolicies returns the spec's §4.6.3 default retry table, keyed by
// activity name.
func DefaultPolicies() map[ActivityName]RetryPolicy {
	return map[ActivityName]RetryPolicy{
		ActivityTranscribe: {
			StartToClose:   60 * time.Minute,
			Heartbeat:      5 * time.Minute,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     60 * time.Second,
			MaxAttempts:    3,
			BackoffCoeff:   2.0,
		},
		ActivityChunk: {
			StartToClose:   30 * time.Minute,
			Heartbeat:      1 * time.Minute,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     60 * time.Second,
			MaxAttempts:    3,
			BackoffCoeff:   2.0,
		},
		ActivityEmbed: {
			StartToClose:   10 * time.Minute,
			Heartbeat:      30 * time.Second,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			MaxAttempts:    3,
			BackoffCoeff:   2.0,
		},
	}
}

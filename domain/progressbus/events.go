// Package progressbus is an in-process publish/subscribe fabric delivering
// per-job status events to zero or more observers (spec §4.5, component
// C5). It is strictly in-memory and per-process; it is not a durable log.
package progressbus

import "github.com/loomwork/transcribe-core/domain/store"

// EventType discriminates the ProgressBus event shape (spec §4.5), mirroring
// the teacher's typed SSE event convention.
type EventType string

const (
	EventStatus  EventType = "status"
	EventMessage EventType = "message"
	EventLagging EventType = "lagging"
)

// Event is one ProgressBus notification for a job (spec §4.5).
type Event struct {
	Type        EventType       `json:"type"`
	JobID       int64           `json:"job_id"`
	Status      store.JobStatus `json:"status,omitempty"`
	ProgressPct *int            `json:"progress_pct,omitempty"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewStatusEvent builds a status-transition event, optionally carrying a
// progress percentage and/or an error (spec §4.6.4's 0/60/80/100 milestones,
// §7's terminal-failure error reporting).
func NewStatusEvent(jobID int64, status store.JobStatus, progressPct *int, errMsg string) Event {
	return Event{
		Type:        EventStatus,
		JobID:       jobID,
		Status:      status,
		ProgressPct: progressPct,
		Error:       errMsg,
	}
}

// NewMessageEvent builds an intermediate heartbeat message event (spec
// §4.6.4, e.g. "processed 10/42 chunks").
func NewMessageEvent(jobID int64, message string) Event {
	return Event{
		Type:    EventMessage,
		JobID:   jobID,
		Message: message,
	}
}

// NewLaggingEvent builds the marker appended when a subscription's buffer
// overflows and the oldest event for it was dropped (spec §4.5).
func NewLaggingEvent(jobID int64) Event {
	return Event{
		Type:  EventLagging,
		JobID: jobID,
	}
}

// Progress returns 0/60/80/100 style milestone pointers for readability at
// call sites (spec §4.6.4).
func Progress(pct int) *int {
	return &pct
}

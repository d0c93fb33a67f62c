package jobs

import (
	"fmt"
	"strings"
	"time"
)

// LifecycleEventType labels job lifecycle notifications emitted to audit/event surfaces.
type LifecycleEventType string

const (
	EventJobSubmitted       LifecycleEventType = "job.submitted"
	EventJobStarted         LifecycleEventType = "job.started"
	EventJobRetryScheduled  LifecycleEventType = "job.retry_scheduled"
	EventJobSucceeded       LifecycleEventType = "job.succeeded"
	EventJobFailed          LifecycleEventType = "job.failed"
	EventJobCancelled       LifecycleEventType = "job.cancelled"
	EventJobRecoveredAsFailed LifecycleEventType = "job.recovered_as_failed"
)

// LifecycleEvent carries job correlation metadata for audit/event consumers.
type LifecycleEvent struct {
	Type        LifecycleEventType `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	Actor       string             `json:"actor,omitempty"`
	JobID       string             `json:"job_id,omitempty"`
	JobType     string             `json:"job_type,omitempty"`
	Attempt     int                `json:"attempt,omitempty"`
	MaxAttempts int                `json:"max_attempts,omitempty"`
	Reason      string             `json:"reason,omitempty"`
}

// CorrelationMetadata exposes stable correlation keys for audit/event payloads.
func (e LifecycleEvent) CorrelationMetadata() map[string]any {
	meta := map[string]any{}
	if id := strings.TrimSpace(e.JobID); id != "" {
		meta["job_id"] = id
	}
	if t := strings.TrimSpace(e.JobType); t != "" {
		meta["job_type"] = t
	}
	if e.Attempt > 0 {
		meta["attempt"] = e.Attempt
	}
	if e.MaxAttempts > 0 {
		meta["max_attempts"] = e.MaxAttempts
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		meta["reason"] = reason
	}
	return meta
}

// Summary returns a human-readable lifecycle summary reused by audit/event streams.
func (e LifecycleEvent) Summary() string {
	target := strings.TrimSpace(e.JobID)
	if target == "" {
		target = "unknown"
	}

	switch e.Type {
	case EventJobSubmitted:
		return fmt.Sprintf("Job submitted: %s", target)
	case EventJobStarted:
		return fmt.Sprintf("Job started: %s", target)
	case EventJobRetryScheduled:
		return fmt.Sprintf("Job retry scheduled: %s", target)
	case EventJobSucceeded:
		return fmt.Sprintf("Job succeeded: %s", target)
	case EventJobFailed:
		return fmt.Sprintf("Job failed: %s", target)
	case EventJobCancelled:
		return fmt.Sprintf("Job cancelled: %s", target)
	case EventJobRecoveredAsFailed:
		return fmt.Sprintf("Job recovered as failed after restart: %s", target)
	default:
		return fmt.Sprintf("Job event: %s", target)
	}
}

func (e LifecycleEvent) normalize() LifecycleEvent {
	e.Type = LifecycleEventType(strings.TrimSpace(string(e.Type)))
	e.Actor = strings.TrimSpace(e.Actor)
	e.JobID = strings.TrimSpace(e.JobID)
	e.JobType = strings.TrimSpace(e.JobType)
	e.Reason = strings.TrimSpace(e.Reason)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// Normalized returns the event with normalized fields and a non-zero UTC timestamp.
func (e LifecycleEvent) Normalized() LifecycleEvent {
	return e.normalize()
}

// LifecycleObserver receives normalized lifecycle events.
type LifecycleObserver interface {
	ObserveJobLifecycleEvent(event LifecycleEvent)
}

// LifecycleObserverFunc adapts functions into LifecycleObserver.
type LifecycleObserverFunc func(event LifecycleEvent)

// ObserveJobLifecycleEvent implements LifecycleObserver.
func (fn LifecycleObserverFunc) ObserveJobLifecycleEvent(event LifecycleEvent) {
	if fn != nil {
		fn(event)
	}
}

type noopLifecycleObserver struct{}

func (noopLifecycleObserver) ObserveJobLifecycleEvent(_ LifecycleEvent) {}

package jobs

import (
	"encoding/json"
	"time"
)

const (
	// TypeOptimizationRun submits a scenario build → solve → extract → KPI
	// pipeline run against canonical data.
	TypeOptimizationRun = "optimization_run"

	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job describes one unit of asynchronous work tracked by the queue.
//
// Status transitions: pending -> running -> {success, failed, cancelled};
// pending -> cancelled is also permitted. All other transitions are rejected.
type Job struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	RetryPolicy     *RetryPolicy    `json:"retry_policy,omitempty"`
	Status          string          `json:"status"`
	ProgressPercent int             `json:"progress_percent"`
	ProgressMessage string          `json:"progress_message,omitempty"`

	Attempt          int        `json:"attempt"`
	MaxAttempts      int        `json:"max_attempts"`
	RetryScheduledAt *time.Time `json:"retry_scheduled_at,omitempty"`

	ResultRef     string          `json:"result_ref,omitempty"`
	ResultSummary json.RawMessage `json:"result_summary,omitempty"`
	ErrorPayload  json.RawMessage `json:"error_payload,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RetryPolicy configures exponential retry behavior for job attempts.
// MaxAttempts includes the first attempt.
type RetryPolicy struct {
	MaxAttempts    int     `json:"max_attempts,omitempty"`
	InitialBackoff string  `json:"initial_backoff,omitempty"`
	Multiplier     float64 `json:"multiplier,omitempty"`
	MaxBackoff     string  `json:"max_backoff,omitempty"`
}

package model

import "time"

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

// Analysis run states.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// AnalysisRun records one execution of the segmentation pipeline.
type AnalysisRun struct {
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         *string    `json:"error,omitempty"`
	Warning       *string    `json:"warning,omitempty"`
	GenerationID  *string    `json:"generation_id,omitempty"`
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	CustomerCount int        `json:"customer_count"`
}

// IsFinished reports whether the run reached a terminal state.
func (r *AnalysisRun) IsFinished() bool {
	return r.Status != RunStatusRunning
}

package models

import "time"

// RunKind distinguishes what an uploaded file contains.
type RunKind string

const (
	RunKindGrades     RunKind = "grades"
	RunKindAttendance RunKind = "attendance"
)

// RunPhase tracks where an import run currently is. Exactly one terminal
// phase is reached: completed, cancelled or error.
type RunPhase string

const (
	PhasePending     RunPhase = "pending"
	PhaseParsing     RunPhase = "parsing"
	PhaseProcessing  RunPhase = "processing"
	PhaseReplicating RunPhase = "replicating"
	PhaseCompleted   RunPhase = "completed"
	PhaseCancelled   RunPhase = "cancelled"
	PhaseError       RunPhase = "error"
)

// Terminal reports whether the phase ends a run.
func (p RunPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseError
}

// RowError records why a single row was dropped. Row numbers are 1-based and
// count the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// BackendOutcome reports per-backend replication results when more than one
// store is active.
type BackendOutcome struct {
	Backend string `json:"backend"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// RunProgress is the snapshot polled by the dashboard after every slice and
// every replication batch.
type RunProgress struct {
	Phase   RunPhase `json:"phase"`
	Current int      `json:"current"`
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Errors  int      `json:"errors"`
	Success int      `json:"success"`
}

// RunSummary is the final report for a finished run.
type RunSummary struct {
	Created   int              `json:"created"`
	Errors    []string         `json:"errors"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Backends  []BackendOutcome `json:"backends,omitempty"`
}

// ImportRun is the durable view of one upload, mirrored to Redis for
// dashboard polling.
type ImportRun struct {
	ID         string      `json:"id"`
	Kind       RunKind     `json:"kind"`
	Year       int         `json:"year"`
	FileName   string      `json:"file_name"`
	Progress   RunProgress `json:"progress"`
	RowErrors  []RowError  `json:"row_errors,omitempty"`
	Summary    *RunSummary `json:"summary,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

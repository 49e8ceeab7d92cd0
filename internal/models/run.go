package models

import "time"

// JobName identifies a pipeline job.
type JobName string

const (
	JobPoolCreation JobName = "pool_creation"
	JobFinalization JobName = "finalization"
)

// RunStatus represents the outcome of a job run.
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
	RunSkipped   RunStatus = "SKIPPED"
)

// RunRecord summarises one execution of a job.
type RunRecord struct {
	ID         string
	Job        JobName
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Matched    int
	Skipped    int
	Failed     int
	Status     RunStatus
	Error      string
}

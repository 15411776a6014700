package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// JobStatus is the lifecycle state of a discovery job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobAborted   JobStatus = "aborted"
	JobTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobAborted, JobTimedOut:
		return true
	}
	return false
}

func (s JobStatus) rank() int {
	switch s {
	case JobQueued:
		return 0
	case JobRunning:
		return 1
	case JobSucceeded, JobFailed, JobAborted, JobTimedOut:
		return 2
	default:
		return -1
	}
}

// ErrInvalidTransition is returned when a job would move backwards or leave
// a terminal state.
var ErrInvalidTransition = eris.New("invalid job status transition")

// DiscoveryJob tracks one remote discovery run.
type DiscoveryJob struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	DatasetRef  string     `json:"dataset_ref,omitempty"`
}

// NewDiscoveryJob returns a queued job.
func NewDiscoveryJob(id string, submittedAt time.Time) *DiscoveryJob {
	return &DiscoveryJob{ID: id, Status: JobQueued, SubmittedAt: submittedAt}
}

// Advance moves the job to next. Repeating the current status is a no-op.
// Queued may jump straight to a terminal state since a poll can miss
// Running entirely.
func (j *DiscoveryJob) Advance(next JobStatus, at time.Time) error {
	if next == j.Status {
		return nil
	}
	if j.Status.Terminal() || next.rank() <= j.Status.rank() {
		return eris.Wrapf(ErrInvalidTransition, "job %s: %s -> %s", j.ID, j.Status, next)
	}
	j.Status = next
	if next.Terminal() {
		t := at
		j.FinishedAt = &t
	}
	return nil
}

package domain

import (
	"errors"
	"time"
)

// JobState represents the lifecycle state of a training job.
// Transitions are owned by the backend; the client only observes them,
// with two exceptions: the initial WAIT on creation and the optimistic
// CANCELLED after a successful stop call.
type JobState string

const (
	// StateWait means the job is queued, waiting for backend pickup
	StateWait JobState = "WAIT"
	// StateRunning means training is in progress
	StateRunning JobState = "RUNNING"
	// StateReady means training finished and artifacts are available
	StateReady JobState = "READY"
	// StateError means training failed
	StateError JobState = "ERROR"
	// StateCancelled means the job was stopped by the user
	StateCancelled JobState = "CANCELLED"
	// StateTerminated means the backend entered the grace period before
	// artifact deletion. The countdown is backend-owned; the client keeps
	// no timer of its own.
	StateTerminated JobState = "TERMINATED"
)

// ErrInvalidWorldName is returned when a job has no world label
var ErrInvalidWorldName = errors.New("world name cannot be empty")

// IsTerminal reports whether the state ends status synchronization.
// Once a job is terminal it is neither polled nor streamed.
func (s JobState) IsTerminal() bool {
	switch s {
	case StateReady, StateError, StateCancelled, StateTerminated:
		return true
	}
	return false
}

// Valid reports whether s is one of the known lifecycle states
func (s JobState) Valid() bool {
	switch s {
	case StateWait, StateRunning, StateReady, StateError, StateCancelled, StateTerminated:
		return true
	}
	return false
}

// CanTransitionTo reports whether an observed transition from s to next is
// plausible. Terminal states never regress; the only transition out of a
// terminal state is the backend-driven move into TERMINATED. CANCELLED is
// recorded optimistically after a stop call, so it too yields to the
// backend's TERMINATED.
func (s JobState) CanTransitionTo(next JobState) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return next == StateTerminated && s != StateTerminated
	}
	return next.Valid()
}

// Job is the locally persisted record of a remote training job. Timestamps
// are ISO-8601 strings exactly as exchanged with the backend; LastUpdated is
// rewritten on every successful merge of backend-observed state.
type Job struct {
	ID              string          `json:"id"`
	State           JobState        `json:"state"`
	WorldName       string          `json:"worldName"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	CreatedAt       string          `json:"createdAt"`
	LastUpdated     string          `json:"lastUpdated"`
	InitTimestamp   string          `json:"initTimestamp,omitempty"`
	EndTimestamp    string          `json:"endTimestamp,omitempty"`
	Errors          []string        `json:"errors,omitempty"`
	// Revision counts merges of backend-observed state, so a stale poll
	// result that lost the race against a fresher streamed update can be
	// detected and dropped.
	Revision uint64 `json:"revision"`
}

// JobSummary is the list-view projection of a Job
type JobSummary struct {
	ID        string   `json:"id"`
	State     JobState `json:"state"`
	WorldName string   `json:"worldName"`
	CreatedAt string   `json:"createdAt"`
}

// NewJob creates the local record for a freshly created backend job
func NewJob(id, worldName string, hp Hyperparameters) *Job {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Job{
		ID:              id,
		State:           StateWait,
		WorldName:       worldName,
		Hyperparameters: hp,
		CreatedAt:       now,
		LastUpdated:     now,
	}
}

// Summary projects the job to its list-view form
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:        j.ID,
		State:     j.State,
		WorldName: j.WorldName,
		CreatedAt: j.CreatedAt,
	}
}

// IsActive reports whether the job still needs status synchronization
func (j *Job) IsActive() bool {
	return !j.State.IsTerminal()
}

// Validate validates the job record
func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id cannot be empty")
	}
	if j.WorldName == "" {
		return ErrInvalidWorldName
	}
	if !j.State.Valid() {
		return errors.New("unknown job state: " + string(j.State))
	}
	return nil
}

// DeepCopy creates a deep copy of the job
func (j *Job) DeepCopy() *Job {
	if j == nil {
		return nil
	}
	jobCopy := *j
	if j.Errors != nil {
		jobCopy.Errors = make([]string, len(j.Errors))
		copy(jobCopy.Errors, j.Errors)
	}
	return &jobCopy
}

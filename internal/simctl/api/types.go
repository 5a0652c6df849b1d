package api

import (
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

// CreateJobResponse is the backend's acknowledgement of a submitted training
// job. The job enters WAIT on the backend before any worker picks it up.
type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is the polled view of a job's lifecycle state. Timestamps
// are RFC3339 strings and empty until the backend sets them.
type StatusResponse struct {
	State         domain.JobState `json:"state"`
	InitTimestamp string          `json:"init_timestamp"`
	EndTimestamp  string          `json:"end_timestamp"`
	Errors        []string        `json:"errors"`
}

// errorBody is the backend's error envelope. FastAPI-style backends use
// "detail", older endpoints use "message"; either may be present.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// messageEnvelope is the sentinel body the metrics history endpoint returns
// when a job has produced no metrics yet.
type messageEnvelope struct {
	Message string `json:"message"`
}

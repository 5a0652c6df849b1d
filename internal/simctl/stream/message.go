package stream

import (
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

// MessageKind discriminates the payload carried by a Message
type MessageKind int

const (
	// MessageMetrics carries a live training metrics sample
	MessageMetrics MessageKind = iota
	// MessageJobStatus carries a backend-pushed lifecycle state change
	MessageJobStatus
)

// JobStatusUpdate is a lifecycle state change pushed over the stream.
// Message carries the backend's human-readable description of the change,
// such as the failure reason on an ERROR transition.
type JobStatusUpdate struct {
	State   domain.JobState `json:"state"`
	Message string          `json:"message"`
}

// Message is one classified stream frame. Exactly one of Metrics or Status
// is set, selected by Kind.
type Message struct {
	Kind    MessageKind
	Metrics *domain.TrainingMetrics
	Status  *JobStatusUpdate
}

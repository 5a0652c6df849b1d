package domain

// ObservationSource identifies which transport produced a state observation
type ObservationSource string

const (
	SourcePoll     ObservationSource = "poll"
	SourceStream   ObservationSource = "stream"
	SourceStopCall ObservationSource = "stop"
	SourceManual   ObservationSource = "manual"
)

// StateObservation is one backend-reported view of a job's lifecycle,
// regardless of whether it arrived by poll, stream or a stop acknowledgement.
// Empty timestamp fields mean "not reported", not "clear the stored value".
type StateObservation struct {
	State         JobState
	InitTimestamp string
	EndTimestamp  string
	Errors        []string
	Source        ObservationSource
}

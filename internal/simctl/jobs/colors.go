package jobs

import "github.com/simulationcontrol/simctl/internal/simctl/domain"

// getStateColor returns the ANSI color code for a given job state
func getStateColor(state domain.JobState) (string, string) {
	var stateColor string
	switch state {
	case domain.StateWait:
		stateColor = "\033[36m" // Cyan
	case domain.StateRunning:
		stateColor = "\033[33m" // Yellow
	case domain.StateReady:
		stateColor = "\033[32m" // Green
	case domain.StateError:
		stateColor = "\033[31m" // Red
	case domain.StateCancelled:
		stateColor = "\033[35m" // Magenta
	case domain.StateTerminated:
		stateColor = "\033[90m" // Gray
	default:
		stateColor = ""
	}
	resetColor := "\033[0m"
	return stateColor, resetColor
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{StateWait, false},
		{StateRunning, false},
		{StateReady, true},
		{StateError, true},
		{StateCancelled, true},
		{StateTerminated, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

func TestJobState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    JobState
		to      JobState
		allowed bool
	}{
		{"wait to running", StateWait, StateRunning, true},
		{"wait to ready", StateWait, StateReady, true},
		{"running to error", StateRunning, StateError, true},
		{"running to cancelled", StateRunning, StateCancelled, true},
		{"same state is allowed", StateRunning, StateRunning, true},
		{"ready never returns to running", StateReady, StateRunning, false},
		{"error never returns to wait", StateError, StateWait, false},
		{"ready to terminated", StateReady, StateTerminated, true},
		{"error to terminated", StateError, StateTerminated, true},
		{"cancelled to terminated", StateCancelled, StateTerminated, true},
		{"terminated stays terminated", StateTerminated, StateReady, false},
		{"running to unknown state", StateRunning, JobState("LIMBO"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func testHyperparameters(t *testing.T) Hyperparameters {
	t.Helper()
	params, err := DefaultModelParams(AlgorithmPPO)
	require.NoError(t, err)
	return Hyperparameters{
		DefRobot:    "rover",
		Model:       AlgorithmPPO,
		Policy:      PolicyMlp,
		Timesteps:   100000,
		ModelParams: params,
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("job-1", "maze.zip", testHyperparameters(t))

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, StateWait, job.State)
	assert.Equal(t, "maze.zip", job.WorldName)
	assert.Equal(t, uint64(0), job.Revision)
	assert.Equal(t, job.CreatedAt, job.LastUpdated)

	created, err := time.Parse(time.RFC3339, job.CreatedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), created, 5*time.Second)
}

func TestJob_Validate(t *testing.T) {
	job := NewJob("job-1", "maze.zip", testHyperparameters(t))
	assert.NoError(t, job.Validate())

	job.ID = ""
	assert.Error(t, job.Validate())

	job = NewJob("job-1", "", testHyperparameters(t))
	assert.ErrorIs(t, job.Validate(), ErrInvalidWorldName)

	job = NewJob("job-1", "maze.zip", testHyperparameters(t))
	job.State = JobState("LIMBO")
	assert.Error(t, job.Validate())
}

func TestJob_Summary(t *testing.T) {
	job := NewJob("job-1", "maze.zip", testHyperparameters(t))
	job.State = StateRunning

	s := job.Summary()
	assert.Equal(t, job.ID, s.ID)
	assert.Equal(t, StateRunning, s.State)
	assert.Equal(t, "maze.zip", s.WorldName)
	assert.Equal(t, job.CreatedAt, s.CreatedAt)
}

func TestJob_DeepCopy(t *testing.T) {
	job := NewJob("job-1", "maze.zip", testHyperparameters(t))
	job.Errors = []string{"first"}

	clone := job.DeepCopy()
	clone.Errors[0] = "changed"
	clone.State = StateError

	assert.Equal(t, "first", job.Errors[0])
	assert.Equal(t, StateWait, job.State)
}

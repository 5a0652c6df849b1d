package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

func TestBuildHyperparameters_Defaults(t *testing.T) {
	hp, err := buildHyperparameters(&trainFlags{
		algorithm: "PPO",
		policy:    "MlpPolicy",
		timesteps: 100000,
		robot:     "rover",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AlgorithmPPO, hp.Model)
	assert.Equal(t, "rover", hp.DefRobot)
	require.IsType(t, &domain.PPOParams{}, hp.ModelParams)
	assert.Equal(t, 2048, hp.ModelParams.(*domain.PPOParams).NSteps)
}

func TestBuildHyperparameters_ParamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dqn.json")
	content := `{
		"learning_rate": 0.0005,
		"buffer_size": 50000,
		"learning_starts": 100,
		"batch_size": 64,
		"tau": 1.0,
		"gamma": 0.95,
		"train_freq": 4,
		"gradient_steps": 1,
		"n_steps": 1,
		"target_update_interval": 1000,
		"exploration_fraction": 0.2,
		"exploration_initial_eps": 1.0,
		"exploration_final_eps": 0.02,
		"max_grad_norm": 10,
		"verbose": 0
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	hp, err := buildHyperparameters(&trainFlags{
		algorithm:  "DQN",
		policy:     "MlpPolicy",
		timesteps:  50000,
		robot:      "rover",
		paramsFile: path,
	})
	require.NoError(t, err)

	dqn, ok := hp.ModelParams.(*domain.DQNParams)
	require.True(t, ok)
	assert.Equal(t, 0.0005, dqn.LearningRate)
	assert.Equal(t, 64, dqn.BatchSize)
}

func TestBuildHyperparameters_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		flags trainFlags
	}{
		{"unknown algorithm", trainFlags{algorithm: "GAN", policy: "MlpPolicy", timesteps: 1000, robot: "r"}},
		{"unknown policy", trainFlags{algorithm: "PPO", policy: "NoSuchPolicy", timesteps: 1000, robot: "r"}},
		{"missing robot", trainFlags{algorithm: "PPO", policy: "MlpPolicy", timesteps: 1000}},
		{"zero timesteps", trainFlags{algorithm: "PPO", policy: "MlpPolicy", robot: "r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildHyperparameters(&tt.flags)
			assert.Error(t, err)
		})
	}
}

func TestBuildHyperparameters_ParamsFileUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"warp_speed": 9}`), 0644))

	_, err := buildHyperparameters(&trainFlags{
		algorithm:  "PPO",
		policy:     "MlpPolicy",
		timesteps:  1000,
		robot:      "rover",
		paramsFile: path,
	})
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute + 9*time.Second, "2h5m9s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

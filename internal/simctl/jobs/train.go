package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

type trainFlags struct {
	algorithm  string
	policy     string
	timesteps  int64
	robot      string
	controller string
	envClass   string
	paramsFile string
	follow     bool
}

// NewTrainCmd creates the command that submits a new training job.
// The world archive is uploaded together with the hyperparameters; model
// parameters default per algorithm and can be overridden from a JSON file.
func NewTrainCmd() *cobra.Command {
	flags := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train <world-zip>",
		Short: "Submit a simulation world for training",
		Long: `Submit a simulation world archive and start a remote training job.

Examples:
  # Train with PPO defaults
  simctl train warehouse.zip --robot picker

  # DQN with tuned parameters from a file
  simctl train maze.zip --robot rover --algorithm DQN --params dqn.json

  # Submit and follow live metrics
  simctl train arena.zip --robot walker --timesteps 2000000 --follow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.algorithm, "algorithm", "PPO", "Training algorithm (DQN, PPO, A2C, SAC, TD3, DDPG)")
	cmd.Flags().StringVar(&flags.policy, "policy", "MlpPolicy", "Policy network (MlpPolicy, CnnPolicy, MultiInputPolicy)")
	cmd.Flags().Int64Var(&flags.timesteps, "timesteps", 100000, "Total training timesteps")
	cmd.Flags().StringVar(&flags.robot, "robot", "", "Robot DEF name in the world file (required)")
	cmd.Flags().StringVar(&flags.controller, "controller", "", "Robot controller name")
	cmd.Flags().StringVar(&flags.envClass, "env-class", "", "Environment class name")
	cmd.Flags().StringVar(&flags.paramsFile, "params", "", "JSON file with algorithm-specific model parameters")
	cmd.Flags().BoolVar(&flags.follow, "follow", false, "Stay attached and stream live metrics")
	_ = cmd.MarkFlagRequired("robot")

	return cmd
}

func runTrain(zipPath string, flags *trainFlags) error {
	hp, err := buildHyperparameters(flags)
	if err != nil {
		return err
	}

	file, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open world archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat world archive: %w", err)
	}
	worldName := filepath.Base(zipPath)
	if err := domain.ValidateWorldArchive(worldName, info.Size()); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	job, err := svc.Coordinator.Launch(ctx, worldName, file, info.Size(), hp)
	if err != nil {
		return fmt.Errorf("failed to submit training job: %w", err)
	}

	if common.JSONOutput && !flags.follow {
		return printJobJSON(job)
	}

	fmt.Printf("Training job submitted:\n")
	fmt.Printf("ID:        %s\n", job.ID)
	fmt.Printf("World:     %s\n", job.WorldName)
	fmt.Printf("Algorithm: %s (%s)\n", hp.Model, hp.Policy)
	fmt.Printf("Timesteps: %d\n", hp.Timesteps)

	if flags.follow {
		fmt.Println()
		return followJob(job.ID)
	}
	fmt.Printf("\nFollow progress with: simctl watch %s\n", job.ID)
	return nil
}

// buildHyperparameters assembles the training configuration from flags,
// starting from the per-algorithm defaults.
func buildHyperparameters(flags *trainFlags) (domain.Hyperparameters, error) {
	algo := domain.Algorithm(flags.algorithm)
	if !algo.Valid() {
		return domain.Hyperparameters{}, fmt.Errorf("unknown algorithm %q (supported: %v)", flags.algorithm, domain.Algorithms)
	}

	var params domain.ModelParams
	if flags.paramsFile != "" {
		raw, err := os.ReadFile(flags.paramsFile)
		if err != nil {
			return domain.Hyperparameters{}, fmt.Errorf("failed to read params file: %w", err)
		}
		params, err = domain.DecodeModelParams(algo, raw)
		if err != nil {
			return domain.Hyperparameters{}, err
		}
	} else {
		var err error
		params, err = domain.DefaultModelParams(algo)
		if err != nil {
			return domain.Hyperparameters{}, err
		}
	}

	hp := domain.Hyperparameters{
		DefRobot:    flags.robot,
		Controller:  flags.controller,
		EnvClass:    flags.envClass,
		Model:       algo,
		Policy:      domain.PolicyType(flags.policy),
		Timesteps:   flags.timesteps,
		ModelParams: params,
	}
	if err := hp.Validate(); err != nil {
		return domain.Hyperparameters{}, err
	}
	return hp, nil
}

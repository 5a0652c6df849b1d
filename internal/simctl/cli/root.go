package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/jobs"
)

var rootCmd = &cobra.Command{
	Use:   "simctl",
	Short: "simctl - client for remote reinforcement learning training jobs",
	Long: `simctl submits simulation worlds to a SimulationControl backend, tracks
the resulting training jobs locally, and follows their progress over
polling and a live metrics stream.

Typical session:
  simctl train world.zip --algorithm PPO --timesteps 500000
  simctl list
  simctl watch <job-id>
  simctl download <job-id> --model model.zip`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := common.LoadConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			fmt.Fprintf(os.Stderr, "Check your simctl-config.yml or pass --config.\n")
			os.Exit(1)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		common.Shutdown()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&common.ConfigPath, "config", "",
		"Path to client configuration file (searches common locations if not specified)")
	rootCmd.PersistentFlags().BoolVar(&common.JSONOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(jobs.NewTrainCmd())
	rootCmd.AddCommand(jobs.NewStatusCmd())
	rootCmd.AddCommand(jobs.NewListCmd())
	rootCmd.AddCommand(jobs.NewWatchCmd())
	rootCmd.AddCommand(jobs.NewMetricsCmd())
	rootCmd.AddCommand(jobs.NewStopCmd())
	rootCmd.AddCommand(jobs.NewDeleteCmd())
	rootCmd.AddCommand(jobs.NewCleanCmd())
	rootCmd.AddCommand(jobs.NewDownloadCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

// NewMetricsCmd creates the command that prints a job's recorded metrics
func NewMetricsCmd() *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "metrics <job-id>",
		Short: "Show recorded training metrics for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(args[0], tail)
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 0, "Show only the last N samples (0 = all)")
	return cmd
}

func runMetrics(jobID string, tail int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	history, err := svc.Client.GetMetricsHistory(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get metrics history: %w", err)
	}

	if tail > 0 && len(history) > tail {
		history = history[len(history)-tail:]
	}

	if common.JSONOutput {
		out, err := json.MarshalIndent(history, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(history) == 0 {
		fmt.Println("No metrics recorded yet")
		return nil
	}

	fmt.Printf("%-12s  %-9s  %-8s  %-9s  %-8s  %s\n",
		"TIMESTEPS", "EPISODES", "EP LEN", "REWARD", "FPS", "TIMESTAMP")
	for _, m := range history {
		fmt.Printf("%-12d  %-9d  %-8.1f  %-9.3f  %-8.0f  %s\n",
			m.TotalTimesteps, m.Episodes, m.EpLenMean, m.EpRewMean, m.FPS,
			formatTimestamp(m.Timestamp))
	}
	printMetricsSummary(history)
	return nil
}

func printMetricsSummary(history []domain.TrainingMetrics) {
	last := history[len(history)-1]
	fmt.Printf("\n%d samples, latest at %s (%d timesteps)\n",
		len(history), formatTimestamp(last.Timestamp), last.TotalTimesteps)
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
)

// NewStopCmd creates the command that cancels a running job. The backend
// confirms the final state asynchronously; the local record is marked
// CANCELLED right away.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Stop a training job",
		Args:  cobra.ExactArgs(1),
		RunE:  runStop,
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	job, err := svc.Coordinator.StopJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to stop job: %w", err)
	}

	if common.JSONOutput {
		return printJobJSON(job)
	}
	color, reset := getStateColor(job.State)
	fmt.Printf("Job stopped:\n")
	fmt.Printf("ID:    %s\n", job.ID)
	fmt.Printf("State: %s%s%s\n", color, job.State, reset)
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
)

// NewDeleteCmd creates the command that removes a job from local tracking.
// It only touches the local record; a still-running backend job keeps
// running (stop it first if that is not what you want).
func NewDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Remove a job from local tracking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Delete even if the job is still active")
	return cmd
}

func runDelete(jobID string, force bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	job, err := svc.Coordinator.Job(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("no job with id %s is tracked locally", jobID)
	}
	if job.IsActive() && !force {
		return fmt.Errorf("job %s is still %s; stop it first or use --force", jobID, job.State)
	}

	if err := svc.Coordinator.DeleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	fmt.Printf("Job %s removed from local tracking\n", jobID)
	return nil
}

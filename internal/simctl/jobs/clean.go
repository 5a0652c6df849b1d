package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
)

// NewCleanCmd creates the command that removes finished jobs from local
// tracking. With --all the entire job store is wiped, active jobs included.
func NewCleanCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove finished jobs from local tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every job, including active ones")
	return cmd
}

func runClean(all bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	if all {
		if err := svc.Coordinator.ClearJobs(ctx); err != nil {
			return fmt.Errorf("failed to clear jobs: %w", err)
		}
		fmt.Println("All jobs removed from local tracking")
		return nil
	}

	summaries, err := svc.Coordinator.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	removed := 0
	for _, s := range summaries {
		if !s.State.IsTerminal() {
			continue
		}
		if err := svc.Coordinator.DeleteJob(ctx, s.ID); err != nil {
			fmt.Printf("Warning: failed to remove job %s: %v\n", s.ID, err)
			continue
		}
		removed++
	}
	fmt.Printf("Removed %d finished job(s)\n", removed)
	return nil
}

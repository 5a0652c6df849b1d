package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

// NewWatchCmd creates the command that follows a job's live metrics stream
// until the job finishes or the user interrupts.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow live training metrics for a job",
		Long: `Attach to a job's metrics stream and print samples as they arrive.
The stream reconnects automatically on connection loss; polling keeps the
state current while disconnected. Exits when the job reaches a final state
or on Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return followJob(args[0])
		},
	}
}

func followJob(jobID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	if job.State.IsTerminal() {
		fmt.Printf("Job %s already finished with state %s\n", jobID, job.State)
		return nil
	}

	stopWatch, err := svc.Coordinator.Watch(ctx, jobID, printMetrics)
	if err != nil {
		return fmt.Errorf("failed to watch job: %w", err)
	}
	defer stopWatch()

	fmt.Printf("Watching job %s (Ctrl-C to detach)\n", jobID)

	// the stream carries state changes too, but check the stored record on a
	// slow tick so a poll-observed terminal state also ends the watch
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nDetached")
			return nil
		case <-ticker.C:
			job, err := svc.Coordinator.Job(context.Background(), jobID)
			if err != nil || job == nil {
				continue
			}
			if job.State.IsTerminal() {
				color, reset := getStateColor(job.State)
				fmt.Printf("\nJob finished with state %s%s%s\n", color, job.State, reset)
				if len(job.Errors) > 0 {
					for _, e := range job.Errors {
						fmt.Printf("  - %s\n", e)
					}
				}
				return nil
			}
		}
	}
}

func printMetrics(m domain.TrainingMetrics) {
	if common.JSONOutput {
		out, err := json.Marshal(m)
		if err == nil {
			fmt.Println(string(out))
		}
		return
	}
	fmt.Printf("steps=%d  episodes=%d  fps=%.0f  ep_len=%.1f  reward=%.3f  elapsed=%s\n",
		m.TotalTimesteps, m.Episodes, m.FPS, m.EpLenMean, m.EpRewMean,
		formatDuration(time.Duration(m.TimeElapsed*float64(time.Second))))
}

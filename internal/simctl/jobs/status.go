package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/pkg/errors"
)

// NewStatusCmd creates the command that shows one job's state. By default it
// refreshes from the backend first; --local skips the network round trip.
func NewStatusCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a training job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(args[0], local)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Show the locally stored state without contacting the backend")
	return cmd
}

func runStatus(jobID string, local bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	var job *domain.Job
	if local {
		job, err = svc.Coordinator.Job(ctx, jobID)
	} else {
		job, err = svc.Coordinator.Refresh(ctx, jobID)
		if err != nil && errors.IsTransportError(err) {
			// backend unreachable, fall back to the stored record
			fmt.Printf("Warning: %s\n\n", errors.UserMessage(err))
			job, err = svc.Coordinator.Job(ctx, jobID)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to get job status: %w", err)
	}
	if job == nil {
		return fmt.Errorf("no job with id %s is tracked locally", jobID)
	}

	if common.JSONOutput {
		return printJobJSON(job)
	}
	printJob(job)
	return nil
}

func printJob(job *domain.Job) {
	color, reset := getStateColor(job.State)
	fmt.Printf("Job ID:    %s\n", job.ID)
	fmt.Printf("World:     %s\n", job.WorldName)
	fmt.Printf("State:     %s%s%s\n", color, job.State, reset)
	fmt.Printf("Algorithm: %s (%s)\n", job.Hyperparameters.Model, job.Hyperparameters.Policy)
	fmt.Printf("Timesteps: %d\n", job.Hyperparameters.Timesteps)

	fmt.Printf("\nTiming:\n")
	fmt.Printf("  Created: %s\n", formatTimestamp(job.CreatedAt))
	if job.InitTimestamp != "" {
		fmt.Printf("  Started: %s\n", formatTimestamp(job.InitTimestamp))
	}
	if job.EndTimestamp != "" {
		fmt.Printf("  Ended:   %s\n", formatTimestamp(job.EndTimestamp))
		if d, ok := durationBetween(job.InitTimestamp, job.EndTimestamp); ok {
			fmt.Printf("  Duration: %s\n", formatDuration(d))
		}
	} else if job.State == domain.StateRunning && job.InitTimestamp != "" {
		if start, err := time.Parse(time.RFC3339, job.InitTimestamp); err == nil {
			fmt.Printf("  Running For: %s\n", formatDuration(time.Since(start)))
		}
	}

	if len(job.Errors) > 0 {
		fmt.Printf("\nErrors:\n")
		for _, e := range job.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

func printJobJSON(job *domain.Job) error {
	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05 MST")
}

func durationBetween(startTS, endTS string) (time.Duration, bool) {
	start, err := time.Parse(time.RFC3339, startTS)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339, endTS)
	if err != nil {
		return 0, false
	}
	return end.Sub(start), true
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	return fmt.Sprintf("%dm%ds", m, s)
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

// NewListCmd creates the command that lists all locally tracked jobs.
// Listing never contacts the backend; use status or watch for fresh state.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracked training jobs",
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	summaries, err := svc.Coordinator.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(summaries) == 0 {
		if common.JSONOutput {
			fmt.Println("[]")
		} else {
			fmt.Println("No jobs found")
		}
		return nil
	}

	if common.JSONOutput {
		out, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	formatJobList(summaries)
	return nil
}

func formatJobList(summaries []domain.JobSummary) {
	maxIDWidth := len("ID")
	maxWorldWidth := len("WORLD")
	maxStateWidth := len("STATE")

	// find the maximum width needed for each column
	for _, s := range summaries {
		if len(s.ID) > maxIDWidth {
			maxIDWidth = len(s.ID)
		}
		if len(s.WorldName) > maxWorldWidth {
			maxWorldWidth = len(s.WorldName)
		}
		if len(s.State) > maxStateWidth {
			maxStateWidth = len(s.State)
		}
	}

	fmt.Printf("%-*s  %-*s  %-*s  %s\n",
		maxIDWidth, "ID", maxWorldWidth, "WORLD", maxStateWidth, "STATE", "CREATED")
	fmt.Println(strings.Repeat("-", maxIDWidth+maxWorldWidth+maxStateWidth+len("2006-01-02 15:04:05 MST")+6))

	for _, s := range summaries {
		color, reset := getStateColor(s.State)
		padding := strings.Repeat(" ", maxStateWidth-len(s.State))
		fmt.Printf("%-*s  %-*s  %s%s%s%s  %s\n",
			maxIDWidth, s.ID,
			maxWorldWidth, s.WorldName,
			color, s.State, reset, padding,
			formatTimestamp(s.CreatedAt))
	}
}

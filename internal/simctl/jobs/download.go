package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
)

// NewDownloadCmd creates the command that fetches training artifacts.
// Artifacts exist only while the job is READY; after the retention grace
// period the backend deletes them.
func NewDownloadCmd() *cobra.Command {
	var modelPath, tensorboardPath string
	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download training artifacts for a finished job",
		Long: `Download the trained model and/or tensorboard logs of a READY job.

Examples:
  simctl download abc123 --model model.zip
  simctl download abc123 --tensorboard tb.zip
  simctl download abc123 --model model.zip --tensorboard tb.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(args[0], modelPath, tensorboardPath)
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "Write the trained model archive to this path")
	cmd.Flags().StringVar(&tensorboardPath, "tensorboard", "", "Write the tensorboard log archive to this path")
	return cmd
}

func runDownload(jobID, modelPath, tensorboardPath string) error {
	if modelPath == "" && tensorboardPath == "" {
		return fmt.Errorf("nothing to download: pass --model and/or --tensorboard")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	svc, err := common.GetServices(ctx)
	if err != nil {
		return err
	}

	if job, err := svc.Coordinator.Job(ctx, jobID); err == nil && job != nil {
		if job.State != domain.StateReady {
			fmt.Printf("Warning: job is %s, artifacts may not be available\n", job.State)
		}
	}

	if modelPath != "" {
		n, err := downloadArtifact(ctx, svc, jobID, "model", modelPath, svc.Client.DownloadModel)
		if err != nil {
			return fmt.Errorf("failed to download model: %w", err)
		}
		fmt.Printf("Model saved to %s (%d bytes)\n", modelPath, n)
	}
	if tensorboardPath != "" {
		n, err := downloadArtifact(ctx, svc, jobID, "tensorboard", tensorboardPath, svc.Client.DownloadTensorboard)
		if err != nil {
			return fmt.Errorf("failed to download tensorboard logs: %w", err)
		}
		fmt.Printf("Tensorboard logs saved to %s (%d bytes)\n", tensorboardPath, n)
	}
	return nil
}

func downloadArtifact(ctx context.Context, svc *common.Services, jobID, artifact, path string,
	fetch func(context.Context, string, io.Writer) (int64, error)) (int64, error) {

	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var w io.Writer = file
	if !common.JSONOutput {
		size := svc.Client.ContentLength(ctx, jobID, artifact)
		bar := progressbar.DefaultBytes(size, "downloading "+artifact)
		w = io.MultiWriter(file, bar)
		defer bar.Close()
	}

	n, err := fetch(ctx, jobID, w)
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
	"github.com/simulationcontrol/simctl/pkg/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if common.JSONOutput {
				return showJSONVersion()
			}
			fmt.Printf("simctl %s\n", version.GetShortVersion())
			return nil
		},
	}
}

func showJSONVersion() error {
	info := version.GetBuildInfo()
	data := map[string]interface{}{
		"simctl": map[string]interface{}{
			"version":    version.GetShortVersion(),
			"git_commit": info.GitCommit,
			"build_date": info.BuildDate,
			"go_version": info.GoVersion,
			"platform":   fmt.Sprintf("%s/%s", info.Platform, info.Architecture),
		},
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

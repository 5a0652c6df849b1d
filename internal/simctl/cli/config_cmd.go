package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simulationcontrol/simctl/internal/simctl/common"
)

// NewConfigCmd groups the runtime configuration subcommands. Endpoint
// changes are persisted in the local store, not the YAML file, so they
// survive restarts and can be reverted with reset.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change backend endpoints",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetAddressCmd())
	cmd.AddCommand(newConfigResetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// building services applies stored endpoint overrides
			if _, err := common.GetServices(ctx); err != nil {
				return err
			}
			cfg := common.Config

			if common.JSONOutput {
				out, err := json.MarshalIndent(map[string]interface{}{
					"configFile":    common.ConfigSource,
					"apiBaseUrl":    cfg.API.BaseURL,
					"streamBaseUrl": cfg.Stream.BaseURL,
					"storePath":     cfg.StorePath(),
					"logLevel":      cfg.Logging.Level,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			if common.ConfigSource != "" {
				fmt.Printf("Config file:  %s\n", common.ConfigSource)
			} else {
				fmt.Printf("Config file:  (built-in defaults)\n")
			}
			fmt.Printf("API URL:      %s\n", cfg.API.BaseURL)
			fmt.Printf("Stream URL:   %s\n", cfg.Stream.BaseURL)
			fmt.Printf("Job store:    %s\n", cfg.StorePath())
			fmt.Printf("Log level:    %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigSetAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-address <host[:port]>",
		Short: "Point the client at a different backend",
		Long: `Derives both the HTTP and WebSocket base URLs from a bare address and
persists them. Port defaults to 8000.

Examples:
  simctl config set-address 192.168.1.50
  simctl config set-address training-rig.local:9000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			svc, err := common.GetServices(ctx)
			if err != nil {
				return err
			}
			settings, err := svc.ConfigStore.SetAddress(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Backend address updated:\n")
			fmt.Printf("API URL:    %s\n", settings.APIBaseURL)
			fmt.Printf("Stream URL: %s\n", settings.StreamBaseURL)
			return nil
		},
	}
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove stored endpoint overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			svc, err := common.GetServices(ctx)
			if err != nil {
				return err
			}
			if err := svc.ConfigStore.Reset(ctx); err != nil {
				return err
			}
			fmt.Println("Endpoint overrides removed; configuration file values apply again.")
			return nil
		},
	}
}

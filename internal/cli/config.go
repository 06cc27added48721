package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
)

// DefaultConfigFile is written by "config init" when no path is given
const DefaultConfigFile = "sdg.yaml"

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Example: `
  sdg config init                         # writes ./sdg.yaml
  sdg config init ~/.sdg/config.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultConfigFile
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}

			if err := models.DefaultConfig().SaveToFile(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration written to %s\n", color.GreenString("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.API.APIKey != "" {
				cfg.API.APIKey = "********"
			}

			data, err := cfg.EncodeYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

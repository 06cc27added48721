package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/XeTute/Synthetic-Data-Generation/internal/client"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models served by the endpoint",
		Long: `List the models served by the endpoint. The models URL is derived from the
completions endpoint by replacing "chat/completions" with "models".`,
		Example: `
  sdg models --endpoint http://localhost:8000/v1/chat/completions`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateEndpoint(); err != nil {
				return err
			}

			llm := client.NewLLMClient(cfg.API.Endpoint, cfg.API.APIKey, client.WithTimeout(cfg.API.Timeout))
			ids, err := llm.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return ErrNoModels
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Models served at %s:\n", client.ModelsEndpoint(cfg.API.Endpoint))
			for i, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, id)
			}
			return nil
		},
	}
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cchalm/memochat/internal/checkpoint"
	"github.com/cchalm/memochat/internal/config"
	"github.com/cchalm/memochat/internal/conversation"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Listing needs credentials but not a model name
		settings := cfg.Settings
		if settings.APIKey == "" {
			return errors.New("missing API key: set MEMOCHAT_API_KEY or --api-key")
		}
		if settings.Provider == config.ProviderOpenAI && settings.BaseURL == "" {
			return errors.New("missing base URL: set MEMOCHAT_BASE_URL or --base-url")
		}

		// Listing touches no checkpoints, so the configured store is left unopened
		service := conversation.NewService(checkpoint.NewMemoryStore(), conversation.ServiceOptions{
			Logger:          logger,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		models, err := service.ModelsFor(cmd.Context(), settings)
		if err != nil {
			return err
		}
		for _, id := range models {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

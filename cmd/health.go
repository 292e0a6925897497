package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/internal/health"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the AI Assistant API and local configuration",
	GroupID: "internal",
	RunE:    runHealth,
}

var healthFormat string

func init() {
	healthCmd.Flags().StringVar(&healthFormat, "format", "text", "Output format: text, yaml or json")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configPath, _ := config.ConfigPath()

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.RequestTimeout,
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.RequestTimeout+commandTimeout)
	defer cancel()

	snap := health.Collect(ctx, health.Options{
		BaseURL:    client.BaseURL(),
		Prober:     client,
		ConfigPath: configPath,
		Channels:   channelsInfo(cfg),
	})

	out, err := health.Render(snap, healthFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if snap.Status != health.StatusHealthy {
		return fmt.Errorf("backend %s is unreachable", client.BaseURL())
	}
	return nil
}

func channelsInfo(cfg *config.Config) *health.ChannelsInfo {
	token := cfg.GetTelegramToken()
	if token == "" {
		return nil
	}
	return &health.ChannelsInfo{
		Telegram: &health.TelegramInfo{
			Configured: true,
			AllowedIDs: cfg.GetTelegramAllowedIDs(),
			SessionTTL: cfg.GetTelegramSessionTTL().String(),
		},
	}
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/config"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show or clear a user's conversation on the backend",
	GroupID: "main",
	Example: `  nagowidget history --user telegram_12345
  nagowidget history --user widget_user_42 --clear`,
	RunE: runHistory,
}

var (
	historyUser  string
	historyClear bool
)

func init() {
	historyCmd.Flags().StringVar(&historyUser, "user", "", "Backend user ID (required)")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the history instead of printing it")
	_ = historyCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.RequestTimeout,
	})
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.RequestTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	if historyClear {
		msg, err := client.ClearHistory(ctx, historyUser)
		if err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		if msg == "" {
			msg = textCleared
		}
		fmt.Fprintln(out, msg)
		return nil
	}

	entries, err := client.History(ctx, historyUser)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history for", historyUser)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s: %s\n", e.Role, e.Content)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/widget"
)

var askCmd = &cobra.Command{
	Use:     "ask",
	Short:   "Send one message and print the reply",
	GroupID: "main",
	Example: `  nagowidget ask -m "Hello"
  nagowidget ask -m "What did I ask before?" --user widget_user_42`,
	RunE: runAsk,
}

var (
	askMessage string
	askUser    string
	askTimeout time.Duration
)

func init() {
	askCmd.Flags().StringVarP(&askMessage, "message", "m", "", "Message text (required)")
	askCmd.Flags().StringVar(&askUser, "user", "", "User ID to send as (default: a new one)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", time.Minute, "Overall time limit")
	_ = askCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := cfg.WidgetOptions(askUser)
	opts.Greeting = ""
	s, err := widget.Open(opts)
	if err != nil {
		return err
	}
	defer s.Dispose()

	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	state, err := s.WaitConnectivity(ctx)
	if err != nil {
		return fmt.Errorf("waiting for backend: %w", err)
	}
	if state != monitor.StateConnected {
		return fmt.Errorf("%s (%s)", notice.TextCannotConnect, s.BaseURL())
	}

	if err := s.CheckSend(askMessage); err != nil {
		return err
	}
	results, err := s.Send(askMessage)
	if err != nil {
		return err
	}

	select {
	case r := <-results:
		if r.Err != nil {
			return fmt.Errorf("%s: %w", notice.TextSendFailed, r.Err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Reply.Text)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no reply: %w", ctx.Err())
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagowidget/channel"
	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/logger"
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Short:   "Open the chat panel and optional Telegram bridge",
	GroupID: "main",
	Long: `Start a long-running chat client on one or more channels.

Supported channels:
  - cli: Terminal chat panel (default)
  - telegram: Telegram bot, one session per user (requires TELEGRAM_BOT_TOKEN)

Examples:
  nagowidget chat              # Terminal panel
  nagowidget chat --telegram   # Telegram bridge only
  nagowidget chat --all        # Every configured channel`,
	RunE: runChat,
}

var (
	chatTelegram bool
	chatAll      bool
	chatCLI      bool
)

func init() {
	chatCmd.Flags().BoolVar(&chatTelegram, "telegram", false, "Enable Telegram bot channel")
	chatCmd.Flags().BoolVar(&chatAll, "all", false, "Enable all configured channels")
	chatCmd.Flags().BoolVar(&chatCLI, "cli", true, "Enable CLI channel (default: true)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	useCLI, useTelegram, err := resolveChatTargets(cmd)
	if err != nil {
		return err
	}

	manager := channel.NewManager()
	if useCLI {
		manager.Register(channel.NewCLIChannel(channel.CLIConfig{Prompt: "you> "}))
		logger.Info("CLI channel enabled")
	}
	if useTelegram {
		if ch := channel.NewTelegramChannel(cfg); ch != nil {
			manager.Register(ch)
			logger.Info("Telegram channel enabled")
		}
	}
	if manager.Len() == 0 {
		return fmt.Errorf("no channels could be started; check the Telegram token")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	logger.Info("nagowidget started", "backend", cfg.Backend.URL)
	if !useCLI {
		fmt.Println("nagowidget is running. Press Ctrl+C to stop.")
	}

	// Blocks until ctx is done, then disposes every session.
	NewDispatcher(manager, cfg).Run(ctx)

	if err := manager.StopAll(); err != nil {
		logger.Error("error stopping channels", "err", err)
	}

	logger.Info("nagowidget stopped")
	return nil
}

func resolveChatTargets(cmd *cobra.Command) (useCLI, useTelegram bool, err error) {
	if cmd == nil {
		return false, false, fmt.Errorf("chat command is nil")
	}
	if chatAll {
		return true, true, nil
	}

	flags := cmd.Flags()
	cliChanged := flags.Changed("cli")
	telegramChanged := flags.Changed("telegram")

	// No explicit channel flags -> default to CLI only.
	if !cliChanged && !telegramChanged {
		return true, false, nil
	}

	if cliChanged {
		useCLI = chatCLI
	}
	if telegramChanged {
		useTelegram = chatTelegram
	}
	if !useCLI && !useTelegram {
		return false, false, fmt.Errorf("no channels enabled; use --cli, --telegram, or --all")
	}
	return useCLI, useTelegram, nil
}

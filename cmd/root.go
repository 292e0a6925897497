// Package cmd implements the nagowidget command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/logger"
)

var configDirFlag string

var rootCmd = &cobra.Command{
	Use:   "nagowidget",
	Short: "Chat client for an AI Assistant HTTP backend",
	Long: `nagowidget embeds a chat client session against an AI Assistant backend
and exposes it on a terminal panel and, optionally, a Telegram bot.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if configDirFlag != "" {
			config.SetConfigDir(configDirFlag)
		}
		initLogger()
	},
}

// initLogger applies the logging section of the config. A broken config
// still gets the default logger; the command itself reports the error.
func initLogger() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	dir, _ := config.ConfigDir()
	if err := logger.Init(cfg.LoggerConfig(), dir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Config directory (default ~/.nagowidget)")
	rootCmd.AddGroup(
		&cobra.Group{ID: "main", Title: "Commands:"},
		&cobra.Group{ID: "internal", Title: "Diagnostics:"},
	)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

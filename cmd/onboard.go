package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/visibility"
)

var onboardCmd = &cobra.Command{
	Use:     "onboard",
	Short:   "Create the nagowidget configuration",
	GroupID: "main",
	Long:    `Create the nagowidget configuration directory and config file with an interactive wizard.`,
	RunE:    runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	// --- interactive wizard ---

	var (
		baseURL     = backend.DefaultBaseURL
		position    = string(visibility.BottomRight)
		autoOpen    = true
		configureTG bool
	)

	// Step 1: backend and panel
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("AI Assistant API URL").
				Description("Base URL of the backend serving /health and /chat.").
				Validate(validateBaseURL).
				Value(&baseURL),
			huh.NewSelect[string]().
				Title("Panel position").
				Options(
					huh.NewOption("Bottom right", string(visibility.BottomRight)),
					huh.NewOption("Bottom left", string(visibility.BottomLeft)),
				).
				Value(&position),
			huh.NewConfirm().
				Title("Open the chat panel on start?").
				Value(&autoOpen),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: optional Telegram
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Configure Telegram bot?").
				Description("You can skip and configure later in config.yaml.").
				Value(&configureTG),
		),
	).Run()
	if err != nil {
		return err
	}

	var tgToken, tgAllowedIDs string
	if configureTG {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Telegram Bot Token").
					Description("Open @BotFather on Telegram, run /newbot, and paste the token here.").
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("bot token is required")
						}
						return nil
					}).
					Value(&tgToken),
				huh.NewInput().
					Title("Allowed User IDs").
					Description("Open @userinfobot for each user, paste their IDs comma-separated. Leave empty to allow all.").
					Value(&tgAllowedIDs),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// --- apply config ---

	cfg := config.DefaultConfig()
	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	cfg.Widget.Position = position
	cfg.Widget.AutoOpen = autoOpen
	if configureTG {
		cfg.Channels.Telegram.Token = strings.TrimSpace(tgToken)
		cfg.Channels.Telegram.AllowedIDs = parseAllowedIDs(tgAllowedIDs)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("nagowidget initialized successfully!")
	fmt.Println()
	fmt.Println("  Config:", configPath)
	fmt.Println("  Backend:", cfg.Backend.URL)
	fmt.Println()
	fmt.Println("Run 'nagowidget health' to check the backend, then 'nagowidget chat'.")
	return nil
}

func validateBaseURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("URL needs a host")
	}
	return nil
}

func parseAllowedIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

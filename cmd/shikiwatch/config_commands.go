package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shikiwatch/internal/api"
	"shikiwatch/internal/config"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/notifications"
	"shikiwatch/internal/services"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func initTarget(flagValue string) (string, error) {
	if flagValue = strings.TrimSpace(flagValue); flagValue != "" {
		return config.ExpandPath(flagValue)
	}
	return config.DefaultConfigPath()
}

func newConfigInitCommand() *cobra.Command {
	var pathFlag string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(pathFlag)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			switch _, statErr := os.Stat(target); {
			case statErr == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
				return fmt.Errorf("inspect %s: %w", target, statErr)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Wrote sample configuration to %s\nFill in shikimori.user_id and shikimori.access_token (or export SHIKIMORI_ACCESS_TOKEN), then run `shikiwatch refresh`.\n",
				target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Where to write the file (defaults to the XDG config path)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// configReport is the --json shape of `config validate`.
type configReport struct {
	Path          string   `json:"path"`
	FileExists    bool     `json:"fileExists"`
	UserID        int64    `json:"userId"`
	HasToken      bool     `json:"hasToken"`
	CanRefresh    bool     `json:"canRefresh"`
	Players       []string `json:"players"`
	CacheDir      string   `json:"cacheDir"`
	APIBind       string   `json:"apiBind,omitempty"`
	Notifications bool     `json:"notifications"`
	Account       string   `json:"account,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report what shikiwatch will use",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = *ctx.configFlag
			}
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(path))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			report := configReport{
				Path:          resolved,
				FileExists:    exists,
				UserID:        cfg.Shikimori.UserID,
				HasToken:      cfg.Shikimori.AccessToken != "",
				CanRefresh:    cfg.Shikimori.RefreshToken != "" && cfg.Shikimori.ClientID != "",
				Players:       cfg.Monitoring.SupportedPlayers,
				CacheDir:      cfg.Cache.Dir,
				Notifications: cfg.Notifications.NtfyTopic != "",
			}
			if cfg.API.Enabled {
				report.APIBind = cfg.API.Bind
			}
			if !exists {
				report.Warnings = append(report.Warnings, "config file not found; defaults in effect")
			}
			credErr := cfg.RequireCredentials()
			if credErr != nil {
				report.Warnings = append(report.Warnings, credErr.Error())
			}
			if remote && credErr == nil {
				account, err := checkAccount(cmd, cfg, resolved, exists, ctx.logger(cmd))
				if err != nil {
					return err
				}
				report.Account = account
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", report.Path)
			fmt.Fprintf(out, "User:        %d (token: %t, refresh: %t)\n", report.UserID, report.HasToken, report.CanRefresh)
			fmt.Fprintf(out, "Players:     %s\n", strings.Join(report.Players, ", "))
			fmt.Fprintf(out, "Cache:       %s\n", report.CacheDir)
			if report.Account != "" {
				fmt.Fprintf(out, "Account:     %s\n", report.Account)
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", w)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Check the access token against Shikimori")
	return cmd
}

// checkAccount asks Shikimori who owns the token and fails when it is not the
// configured user.
func checkAccount(cmd *cobra.Command, cfg *config.Config, path string, exists bool, logger *slog.Logger) (string, error) {
	opts := daemonrun.BuildOptions{}
	if exists {
		opts.ConfigPath = path
	}
	client, err := daemonrun.NewClient(cfg, logger, opts)
	if err != nil {
		return "", err
	}
	user, err := client.WhoAmI(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("check token: %w", err)
	}
	if user.ID != cfg.Shikimori.UserID {
		return "", services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("access token belongs to user %d (%s), but shikimori.user_id is %d", user.ID, user.Nickname, cfg.Shikimori.UserID), nil)
	}
	return fmt.Sprintf("%s (%d)", user.Nickname, user.ID), nil
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through ntfy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var resp api.NotificationTestResponse
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err = client.TestNotification(cmd.Context())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				resp, err = localTestNotification(cmd, cfg)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func localTestNotification(cmd *cobra.Command, cfg *config.Config) (api.NotificationTestResponse, error) {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return api.NotificationTestResponse{Message: "ntfy topic not configured"}, nil
	}
	if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
		return api.NotificationTestResponse{}, fmt.Errorf("send test notification: %w", err)
	}
	return api.NotificationTestResponse{Sent: true, Message: "test notification sent"}, nil
}

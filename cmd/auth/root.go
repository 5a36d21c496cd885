package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clientauth/internal/auth/app"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

// NewRootCmd creates the root command for the auth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Client authentication and session credential service",
		Long: `auth registers accounts, authenticates passwords and TOTP codes, and
issues bearer tokens. Issuing a token revokes every earlier token of the account.

Settings come from defaults, an optional YAML file (--config), AUTH_ environment
variables (AUTH_HTTP__PORT sets http.port) and flags, later sources winning.`,
		SilenceUsage: true,
	}

	app.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

func loadConfig(cmd *cobra.Command) (app.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := app.Load(path, flags)
	if err != nil {
		return app.Config{}, oops.Code("CONFIG_INVALID").With("config_file", path).Wrap(err)
	}
	return cfg, nil
}

func newLogger(cfg app.Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "clientauth",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
}

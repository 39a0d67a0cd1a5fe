package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"idp/internal/platform/config"
	"idp/internal/platform/logger"
)

// app carries what every subcommand shares: the viper instance flags are
// bound to, and the logger built from it.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.Defaults(a.v)

	root := &cobra.Command{
		Use:               "server",
		Short:             "OpenID Connect provider",
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				a.v.SetConfigFile(path)
				if err := a.v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config file: %w", err)
				}
			}
			a.logger = logger.New(a.v.GetString(config.KeyLogLevel), a.v.GetString(config.KeyLogFormat))
			slog.SetDefault(a.logger)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Optional config file (yaml, json or toml)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "json", "Log format: json or text")
	flags.String("database-url", "", "Postgres connection string")
	mustBind(a.v, config.KeyLogLevel, flags.Lookup("log-level"))
	mustBind(a.v, config.KeyLogFormat, flags.Lookup("log-format"))
	mustBind(a.v, config.KeyDatabaseURL, flags.Lookup("database-url"))

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newRelayCmd(a))
	return root
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

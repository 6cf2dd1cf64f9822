package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/logging"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath      string
	port            string
	logLevel        string
	managerPassword string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "trivia-room-service",
		Short:         "Real-time multiplayer trivia rooms over WebSocket and Socket.IO",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", envConfig, "path to YAML config (env: TRIVIA_CONFIG)")
	flags.StringVar(&opts.port, "port", os.Getenv("PORT"), "port to listen on, overrides server.port (env: TRIVIA_PORT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "trace|debug|info|warn|error (env: TRIVIA_LOG_LEVEL)")
	flags.StringVar(&opts.managerPassword, "manager-password", "", "shared manager password (env: TRIVIA_MANAGER_PASSWORD)")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// load reads the config file, applies flag overrides and sets up logging.
// A missing file falls back to the defaults.
func (o *options) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		return cfg, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if o.port != "" {
		cfg.Server.Port = o.port
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.managerPassword != "" {
		cfg.Game.ManagerPassword = o.managerPassword
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if missing {
		log.Warn().Str("path", o.configPath).Msg("config file not found, using defaults")
	}
	return cfg, nil
}

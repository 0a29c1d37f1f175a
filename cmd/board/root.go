package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"election_board/pkg/config"
	"election_board/pkg/utils"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagDebug    = "debug"
	flagSettings = "settings"
	flagEndpoint = "endpoint"
)

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	flagLogLevel:     "log_level",
	flagSettings:     "settings.path",
	flagEndpoint:     "poller.endpoint",
	"interval":       "poller.interval",
	"timeout":        "poller.timeout",
	"addr":           "server.addr",
	"static-dir":     "server.static_dir",
	"log-file":       "log.file",
	"max-concurrent": "scheduler.max_concurrent",
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "board",
		Short:         "Live election results display board",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String(flagConfig, "config.yaml", "path to the configuration file")
	cmd.PersistentFlags().String(flagLogLevel, "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().Bool(flagDebug, false, "development logging")
	cmd.PersistentFlags().String(flagSettings, "", "path to the persisted settings file")
	cmd.PersistentFlags().String(flagEndpoint, "", "results endpoint URL")

	cmd.AddCommand(
		newServeCmd(v),
		newCheckCmd(v),
	)

	return cmd
}

// loadConfig binds the command's flags into v and loads the configuration
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return nil, fmt.Errorf("binding flags: %w", bindErr)
	}

	// an endpoint given on the command line beats the stored override
	if cmd.Flags().Changed(flagEndpoint) {
		v.Set("poller.pin_endpoint", true)
	}

	if debug, _ := cmd.Flags().GetBool(flagDebug); debug {
		v.Set("environment", "development")
		v.Set("log_level", "debug")
	}

	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFrom(v, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := utils.NewLogger(utils.LogConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}

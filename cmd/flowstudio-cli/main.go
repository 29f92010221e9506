// Package main provides a CLI for working with workflow definitions.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tcmartin/flowstudio/pkg/config"
	"github.com/tcmartin/flowstudio/pkg/logging"
)

// options are the global flags
type options struct {
	configPath string
	engineURL  string
	serverURL  string
	logLevel   string

	cfg    *config.Config
	logger logging.Logger
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "flowstudio-cli",
		Short:         "FlowStudio CLI",
		Long:          "Normalize, render and publish workflow definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.engineURL, "engine", "", "Engine API URL")
	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:8080", "Studio server URL")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(
		newNormalizeCmd(opts),
		newRenderCmd(opts),
		newPublishCmd(opts),
		newFetchCmd(opts),
		newDefinitionsCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}

// load resolves configuration: the flag path or the standard locations,
// then the environment, then explicit flags
func (o *options) load(cmd *cobra.Command) error {
	var cfg *config.Config
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config from %s: %w", o.configPath, err)
		}
		cfg = loaded
	} else if loaded, _, err := config.Discover(config.DefaultSearchPaths()); err == nil {
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}
	config.ApplyEnv(cfg)

	if o.engineURL != "" {
		cfg.Engine.BaseURL = o.engineURL
	}
	if cmd.Flags().Changed("log-level") || cfg.Logging.Level == "" {
		cfg.Logging.Level = o.logLevel
	}

	o.cfg = cfg
	o.logger = logging.NewWriterLogger(cmd.ErrOrStderr(), logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: "text",
	})
	return nil
}

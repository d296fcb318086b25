package main

import (
	"fmt"
	"os"

	"github.com/oriys/tower/internal/config"
	"github.com/oriys/tower/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	logLevel     string
	logFormat    string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tower",
		Short:        "Tower - Ansible Tower job-template work items",
		Long:         "Invoke Ansible Tower / AWX job-template endpoints as workflow work items",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, wide, json, yaml)")

	rootCmd.AddCommand(
		invokeCmd(),
		serveCmd(),
		workItemsCmd(),
		credentialsCmd(),
		resultTypesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the effective config: defaults, then the config file,
// then TOWER_* env vars, then flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Daemon.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Observability.Logging.Format = logFormat
	}

	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Daemon.LogLevel)
	return cfg, nil
}

package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/locdb/locdb/internal/config"
)

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after the config file and LOCDB_* environment
variables are applied.

Usage:
  locdb config          # Show effective config (YAML)
  locdb config path     # Print the config file location
  locdb config init     # Write a default config file`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if humanOutput {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(cfg.Redacted()); err != nil {
			exitWithError(ExitError, "encoding config: %v", err)
		}
		return nil
	}
	outputJSON(cfg.Redacted())
	return nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if humanOutput {
			outputHuman("%s\n", config.Path())
			return
		}
		outputJSON(StatusResponse{Status: "ok", Path: config.Path()})
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.Path()
	if _, err := os.Stat(path); err == nil && !configForce {
		exitWithError(ExitConfigError, "%s already exists (use --force to overwrite)", path)
	}
	if err := config.Defaults().Save(path); err != nil {
		exitWithError(ExitError, "writing config: %v", err)
	}

	if humanOutput {
		outputHuman("Wrote %s\n", path)
	} else {
		outputJSON(StatusResponse{Status: "created", Path: path})
	}
	return nil
}

// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect labgate configuration files.

Use 'labgate init' to create a new configuration file.

Subcommands:
  show      Display the effective configuration
  validate  Validate the configuration file`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
}

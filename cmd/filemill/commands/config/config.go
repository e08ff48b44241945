// Package config implements the subcommands under 'filemill config'.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect and maintain the FileMill configuration.

Use 'filemill init' to create a new configuration file.

Subcommands:
  show      Display the effective configuration
  validate  Check a configuration file and summarize it
  edit      Open the configuration in an editor
  schema    Emit the JSON schema for IDE completion and validation`,
}

func init() {
	Cmd.AddCommand(showCmd, validateCmd, editCmd, schemaCmd)
}

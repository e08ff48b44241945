// Package commands implements the filemill CLI: the API server, the
// worker fleets, and the management commands around them.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/filemill/filemill/cmd/filemill/commands/config"
)

// Build metadata, overwritten through ldflags by the release build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "filemill",
	Short: "FileMill - File processing pipeline",
	Long: `FileMill is a file processing pipeline. Clients upload files with an
ordered list of actions (thumbnails, transcodes, virus scans, AI tagging);
the API stores the blob, records one job per action and publishes work to
per-fleet RabbitMQ queues consumed by worker processes.

Use "filemill [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Errors come back to main, which prints them once.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile returns the path given via --config, or "" when the
// default search order should apply.
func GetConfigFile() string {
	return cfgFile
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/filemill/config.yaml)")

	rootCmd.AddCommand(
		serveCmd,
		workerCmd,
		initCmd,
		migrateCmd,
		userCmd,
		logsCmd,
		versionCmd,
		config.Cmd,
	)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filemill/filemill/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a commented starter configuration file.

Without --config the file goes to $XDG_CONFIG_HOME/filemill/config.yaml.
An existing file is left alone unless --force is given.

Examples:
  # Default location
  filemill init

  # Somewhere else
  filemill init --config /etc/filemill/config.yaml

  # Replace an existing file
  filemill init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf(`Configuration file created at: %s

Next steps:
  1. Edit the file to match your environment
  2. Start the API server:   filemill serve
  3. Start a worker fleet:   filemill worker --fleet image

The generated token secret is fine for development. For production,
supply one through the environment instead:
    export FILEMILL_AUTH_SECRET_KEY=$(openssl rand -hex 32)
`, path)

	return nil
}

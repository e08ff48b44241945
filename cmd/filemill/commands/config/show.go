package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/filemill/filemill/internal/cli/output"
	"github.com/filemill/filemill/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective FileMill configuration after merging the config
file, environment variables and defaults. Secrets are redacted.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show effective config as YAML
  filemill config show

  # Show as JSON
  filemill config show --output json

  # Show specific config file
  filemill config show --config /etc/filemill/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	redacted := redactSecrets(*cfg)

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, redacted)
	default:
		return output.PrintYAML(os.Stdout, redacted)
	}
}

// redactSecrets masks credential fields so the output is safe to paste
// into tickets and chat.
func redactSecrets(cfg config.Config) config.Config {
	const mask = "********"
	if cfg.Auth.SecretKey != "" {
		cfg.Auth.SecretKey = mask
	}
	if cfg.ObjectStore.AccessKey != "" {
		cfg.ObjectStore.AccessKey = mask
	}
	if cfg.ObjectStore.SecretKey != "" {
		cfg.ObjectStore.SecretKey = mask
	}
	if cfg.Broker.Password != "" {
		cfg.Broker.Password = mask
	}
	if cfg.Worker.Gemini.APIKey != "" {
		cfg.Worker.Gemini.APIKey = mask
	}
	if cfg.Database.URL != "" {
		cfg.Database.URL = mask
	}
	if cfg.Database.Postgres.Password != "" {
		cfg.Database.Postgres.Password = mask
	}
	return cfg
}

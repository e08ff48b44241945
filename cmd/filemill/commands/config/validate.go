package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filemill/filemill/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration the same way the server does and report
problems before anything is started.

Syntax errors and out-of-range values fail the command; risky but legal
settings are listed as warnings.

Examples:
  # Validate the default config
  filemill config validate

  # Validate a specific file
  filemill config validate --config /etc/filemill/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Database:     %s\n", cfg.Database.Type)
	fmt.Printf("  API listen:   %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Object store: %s\n", cfg.ObjectStore.URL())
	fmt.Printf("  Broker:       %s:%d\n", cfg.Broker.Host, cfg.Broker.Port)
	fmt.Printf("  Log level:    %s\n", cfg.Logging.Level)

	return nil
}

// configWarnings flags settings that load fine but will bite in
// production.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.Auth.SecretKey == "" {
		warnings = append(warnings, "auth.secret_key is not set - the API cannot issue tokens")
	}
	if cfg.ObjectStore.AccessKey == "minioadmin" && cfg.ObjectStore.SecretKey == "minioadmin" {
		warnings = append(warnings, "object store uses the default MinIO credentials")
	}
	if cfg.Broker.User == "guest" && cfg.Broker.Password == "guest" {
		warnings = append(warnings, "broker uses the default guest credentials")
	}
	if !cfg.Dispatch.Reaper.Enabled {
		warnings = append(warnings, "dispatch.reaper is disabled - jobs whose publish is lost stay QUEUED until requeued by hand")
	}
	if cfg.Worker.Gemini.APIKey == "" {
		warnings = append(warnings, "worker.gemini.api_key is not set - AI tagging will produce fallback tags only")
	}

	return warnings
}

package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/cli/output"
	"github.com/marmos91/labgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the labgate configuration file.

Checks for syntax errors, missing required fields, strategies without
their configuration block and provisioning steps whose dependencies are
not configured.

Examples:
  labgate config validate
  labgate config validate --config /etc/labgate/config.yaml`,
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

	var warnings []string
	if !cfg.Token.Enabled {
		warnings = append(warnings, "token issuance is disabled")
	}
	if cfg.Throttle.Enabled && cfg.Throttle.Addr == "" {
		warnings = append(warnings, "throttle enabled without a redis address")
	}
	for _, ns := range cfg.Namespaces() {
		if len(cfg.StepsFor(ns)) == 0 {
			warnings = append(warnings, fmt.Sprintf("namespace %s runs no provisioning steps", ns))
		}
	}

	out := cmd.OutOrStdout()
	output.Status(out, true, true, fmt.Sprintf("Configuration is valid: %s", displayPath))
	for _, w := range warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}

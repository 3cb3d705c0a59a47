package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/cli/output"
	"github.com/marmos91/labgate/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides
have been applied. Secrets are redacted.

Examples:
  labgate config show
  labgate config show --output json
  labgate config show --config /etc/labgate/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	redacted := config.Redacted(cfg)
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), redacted)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), redacted)
	}
}

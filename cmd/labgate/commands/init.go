package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/cli/prompt"
	"github.com/marmos91/labgate/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample labgate configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/labgate/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  labgate init

  # Initialize with custom path
  labgate init --config /etc/labgate/config.yaml

  # Force overwrite existing config
  labgate init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(configPath); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite existing configuration at %s", configPath), initForce)
		if err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		force = ok
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Configure the authentication strategies and provisioning steps")
	fmt.Fprintln(out, "  2. Create the database schema with: labgate migrate")
	fmt.Fprintln(out, "  3. Try a login with: labgate login <username>")
	fmt.Fprintln(out, "\nSecurity note:")
	fmt.Fprintln(out, "  A random token secret has been generated. Token issuance stays disabled")
	fmt.Fprintln(out, "  until token.enabled is set. For production, provide the secret through")
	fmt.Fprintln(out, "  the environment instead:")
	fmt.Fprintln(out, "    export LABGATE_TOKEN_SECRET=$(openssl rand -hex 32)")

	return nil
}

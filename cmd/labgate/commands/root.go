// Package commands implements the labgate command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/cmd/labgate/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "labgate",
	Short: "labgate - remote lab authentication and provisioning",
	Long: `labgate authenticates students against the institution's identity
backends (local database, LDAP, Moodle, SSO, Kerberos) and prepares
their lab account: directory entry, group memberships, Samba password,
home directory and profile.

Use "labgate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/labgate/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

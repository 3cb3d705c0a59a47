package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/cli/prompt"
	"github.com/marmos91/labgate/pkg/config"
	"github.com/marmos91/labgate/pkg/controlplane/models"
	"github.com/marmos91/labgate/pkg/controlplane/store"
)

const minPasswordLength = 8

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local database principals",
}

var (
	userNamespace string
	userFirstName string
	userLastName  string
	userEmail     string
	userDisabled  bool
)

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a principal for database authentication",
	Long: `Create a principal that can log in through the Database strategy.

Profile fields not given as flags are prompted for on a terminal. The
password is prompted for twice, or read from stdin when piped.

Examples:
  labgate user add alice --first Alice --last Liddell --email alice@uni.edu`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

func init() {
	userAddCmd.Flags().StringVarP(&userNamespace, "namespace", "n", "", "Institution namespace (default: auth.namespace)")
	userAddCmd.Flags().StringVar(&userFirstName, "first", "", "First name")
	userAddCmd.Flags().StringVar(&userLastName, "last", "", "Last name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userAddCmd.Flags().BoolVar(&userDisabled, "disabled", false, "Create the principal with logins disallowed")

	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	details := []struct {
		label string
		value *string
	}{
		{"First name", &userFirstName},
		{"Last name", &userLastName},
		{"Email", &userEmail},
	}
	for _, d := range details {
		if *d.value != "" {
			continue
		}
		v, err := prompt.Input(d.label, "")
		if err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		*d.value = v
	}

	password, err := prompt.NewPassword(minPasswordLength)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}

	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = cpStore.Close() }()

	ns := userNamespace
	if ns == "" {
		ns = cfg.Auth.Namespace
	}
	p := &models.Principal{
		Namespace:   ns,
		Name:        args[0],
		FirstName:   userFirstName,
		LastName:    userLastName,
		Email:       userEmail,
		AuthAllowed: !userDisabled,
	}
	p.SetPassword(password)

	if _, err := cpStore.CreatePrincipal(context.Background(), p); err != nil {
		if errors.Is(err, models.ErrDuplicatePrincipal) {
			return fmt.Errorf("principal %s already exists", p.Qualified())
		}
		return fmt.Errorf("failed to create principal: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Principal %s created\n", p.Qualified())
	return nil
}

package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/cli/output"
)

var (
	groupsNamespace string
	groupsOutput    string
)

var groupsCmd = &cobra.Command{
	Use:   "groups <username>",
	Short: "List the lab groups of a user",
	Long: `List the groups a principal currently belongs to, as assigned by the
Permissions step on their last login.

Examples:
  labgate groups alice
  labgate groups alice --namespace partner -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGroups,
}

func init() {
	groupsCmd.Flags().StringVarP(&groupsNamespace, "namespace", "n", "", "Institution namespace (default: auth.namespace)")
	groupsCmd.Flags().StringVarP(&groupsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

type groupList []groupRow

type groupRow struct {
	Name   string `json:"name" yaml:"name"`
	Active bool   `json:"active" yaml:"active"`
}

func (g groupList) Headers() []string { return []string{"GROUP", "ACTIVE"} }

func (g groupList) Rows() [][]string {
	rows := make([][]string, 0, len(g))
	for _, r := range g {
		rows = append(rows, []string{r.Name, strconv.FormatBool(r.Active)})
	}
	return rows
}

func runGroups(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(groupsOutput)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cfg, p, err := loadPortal(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ns := groupsNamespace
	if ns == "" {
		ns = cfg.Auth.Namespace
	}
	classes, err := p.Store().GetPrincipalGroups(ctx, ns, args[0])
	if err != nil {
		return fmt.Errorf("failed to read groups of %s:%s: %w", ns, args[0], err)
	}

	list := make(groupList, 0, len(classes))
	for _, c := range classes {
		list = append(list, groupRow{Name: c.Name, Active: c.Active})
	}
	return output.Print(cmd.OutOrStdout(), format, list)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/cli/output"
	"github.com/marmos91/labgate/internal/cli/prompt"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/portal"
	"github.com/marmos91/labgate/pkg/token"
)

var (
	loginNamespace string
	loginClientIP  string
	loginOutput    string
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Run a login through the full pipeline",
	Long: `Authenticate a user with the configured strategies and run the
provisioning steps exactly as a lab session would.

The password is prompted for, or read from stdin when piped.

Examples:
  # Interactive login in the default namespace
  labgate login alice

  # Scripted login for another institution
  echo "$PASSWORD" | labgate login alice --namespace partner -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginNamespace, "namespace", "n", "", "Institution namespace (default: auth.namespace)")
	loginCmd.Flags().StringVar(&loginClientIP, "ip", "127.0.0.1", "Client address used for throttling")
	loginCmd.Flags().StringVarP(&loginOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(loginOutput)
	if err != nil {
		return err
	}

	password, err := prompt.Password("Password")
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}

	ctx := context.Background()
	_, p, err := loadPortal(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	out, err := p.Login(ctx, portal.LoginRequest{
		Namespace:   loginNamespace,
		Credentials: auth.Credentials{Username: args[0], Password: password},
		ClientIP:    loginClientIP,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	view := newLoginView(args[0], out)
	if err := printLogin(cmd.OutOrStdout(), format, view); err != nil {
		return err
	}
	if !out.Success() {
		return errors.New("credentials rejected")
	}
	return nil
}

type stepView struct {
	Name       string  `json:"name" yaml:"name"`
	Outcome    string  `json:"outcome" yaml:"outcome"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs float64 `json:"duration_ms" yaml:"duration_ms"`
}

type loginView struct {
	Username  string      `json:"username" yaml:"username"`
	Namespace string      `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Success   bool        `json:"success" yaml:"success"`
	Strategy  string      `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Groups    []string    `json:"groups,omitempty" yaml:"groups,omitempty"`
	Steps     []stepView  `json:"steps,omitempty" yaml:"steps,omitempty"`
	Tokens    *token.Pair `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

func newLoginView(username string, out *portal.LoginOutcome) loginView {
	v := loginView{Username: username, Success: out.Success()}
	if !v.Success {
		return v
	}
	res := out.Result
	v.Strategy = res.Type.String()
	if res.Info != nil {
		v.Username = res.Info.Username()
		v.Namespace = res.Info.Namespace()
	}
	v.Groups = out.Groups
	v.Tokens = out.Tokens
	if out.Session != nil {
		for _, s := range out.Session.Steps {
			sv := stepView{
				Name:       s.Name,
				Outcome:    s.Outcome,
				DurationMs: float64(s.Duration.Microseconds()) / 1000,
			}
			if s.Err != nil {
				sv.Error = s.Err.Error()
			}
			v.Steps = append(v.Steps, sv)
		}
	}
	return v
}

func printLogin(w io.Writer, format output.Format, v loginView) error {
	if format != output.FormatTable {
		return output.Print(w, format, v)
	}

	if !v.Success {
		output.Status(w, false, true, "Login rejected for "+v.Username)
		return nil
	}
	output.Status(w, true, true, "Login accepted for "+v.Username)

	pairs := [][2]string{
		{"Username", v.Username},
		{"Namespace", v.Namespace},
		{"Strategy", v.Strategy},
		{"Groups", strings.Join(v.Groups, ", ")},
	}
	if v.Tokens != nil {
		pairs = append(pairs, [2]string{"Token expires", v.Tokens.ExpiresAt.Format("2006-01-02 15:04:05")})
	}
	if err := output.KeyValues(w, pairs); err != nil {
		return err
	}
	if len(v.Steps) == 0 {
		return nil
	}

	steps := output.NewTableData("STEP", "OUTCOME", "DURATION", "ERROR")
	for _, s := range v.Steps {
		steps.AddRow(s.Name, s.Outcome, fmt.Sprintf("%.1fms", s.DurationMs), s.Error)
	}
	_, _ = fmt.Fprintln(w)
	return output.PrintTable(w, steps)
}

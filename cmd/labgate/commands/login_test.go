package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/internal/cli/output"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/portal"
	"github.com/marmos91/labgate/pkg/session"
)

func successfulOutcome() *portal.LoginOutcome {
	return &portal.LoginOutcome{
		Result: &auth.Result{
			Success: true,
			Type:    auth.TypeLdap,
			Info:    auth.NewInfo("uni", "alice"),
		},
		Session: &session.Report{Steps: []session.StepReport{
			{Name: session.StepLdapAccount, Outcome: "ok", Duration: 2 * time.Millisecond},
			{Name: session.StepHomeDirectory, Outcome: "error", Err: errors.New("mkdir denied")},
		}},
		Groups: []string{"lab-a", "students"},
	}
}

func TestNewLoginView(t *testing.T) {
	v := newLoginView("alice", successfulOutcome())

	assert.True(t, v.Success)
	assert.Equal(t, "uni", v.Namespace)
	assert.Equal(t, "Ldap", v.Strategy)
	require.Len(t, v.Steps, 2)
	assert.Equal(t, 2.0, v.Steps[0].DurationMs)
	assert.Equal(t, "mkdir denied", v.Steps[1].Error)
}

func TestNewLoginViewRejected(t *testing.T) {
	v := newLoginView("alice", &portal.LoginOutcome{Result: &auth.Result{}})

	assert.False(t, v.Success)
	assert.Empty(t, v.Strategy)
	assert.Empty(t, v.Steps)
}

func TestPrintLoginJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLogin(&buf, output.FormatJSON, newLoginView("alice", successfulOutcome())))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, []any{"lab-a", "students"}, got["groups"])
	assert.NotContains(t, got, "tokens")
}

func TestPrintLoginTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLogin(&buf, output.FormatTable, newLoginView("alice", successfulOutcome())))

	out := buf.String()
	assert.Contains(t, out, "Login accepted for alice")
	assert.Contains(t, out, "lab-a, students")
	assert.Contains(t, out, session.StepHomeDirectory)
	assert.Contains(t, out, "mkdir denied")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "labgate "+Version)
}

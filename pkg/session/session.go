// Package session runs the provisioning steps that prepare a lab account
// after a successful login: directory account creation, group
// reconciliation, Samba password mirroring, home directory creation and
// profile synchronisation.
//
// Steps are idempotent. Each one checks the current state of the system it
// changes before writing, so concurrent logins of the same user converge.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/marmos91/labgate/pkg/auth"
)

// ErrStepFailed wraps the error of a step that could not complete. The
// login itself still succeeds.
var ErrStepFailed = errors.New("session: provisioning step failed")

// Step names as they appear in configuration.
const (
	StepLdapAccount     = "LdapAccount"
	StepPermissions     = "Permissions"
	StepSambaPassword   = "SambaPassword"
	StepHomeDirectory   = "HomeDirectory"
	StepUserDetails     = "UserDetails"
	StepMoodleAuthorise = "MoodleAuthorise"
)

// Step is one post-login side effect.
type Step interface {
	Name() string

	// Setup provisions the principal described by res. res is always a
	// successful result.
	Setup(ctx context.Context, res *auth.Result) error
}

// requirements lists, per step, the strategy types that must have won the
// login. A step missing from the table accepts any strategy.
var requirements = map[string][]auth.Type{
	StepPermissions:     {auth.TypeLdap},
	StepSambaPassword:   {auth.TypeLdap, auth.TypeDatabase, auth.TypeMoodle, auth.TypeKerberos},
	StepHomeDirectory:   {auth.TypeLdap, auth.TypeDatabase},
	StepMoodleAuthorise: {auth.TypeMoodle},
}

// Requires returns the strategy types step depends on, or nil if it runs
// after any strategy.
func Requires(step string) []auth.Type {
	return requirements[step]
}

// checkPrecondition returns a configuration error when step cannot run
// after a login won by t.
func checkPrecondition(step string, t auth.Type) error {
	req := requirements[step]
	if len(req) == 0 || slices.Contains(req, t) {
		return nil
	}
	return auth.Configuration("session step %s requires authentication by %v, got %s", step, req, t)
}

func stepError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStepFailed, step, err)
}

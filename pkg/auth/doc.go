// Package auth authenticates a login against an ordered chain of
// credential backends.
//
// The core types are:
//
//   - Strategy: one credential backend (Database, Ldap, Moodle, SSO, Kerberos)
//   - Info: the properties a winning backend exposes about the principal
//   - Registry: strategy factories keyed by type, with per-institution overrides
//   - Authenticator: tries strategies in order; the first success wins
//
// A Strategy reports a rejected login with an error wrapping
// ErrAuthenticationFailed. The Authenticator turns those into an
// unsuccessful Result. Any other error aborts the login.
//
// Sub-packages hold the strategy implementations.
package auth

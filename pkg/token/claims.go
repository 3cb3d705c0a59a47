// Package token issues and validates the signed session tokens handed to a
// user after a successful portal login.
package token

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes session tokens from refresh tokens.
type Kind string

const (
	// KindSession is the short-lived token presented to lab services.
	KindSession Kind = "session"
	// KindRefresh is exchanged for a new session token.
	KindRefresh Kind = "refresh"
)

// Claims is the payload of a labgate token. Identity is expressed as
// namespace plus username, which is how every labgate store keys a user.
type Claims struct {
	jwt.RegisteredClaims

	Namespace string   `json:"ns"`
	Username  string   `json:"username"`
	Strategy  string   `json:"strategy,omitempty"`
	Groups    []string `json:"groups,omitempty"`
	Kind      Kind     `json:"kind"`
}

// IsSession reports whether the claims belong to a session token.
func (c *Claims) IsSession() bool { return c.Kind == KindSession }

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool { return c.Kind == KindRefresh }

// HasGroup returns true if the user was a member of group when the token
// was issued.
func (c *Claims) HasGroup(group string) bool {
	return slices.Contains(c.Groups, group)
}

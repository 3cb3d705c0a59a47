// Package database authenticates principals against the local store.
package database

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// PrincipalReader is the store capability needed by the strategy.
type PrincipalReader interface {
	GetPrincipal(ctx context.Context, namespace, name string) (*models.Principal, error)
}

// Strategy checks the SHA-1 password digest of a local principal.
type Strategy struct {
	store     PrincipalReader
	namespace string
}

// New returns a database strategy for namespace.
func New(store PrincipalReader, namespace string) (*Strategy, error) {
	if store == nil {
		return nil, auth.Configuration("database strategy requires a store")
	}
	return &Strategy{store: store, namespace: namespace}, nil
}

func (s *Strategy) Type() auth.Type { return auth.TypeDatabase }

// Authenticate succeeds only for an existing principal whose auth_allowed
// flag is set and whose stored digest matches the password.
func (s *Strategy) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Info, error) {
	name := strings.TrimSpace(creds.Username)
	if name == "" || creds.Password == "" {
		return nil, auth.Failed("empty username or password")
	}

	p, err := s.store.GetPrincipal(ctx, s.namespace, name)
	if errors.Is(err, models.ErrPrincipalNotFound) {
		return nil, auth.Failed("no local principal %s:%s", s.namespace, name)
	}
	if err != nil {
		return nil, auth.Backend(err)
	}
	if !p.AuthAllowed {
		return nil, auth.Failed("database authentication not allowed for %s", p.Qualified())
	}
	if !p.CheckPassword(creds.Password) {
		return nil, auth.Failed("password mismatch for %s", p.Qualified())
	}

	info := auth.NewInfo(p.Namespace, p.Name).
		Set(auth.FirstName, p.FirstName).
		Set(auth.LastName, p.LastName).
		Set(auth.Email, p.Email).
		Set("id", p.ID).
		Set("name", p.Name).
		Set("namespace", p.Namespace).
		SetPassword(creds.Password)
	if full := strings.TrimSpace(p.FirstName + " " + p.LastName); full != "" {
		info.Set(auth.DisplayName, full)
	}
	return info, nil
}

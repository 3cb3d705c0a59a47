package auth

import (
	"context"
	"fmt"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// PrincipalEnsurer creates local principal rows on demand.
type PrincipalEnsurer interface {
	EnsurePrincipal(ctx context.Context, p *models.Principal) (*models.Principal, bool, error)
}

// EnsureLocalPrincipal makes sure a principal row exists for info so that
// group memberships have something to attach to. Externally verified
// principals get no local password and cannot use database
// authentication.
func EnsureLocalPrincipal(ctx context.Context, store PrincipalEnsurer, info Info) (*models.Principal, error) {
	p := &models.Principal{
		Namespace:   info.Namespace(),
		Name:        info.Username(),
		AuthAllowed: false,
	}
	p.FirstName, _ = info.Get(FirstName)
	p.LastName, _ = info.Get(LastName)
	p.Email, _ = info.Get(Email)

	stored, _, err := store.EnsurePrincipal(ctx, p)
	if err != nil {
		return nil, Backend(fmt.Errorf("ensure principal %s: %w", p.Qualified(), err))
	}
	return stored, nil
}

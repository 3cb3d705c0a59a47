// Package store provides the control plane persistence layer: principals,
// user classes with their memberships, and SSO subject mappings.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL
package store

import (
	"context"
	"time"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// PrincipalStore manages authenticatable identities.
type PrincipalStore interface {
	// GetPrincipal returns models.ErrPrincipalNotFound if absent.
	GetPrincipal(ctx context.Context, namespace, name string) (*models.Principal, error)

	// ListPrincipals returns the principals of a namespace ordered by name.
	ListPrincipals(ctx context.Context, namespace string) ([]*models.Principal, error)

	// CreatePrincipal returns models.ErrDuplicatePrincipal when the
	// (namespace, name) pair is taken.
	CreatePrincipal(ctx context.Context, p *models.Principal) (string, error)

	// EnsurePrincipal creates p if no principal with the same identity
	// exists and returns the stored record. created is false when the
	// principal already existed.
	EnsurePrincipal(ctx context.Context, p *models.Principal) (stored *models.Principal, created bool, err error)

	// UpdatePrincipalDetails writes d if it differs from the stored
	// details and reports whether anything changed.
	UpdatePrincipalDetails(ctx context.Context, namespace, name string, d models.Details) (bool, error)

	UpdateLastLogin(ctx context.Context, namespace, name string, at time.Time) error

	// UsernameExists reports whether name is used by a principal or
	// reserved by an SSO mapping.
	UsernameExists(ctx context.Context, namespace, name string) (bool, error)
}

// GroupStore manages user classes and memberships.
type GroupStore interface {
	GetGroup(ctx context.Context, name string) (*models.UserClass, error)
	ListGroups(ctx context.Context) ([]*models.UserClass, error)
	CreateGroup(ctx context.Context, class *models.UserClass) (string, error)

	// GetPrincipalGroups returns the classes the principal belongs to,
	// ordered by name.
	GetPrincipalGroups(ctx context.Context, namespace, name string) ([]*models.UserClass, error)

	// ReconcileGroups makes the principal's memberships equal desired in
	// one transaction: missing memberships are added and every other
	// membership is removed.
	ReconcileGroups(ctx context.Context, namespace, name string, desired []string, opts ReconcileOptions) (*ReconcileResult, error)
}

// SSOMappingStore manages federation subject mappings.
type SSOMappingStore interface {
	// GetSSOMapping returns models.ErrMappingNotFound if absent.
	GetSSOMapping(ctx context.Context, subjectID string) (*models.SSOMapping, error)

	// CreateSSOIdentity stores the mapping together with its principal.
	// Either both rows are written or neither is. A conflicting subject
	// or username yields models.ErrDuplicateMapping.
	CreateSSOIdentity(ctx context.Context, m *models.SSOMapping, p *models.Principal) error
}

// Store is the full control plane persistence interface.
//
// Implementations must be safe for concurrent use.
type Store interface {
	PrincipalStore
	GroupStore
	SSOMappingStore

	Healthcheck(ctx context.Context) error
	Close() error
}

// ReconcileOptions tunes ReconcileGroups.
type ReconcileOptions struct {
	// CreateMissing creates user classes named in desired that do not
	// exist yet. Otherwise such names are reported in Unknown.
	CreateMissing bool
}

// ReconcileResult describes the changes made by ReconcileGroups.
type ReconcileResult struct {
	Added   []string
	Removed []string
	Unknown []string
}

// Changed reports whether any membership was written.
func (r *ReconcileResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

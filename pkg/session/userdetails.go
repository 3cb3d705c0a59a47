package session

import (
	"context"
	"fmt"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// DetailsStore reads and updates principal profile fields.
type DetailsStore interface {
	GetPrincipal(ctx context.Context, namespace, name string) (*models.Principal, error)
	UpdatePrincipalDetails(ctx context.Context, namespace, name string, d models.Details) (bool, error)
}

// UserDetailsConfig lists, per profile field, the Info properties to try
// in order.
type UserDetailsConfig struct {
	FirstName []string `mapstructure:"first_name" yaml:"first_name"`
	LastName  []string `mapstructure:"last_name" yaml:"last_name"`
	Email     []string `mapstructure:"email" yaml:"email"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *UserDetailsConfig) ApplyDefaults() {
	if len(c.FirstName) == 0 {
		c.FirstName = []string{auth.FirstName}
	}
	if len(c.LastName) == 0 {
		c.LastName = []string{auth.LastName}
	}
	if len(c.Email) == 0 {
		c.Email = []string{auth.Email}
	}
}

// UserDetails copies profile fields from the login into the principal
// record.
type UserDetails struct {
	cfg   UserDetailsConfig
	store DetailsStore
}

// NewUserDetails returns the step.
func NewUserDetails(cfg UserDetailsConfig, store DetailsStore) (*UserDetails, error) {
	cfg.ApplyDefaults()
	if store == nil {
		return nil, auth.Configuration("user details step: no principal store")
	}
	return &UserDetails{cfg: cfg, store: store}, nil
}

func (s *UserDetails) Name() string { return StepUserDetails }

func (s *UserDetails) Setup(ctx context.Context, res *auth.Result) error {
	info := res.Info
	p, err := s.store.GetPrincipal(ctx, info.Namespace(), info.Username())
	if err != nil {
		return fmt.Errorf("load principal: %w", err)
	}

	d := p.Details()
	pick(info, s.cfg.FirstName, &d.FirstName)
	pick(info, s.cfg.LastName, &d.LastName)
	pick(info, s.cfg.Email, &d.Email)

	changed, err := s.store.UpdatePrincipalDetails(ctx, info.Namespace(), info.Username(), d)
	if err != nil {
		return fmt.Errorf("update principal details: %w", err)
	}
	if changed {
		logger.InfoCtx(ctx, "Updated user details", logger.Username(info.Username()))
	}
	return nil
}

// pick sets *dst to the first candidate property info has.
func pick(info auth.Info, candidates []string, dst *string) {
	for _, c := range candidates {
		if v, ok := info.Get(c); ok {
			*dst = v
			return
		}
	}
}

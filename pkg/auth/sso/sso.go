// Package sso maps federated (SAML) identities to local principals.
//
// The identity provider has already verified the user by the time the
// strategy runs; the strategy only derives a stable subject identifier
// from the released attributes and maps it to a local username, creating
// one on first sight.
package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// SubjectPolicy selects the attribute that identifies a federated user.
type SubjectPolicy string

const (
	// PolicySharedToken requires the shared token attribute.
	PolicySharedToken SubjectPolicy = "shared_token"
	// PolicyTargetedID requires the targeted ID attribute.
	PolicyTargetedID SubjectPolicy = "targeted_id"
	// PolicyEither prefers the shared token and falls back to the
	// targeted ID.
	PolicyEither SubjectPolicy = "either"
)

const (
	defaultMaxUsernameLength = 20
	maxCandidates            = 100
)

// Attributes names the federation attributes read by the strategy. Each
// entry lists accepted names or OIDs, tried in order.
type Attributes struct {
	SharedToken []string `mapstructure:"shared_token" yaml:"shared_token"`
	TargetedID  []string `mapstructure:"targeted_id" yaml:"targeted_id"`
	FirstName   []string `mapstructure:"first_name" yaml:"first_name"`
	LastName    []string `mapstructure:"last_name" yaml:"last_name"`
	DisplayName []string `mapstructure:"display_name" yaml:"display_name"`
	Email       []string `mapstructure:"email" yaml:"email"`
	HomeOrg     []string `mapstructure:"home_org" yaml:"home_org"`
	Affiliation []string `mapstructure:"affiliation" yaml:"affiliation"`
}

// DefaultAttributes are the AAF/eduPerson attribute names and OIDs.
func DefaultAttributes() Attributes {
	return Attributes{
		SharedToken: []string{"auEduPersonSharedToken", "urn:oid:1.3.6.1.4.1.27856.1.2.5"},
		TargetedID:  []string{"eduPersonTargetedID", "urn:oid:1.3.6.1.4.1.5923.1.1.1.10"},
		FirstName:   []string{"givenName", "urn:oid:2.5.4.42"},
		LastName:    []string{"sn", "surname", "urn:oid:2.5.4.4"},
		DisplayName: []string{"displayName", "cn", "urn:oid:2.16.840.1.113730.3.1.241"},
		Email:       []string{"mail", "urn:oid:0.9.2342.19200300.100.1.3"},
		HomeOrg:     []string{"schacHomeOrganization", "urn:oid:1.3.6.1.4.1.25178.1.2.9"},
		Affiliation: []string{"eduPersonScopedAffiliation", "urn:oid:1.3.6.1.4.1.5923.1.1.1.9"},
	}
}

// Config configures the SSO strategy.
type Config struct {
	Policy            SubjectPolicy `mapstructure:"policy" yaml:"policy" validate:"omitempty,oneof=shared_token targeted_id either"`
	MaxUsernameLength int           `mapstructure:"max_username_length" yaml:"max_username_length" validate:"gte=0"`
	Attributes        Attributes    `mapstructure:"attributes" yaml:"attributes"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Policy == "" {
		c.Policy = PolicyEither
	}
	if c.MaxUsernameLength == 0 {
		c.MaxUsernameLength = defaultMaxUsernameLength
	}
	def := DefaultAttributes()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&c.Attributes.SharedToken, def.SharedToken)
	fill(&c.Attributes.TargetedID, def.TargetedID)
	fill(&c.Attributes.FirstName, def.FirstName)
	fill(&c.Attributes.LastName, def.LastName)
	fill(&c.Attributes.DisplayName, def.DisplayName)
	fill(&c.Attributes.Email, def.Email)
	fill(&c.Attributes.HomeOrg, def.HomeOrg)
	fill(&c.Attributes.Affiliation, def.Affiliation)
}

// Validate checks the subject policy.
func (c *Config) Validate() error {
	switch c.Policy {
	case PolicySharedToken, PolicyTargetedID, PolicyEither:
	default:
		return auth.Configuration("sso: unknown subject policy %q", c.Policy)
	}
	if c.MaxUsernameLength < 2 {
		return auth.Configuration("sso: max_username_length must be at least 2")
	}
	return nil
}

// Store is the persistence needed by the strategy.
type Store interface {
	GetSSOMapping(ctx context.Context, subjectID string) (*models.SSOMapping, error)
	CreateSSOIdentity(ctx context.Context, m *models.SSOMapping, p *models.Principal) error
	UsernameExists(ctx context.Context, namespace, name string) (bool, error)
}

// Strategy maps federated identities to local principals.
type Strategy struct {
	cfg       Config
	store     Store
	namespace string
}

// New returns an SSO strategy.
func New(cfg Config, store Store, namespace string) (*Strategy, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, auth.Configuration("sso strategy requires a store")
	}
	return &Strategy{cfg: cfg, store: store, namespace: namespace}, nil
}

func (s *Strategy) Type() auth.Type { return auth.TypeSSO }

// Subject returns the subject identifier selected by the policy.
func (s *Strategy) Subject(attrs map[string][]string) (string, bool) {
	switch s.cfg.Policy {
	case PolicySharedToken:
		return first(attrs, s.cfg.Attributes.SharedToken)
	case PolicyTargetedID:
		return first(attrs, s.cfg.Attributes.TargetedID)
	default:
		if v, ok := first(attrs, s.cfg.Attributes.SharedToken); ok {
			return v, true
		}
		return first(attrs, s.cfg.Attributes.TargetedID)
	}
}

// Authenticate resolves the federation subject to a local username. A
// missing subject attribute is an authentication failure.
func (s *Strategy) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Info, error) {
	subject, ok := s.Subject(creds.Attributes)
	if !ok {
		return nil, auth.Failed("identity provider released no subject attribute for policy %s", s.cfg.Policy)
	}

	m, err := s.store.GetSSOMapping(ctx, subject)
	switch {
	case errors.Is(err, models.ErrMappingNotFound):
		m, err = s.register(ctx, subject, creds.Attributes)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, auth.Backend(err)
	}

	if m.Namespace != s.namespace {
		return nil, auth.Failed("subject is mapped in namespace %q", m.Namespace)
	}
	return s.info(m, creds.Attributes), nil
}

// register creates the mapping for a first-time subject, trying
// successive username candidates until one is free.
func (s *Strategy) register(ctx context.Context, subject string, attrs map[string][]string) (*models.SSOMapping, error) {
	a := s.cfg.Attributes
	firstName, _ := first(attrs, a.FirstName)
	lastName, _ := first(attrs, a.LastName)
	display, _ := first(attrs, a.DisplayName)
	email, _ := first(attrs, a.Email)
	homeOrg, _ := first(attrs, a.HomeOrg)
	affiliation, _ := first(attrs, a.Affiliation)

	base := BaseUsername(homeOrg, firstName, lastName, display, subject, s.cfg.MaxUsernameLength)
	if base == "" {
		return nil, auth.Failed("cannot derive a username from the released attributes")
	}

	for n := 0; n < maxCandidates; n++ {
		name := Candidate(base, n, s.cfg.MaxUsernameLength)
		taken, err := s.store.UsernameExists(ctx, s.namespace, name)
		if err != nil {
			return nil, auth.Backend(err)
		}
		if taken {
			continue
		}

		m := &models.SSOMapping{
			SubjectID:   subject,
			Namespace:   s.namespace,
			Username:    name,
			HomeOrg:     homeOrg,
			Affiliation: affiliation,
		}
		p := &models.Principal{
			Namespace: s.namespace,
			Name:      name,
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
		}
		err = s.store.CreateSSOIdentity(ctx, m, p)
		if err == nil {
			logger.InfoCtx(ctx, "Registered federated identity",
				logger.Namespace(s.namespace), logger.Username(name), "home_org", homeOrg)
			return m, nil
		}
		if !errors.Is(err, models.ErrDuplicateMapping) {
			return nil, auth.Backend(err)
		}

		// Lost a race: either the same subject logged in concurrently or
		// another identity claimed this name.
		if existing, err := s.store.GetSSOMapping(ctx, subject); err == nil {
			return existing, nil
		}
	}
	return nil, auth.Backend(fmt.Errorf("no free username for %q after %d candidates", base, maxCandidates))
}

func (s *Strategy) info(m *models.SSOMapping, attrs map[string][]string) *auth.BasicInfo {
	a := s.cfg.Attributes
	info := auth.NewInfo(m.Namespace, m.Username).
		Set("subject", m.SubjectID).
		Set("home_org", m.HomeOrg).
		Set("affiliation", m.Affiliation)
	set := func(prop string, names []string) {
		if v, ok := first(attrs, names); ok {
			info.Set(prop, v)
		}
	}
	set(auth.FirstName, a.FirstName)
	set(auth.LastName, a.LastName)
	set(auth.DisplayName, a.DisplayName)
	set(auth.Email, a.Email)
	return info
}

// first returns the first non-empty value of any of names, matching
// attribute names case-insensitively.
func first(attrs map[string][]string, names []string) (string, bool) {
	for _, name := range names {
		for k, vals := range attrs {
			if !strings.EqualFold(k, name) {
				continue
			}
			for _, v := range vals {
				if v = strings.TrimSpace(v); v != "" {
					return v, true
				}
			}
		}
	}
	return "", false
}

var _ auth.Strategy = (*Strategy)(nil)

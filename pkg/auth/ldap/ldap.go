// Package ldap authenticates principals by binding to a directory server.
package ldap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/directory"
)

// Constraint requires Attribute of the bound entry to hold Value.
type Constraint struct {
	Attribute string `mapstructure:"attribute" yaml:"attribute" validate:"required"`
	Value     string `mapstructure:"value" yaml:"value"`
}

// Config configures the LDAP strategy.
type Config struct {
	Directory directory.Config `mapstructure:"directory" yaml:"directory"`

	// Constraints must all hold for the bound entry. Multi-valued
	// attributes satisfy a constraint when any value matches.
	Constraints []Constraint `mapstructure:"constraints" yaml:"constraints,omitempty" validate:"dive"`

	// UsernameAttribute holds the canonical login name. Default "uid".
	UsernameAttribute string `mapstructure:"username_attribute" yaml:"username_attribute"`

	// Properties maps Info property names to entry attributes. Missing
	// keys fall back to DefaultProperties.
	Properties map[string]string `mapstructure:"properties" yaml:"properties,omitempty"`
}

// DefaultProperties maps the well-known Info properties to
// inetOrgPerson/posixAccount attributes.
var DefaultProperties = map[string]string{
	auth.FirstName:     "givenName",
	auth.LastName:      "sn",
	auth.Email:         "mail",
	auth.DisplayName:   "displayName",
	auth.HomeDirectory: "homeDirectory",
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	c.Directory.ApplyDefaults()
	if c.UsernameAttribute == "" {
		c.UsernameAttribute = "uid"
	}
}

// Validate checks the connection parameters.
func (c *Config) Validate() error {
	if err := c.Directory.Validate(); err != nil {
		return auth.Configuration("ldap: %v", err)
	}
	for _, con := range c.Constraints {
		if con.Attribute == "" {
			return auth.Configuration("ldap: constraint without attribute")
		}
	}
	return nil
}

func (c *Config) property(name string) string {
	if attr, ok := c.Properties[name]; ok {
		return attr
	}
	return DefaultProperties[name]
}

// Strategy verifies passwords with a directory bind.
type Strategy struct {
	cfg       Config
	dialer    directory.Dialer
	store     auth.PrincipalEnsurer
	namespace string
}

// New returns an LDAP strategy. store may be nil, in which case no local
// principal is created on login.
func New(cfg Config, dialer directory.Dialer, store auth.PrincipalEnsurer, namespace string) (*Strategy, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = directory.NewDialer(cfg.Directory)
	}
	return &Strategy{cfg: cfg, dialer: dialer, store: store, namespace: namespace}, nil
}

func (s *Strategy) Type() auth.Type { return auth.TypeLdap }

// Authenticate locates the user entry, binds as it with the presented
// password and checks the configured constraints.
//
// Invalid credentials, unknown users and locked accounts are
// authentication failures. Other directory errors are backend errors.
func (s *Strategy) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Info, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		// An empty password would be an unauthenticated bind.
		return nil, auth.Failed("empty username or password")
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, auth.Backend(fmt.Errorf("dial directory: %w", err))
	}
	defer func() { _ = conn.Close() }()

	entry, err := s.bind(conn, username, creds.Password)
	if err != nil {
		return nil, err
	}

	for _, con := range s.cfg.Constraints {
		if !hasValue(entry, con.Attribute, con.Value) {
			return nil, auth.Failed("%s does not satisfy %s=%s", entry.DN, con.Attribute, con.Value)
		}
	}

	info := s.info(entry, username, creds.Password)
	logger.DebugCtx(ctx, "Directory bind succeeded", logger.DN(entry.DN), logger.Username(info.Username()))

	if s.store != nil {
		if _, err := auth.EnsureLocalPrincipal(ctx, s.store, info); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (s *Strategy) bind(conn directory.Conn, username, password string) (*goldap.Entry, error) {
	if s.cfg.Directory.UserDNTemplate != "" {
		dn := s.cfg.Directory.UserDN(username)
		if err := conn.Bind(dn, password); err != nil {
			return nil, classify(err, dn)
		}
		entry, err := directory.Lookup(conn, dn, nil)
		if err != nil {
			return nil, classify(err, dn)
		}
		return entry, nil
	}

	entry, err := directory.FindOne(conn, s.cfg.Directory.BaseDN, s.cfg.Directory.UserFilterFor(username), nil)
	if err != nil {
		return nil, classify(err, username)
	}
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, classify(err, entry.DN)
	}
	return entry, nil
}

func classify(err error, subject string) error {
	switch {
	case errors.Is(err, directory.ErrNoSuchEntry):
		return auth.Failed("no directory entry for %s", subject)
	case errors.Is(err, directory.ErrAmbiguous):
		return auth.Failed("several directory entries match %s", subject)
	case directory.IsAuthFailure(err):
		return auth.Failed("directory rejected %s: %v", subject, err)
	default:
		return auth.Backend(fmt.Errorf("directory %s: %w", subject, err))
	}
}

func hasValue(entry *goldap.Entry, attr, want string) bool {
	for _, v := range entry.GetEqualFoldAttributeValues(attr) {
		if v == want {
			return true
		}
	}
	return false
}

func (s *Strategy) info(entry *goldap.Entry, username, password string) *Info {
	name := username
	if v := entry.GetEqualFoldAttributeValue(s.cfg.UsernameAttribute); v != "" {
		name = v
	}

	basic := auth.NewInfo(s.namespace, name).SetPassword(password)
	for _, a := range entry.Attributes {
		basic.Set(a.Name, a.Values...)
	}
	for _, prop := range []string{auth.FirstName, auth.LastName, auth.Email, auth.DisplayName, auth.HomeDirectory} {
		if attr := s.cfg.property(prop); attr != "" {
			if vals := entry.GetEqualFoldAttributeValues(attr); len(vals) > 0 {
				basic.Set(prop, vals...)
			}
		}
	}
	if ou := OrganizationalUnit(entry.DN); ou != "" {
		basic.Set(auth.LdapOU, ou)
	}
	basic.Set("dn", entry.DN)
	return &Info{BasicInfo: basic, entry: entry}
}

// OrganizationalUnit returns the value of the first ou RDN of dn.
func OrganizationalUnit(dn string) string {
	parsed, err := goldap.ParseDN(dn)
	if err != nil {
		return ""
	}
	for _, rdn := range parsed.RDNs {
		for _, a := range rdn.Attributes {
			if strings.EqualFold(a.Type, "ou") {
				return a.Value
			}
		}
	}
	return ""
}

// Info is the principal info of an LDAP login. It exposes the bound
// entry to provisioning steps.
type Info struct {
	*auth.BasicInfo
	entry *goldap.Entry
}

// Entry returns the directory entry read at login.
func (i *Info) Entry() *goldap.Entry { return i.entry }

var (
	_ auth.Strategy       = (*Strategy)(nil)
	_ auth.DirectoryEntry = (*Info)(nil)
)

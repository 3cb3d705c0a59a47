// Package directory wraps the LDAP client used by the authentication
// strategies and provisioning steps.
package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// DefaultTimeout bounds every directory operation when none is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoSuchEntry is returned when a search matches nothing.
	ErrNoSuchEntry = errors.New("directory entry not found")

	// ErrAmbiguous is returned when a search expected to match a single
	// entry matches several.
	ErrAmbiguous = errors.New("directory search matched more than one entry")
)

// Conn is the subset of *ldap.Conn used by this module.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Close() error
}

// Dialer opens directory connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Config describes how to reach and query a directory server.
type Config struct {
	URL                string        `mapstructure:"url" yaml:"url" validate:"required"`
	BaseDN             string        `mapstructure:"base_dn" yaml:"base_dn" validate:"required"`
	BindDN             string        `mapstructure:"bind_dn" yaml:"bind_dn,omitempty"`
	BindPassword       string        `mapstructure:"bind_password" yaml:"bind_password,omitempty"`
	UserFilter         string        `mapstructure:"user_filter" yaml:"user_filter"`
	UserDNTemplate     string        `mapstructure:"user_dn_template" yaml:"user_dn_template,omitempty"`
	StartTLS           bool          `mapstructure:"start_tls" yaml:"start_tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.UserFilter == "" {
		c.UserFilter = "(uid=%s)"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks that the connection parameters are present.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("directory url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid directory url: %w", err)
	}
	if u.Scheme != "ldap" && u.Scheme != "ldaps" {
		return fmt.Errorf("unsupported directory url scheme %q", u.Scheme)
	}
	if c.BaseDN == "" {
		return fmt.Errorf("directory base_dn is required")
	}
	if !strings.Contains(c.UserFilter, "%s") {
		return fmt.Errorf("directory user_filter must contain %%s")
	}
	if c.UserDNTemplate != "" && !strings.Contains(c.UserDNTemplate, "%s") {
		return fmt.Errorf("directory user_dn_template must contain %%s")
	}
	return nil
}

// UserFilterFor returns the search filter selecting username.
func (c *Config) UserFilterFor(username string) string {
	return strings.ReplaceAll(c.UserFilter, "%s", ldap.EscapeFilter(username))
}

// UserDN returns the DN built from UserDNTemplate for username.
func (c *Config) UserDN(username string) string {
	return strings.ReplaceAll(c.UserDNTemplate, "%s", ldap.EscapeDN(username))
}

// timeout returns the effective timeout for an operation under ctx.
func (c *Config) timeout(ctx context.Context) time.Duration {
	t := c.Timeout
	if t <= 0 {
		t = DefaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < t {
			t = left
		}
	}
	return t
}

// URLDialer dials the configured URL.
type URLDialer struct {
	cfg Config
}

// NewDialer returns a Dialer for cfg.
func NewDialer(cfg Config) *URLDialer {
	cfg.ApplyDefaults()
	return &URLDialer{cfg: cfg}
}

// Dial connects, optionally upgrading with StartTLS, and binds the service
// account when one is configured.
func (d *URLDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.cfg.timeout(ctx)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory url: %w", err)
	}
	tlsConfig := &tls.Config{
		ServerName:         u.Hostname(),
		InsecureSkipVerify: d.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for lab directories with self-signed certs
		MinVersion:         tls.VersionTLS12,
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: timeout})}
	if u.Scheme == "ldaps" {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}

	l, err := ldap.DialURL(d.cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	l.SetTimeout(timeout)

	if d.cfg.StartTLS && u.Scheme == "ldap" {
		if err := l.StartTLS(tlsConfig); err != nil {
			l.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}

	c := &conn{l: l}
	if d.cfg.BindDN != "" {
		if err := c.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("service bind: %w", err)
		}
	}
	return c, nil
}

type conn struct {
	l *ldap.Conn
}

func (c *conn) Bind(username, password string) error { return c.l.Bind(username, password) }

func (c *conn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.l.Search(req)
}

func (c *conn) Add(req *ldap.AddRequest) error       { return c.l.Add(req) }
func (c *conn) Modify(req *ldap.ModifyRequest) error { return c.l.Modify(req) }

func (c *conn) Close() error {
	c.l.Close()
	return nil
}

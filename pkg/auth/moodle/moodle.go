// Package moodle authenticates principals against a Moodle user table.
package moodle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/lms"
)

// Config configures the Moodle strategy.
type Config struct {
	LMS lms.Config `mapstructure:"lms" yaml:"lms"`

	// PasswordSalt is Moodle's $CFG->passwordsaltmain.
	PasswordSalt string `mapstructure:"password_salt" yaml:"password_salt,omitempty"`

	// AlternateSalts are the $CFG->passwordsaltaltN values still in use.
	AlternateSalts []string `mapstructure:"alternate_salts" yaml:"alternate_salts,omitempty"`

	// UsernamePrefix makes Moodle usernames unique among local principals.
	// The local name is the prefix followed by the Moodle username.
	UsernamePrefix string `mapstructure:"username_prefix" yaml:"username_prefix,omitempty"`
}

func (c *Config) salts() []string {
	return append([]string{c.PasswordSalt}, c.AlternateSalts...)
}

// UserFinder is the lms capability needed by the strategy.
type UserFinder interface {
	UserByUsername(ctx context.Context, username string) (*lms.User, error)
}

// Strategy verifies passwords stored in Moodle.
type Strategy struct {
	cfg       Config
	users     UserFinder
	store     auth.PrincipalEnsurer
	namespace string
}

// New returns a Moodle strategy. store may be nil.
func New(cfg Config, users UserFinder, store auth.PrincipalEnsurer, namespace string) (*Strategy, error) {
	if users == nil {
		return nil, auth.Configuration("moodle strategy requires an lms connection")
	}
	return &Strategy{cfg: cfg, users: users, store: store, namespace: namespace}, nil
}

func (s *Strategy) Type() auth.Type { return auth.TypeMoodle }

// lookup finds the Moodle user for a login name. The name is tried as
// typed first; a name carrying the configured prefix is retried without it
// only when the typed form does not exist in Moodle.
func (s *Strategy) lookup(ctx context.Context, login string) (*lms.User, string, error) {
	u, err := s.users.UserByUsername(ctx, login)
	if !errors.Is(err, lms.ErrUserNotFound) {
		return u, login, err
	}
	p := s.cfg.UsernamePrefix
	if p == "" || !strings.HasPrefix(login, p) || len(login) == len(p) {
		return nil, login, err
	}
	stripped := strings.TrimPrefix(login, p)
	u, err = s.users.UserByUsername(ctx, stripped)
	return u, stripped, err
}

// Authenticate requires exactly one confirmed, active Moodle user whose
// stored hash matches the password.
func (s *Strategy) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Info, error) {
	login := strings.TrimSpace(creds.Username)
	if login == "" || creds.Password == "" {
		return nil, auth.Failed("empty username or password")
	}
	u, lmsName, err := s.lookup(ctx, login)
	switch {
	case errors.Is(err, lms.ErrUserNotFound), errors.Is(err, lms.ErrAmbiguousUser):
		return nil, auth.Failed("moodle user %s: %v", lmsName, err)
	case err != nil:
		return nil, auth.Backend(err)
	}

	if !u.Active() {
		return nil, auth.Failed("moodle user %s is unconfirmed, deleted or suspended", lmsName)
	}

	ok, err := CheckPassword(u.Password, creds.Password, s.cfg.salts())
	if errors.Is(err, ErrUnknownFormat) {
		logger.WarnCtx(ctx, "Moodle password hash has an unrecognized format",
			logger.Username(lmsName), "moodle_user_id", u.ID)
		return nil, auth.Failed("moodle user %s: %v", lmsName, err)
	}
	if !ok {
		return nil, auth.Failed("password mismatch for moodle user %s", lmsName)
	}

	info := &Info{
		BasicInfo: auth.NewInfo(s.namespace, s.cfg.UsernamePrefix+lmsName).
			Set(auth.FirstName, u.FirstName).
			Set(auth.LastName, u.LastName).
			Set(auth.Email, u.Email).
			Set(auth.DisplayName, strings.TrimSpace(u.FirstName+" "+u.LastName)).
			Set("id", strconv.FormatInt(u.ID, 10)).
			Set("auth", u.Auth).
			SetPassword(creds.Password),
		userID:  u.ID,
		lmsName: lmsName,
	}

	if s.store != nil {
		if _, err := auth.EnsureLocalPrincipal(ctx, s.store, info); err != nil {
			return nil, fmt.Errorf("moodle login: %w", err)
		}
	}
	return info, nil
}

// Info is the principal info of a Moodle login.
type Info struct {
	*auth.BasicInfo
	userID  int64
	lmsName string
}

func (i *Info) LMSUserID() int64    { return i.userID }
func (i *Info) LMSUsername() string { return i.lmsName }

var (
	_ auth.Strategy   = (*Strategy)(nil)
	_ auth.LMSAccount = (*Info)(nil)
)

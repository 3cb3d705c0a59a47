package config

import (
	"slices"

	ldapauth "github.com/marmos91/labgate/pkg/auth/ldap"
	"github.com/marmos91/labgate/pkg/auth/moodle"
)

const redactedValue = "********"

// Redacted returns a copy of cfg with every password, salt and signing
// secret masked. cfg is not modified.
func Redacted(cfg *Config) *Config {
	c := *cfg

	c.Database.Postgres.Password = mask(c.Database.Postgres.Password)
	c.Token.Secret = mask(c.Token.Secret)
	c.Throttle.Password = mask(c.Throttle.Password)

	if c.Session.Directory != nil {
		d := *c.Session.Directory
		d.BindPassword = mask(d.BindPassword)
		c.Session.Directory = &d
	}

	c.Auth.Ldap = redactLdap(c.Auth.Ldap)
	c.Auth.Moodle = redactMoodle(c.Auth.Moodle)
	c.Auth.Institutions = slices.Clone(c.Auth.Institutions)
	for i := range c.Auth.Institutions {
		c.Auth.Institutions[i].Ldap = redactLdap(c.Auth.Institutions[i].Ldap)
		c.Auth.Institutions[i].Moodle = redactMoodle(c.Auth.Institutions[i].Moodle)
	}
	return &c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redactedValue
}

func redactLdap(cfg *ldapauth.Config) *ldapauth.Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.Directory.BindPassword = mask(c.Directory.BindPassword)
	return &c
}

func redactMoodle(cfg *moodle.Config) *moodle.Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.PasswordSalt = mask(c.PasswordSalt)
	c.AlternateSalts = make([]string, len(cfg.AlternateSalts))
	for i, s := range cfg.AlternateSalts {
		c.AlternateSalts[i] = mask(s)
	}
	c.LMS.Database.Postgres.Password = mask(c.LMS.Database.Postgres.Password)
	return &c
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ldapauth "github.com/marmos91/labgate/pkg/auth/ldap"
	"github.com/marmos91/labgate/pkg/auth/moodle"
)

func TestRedacted(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Token.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.Ldap = &ldapauth.Config{}
	cfg.Auth.Ldap.Directory.BindPassword = "bindpw"
	cfg.Auth.Institutions = []InstitutionConfig{{
		Namespace: "partner",
		Moodle:    &moodle.Config{PasswordSalt: "salt", AlternateSalts: []string{"old"}},
	}}

	r := Redacted(cfg)

	assert.Equal(t, redactedValue, r.Token.Secret)
	assert.Equal(t, redactedValue, r.Auth.Ldap.Directory.BindPassword)
	assert.Equal(t, redactedValue, r.Auth.Institutions[0].Moodle.PasswordSalt)
	assert.Equal(t, []string{redactedValue}, r.Auth.Institutions[0].Moodle.AlternateSalts)
	assert.Empty(t, r.Throttle.Password, "unset secrets stay empty")

	// The source configuration is untouched.
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Token.Secret)
	assert.Equal(t, "bindpw", cfg.Auth.Ldap.Directory.BindPassword)
	assert.Equal(t, "salt", cfg.Auth.Institutions[0].Moodle.PasswordSalt)
	assert.Equal(t, []string{"old"}, cfg.Auth.Institutions[0].Moodle.AlternateSalts)
}

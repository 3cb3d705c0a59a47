package moodle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/lms/lmstest"
)

const salt = "site-salt"

func seed(t *testing.T) *lmstest.DB {
	t.Helper()
	db := lmstest.New(t)
	db.AddUser(lms.User{ID: 7, Username: "alice", Confirmed: true, Password: saltedMD5("password", salt),
		FirstName: "Alice", LastName: "Liddell", Email: "alice@uni.edu", Auth: "manual"})
	db.AddUser(lms.User{Username: "unconfirmed", Confirmed: false, Password: saltedMD5("password", salt)})
	db.AddUser(lms.User{Username: "deleted", Confirmed: true, Deleted: true, Password: saltedMD5("password", salt)})
	db.AddUser(lms.User{Username: "suspended", Confirmed: true, Suspended: true, Password: saltedMD5("password", salt)})
	db.AddUser(lms.User{Username: "sso", Confirmed: true, Password: "not cached"})
	return db
}

func TestAuthenticate(t *testing.T) {
	db := seed(t)
	s, err := New(Config{PasswordSalt: salt}, db.Client(), nil, "uni")
	require.NoError(t, err)

	info, err := s.Authenticate(context.Background(), auth.Credentials{Username: "alice", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username())
	first, _ := info.Get(auth.FirstName)
	assert.Equal(t, "Alice", first)

	acct, ok := info.(auth.LMSAccount)
	require.True(t, ok)
	assert.Equal(t, int64(7), acct.LMSUserID())
	assert.Equal(t, "alice", acct.LMSUsername())
}

func TestAuthenticationFailures(t *testing.T) {
	db := seed(t)
	s, err := New(Config{PasswordSalt: salt}, db.Client(), nil, "uni")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "Password"},
		{"unknown user", "bob", "password"},
		{"unconfirmed", "unconfirmed", "password"},
		{"deleted", "deleted", "password"},
		{"suspended", "suspended", "password"},
		{"unrecognized hash", "sso", "not cached"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authenticate(context.Background(), auth.Credentials{Username: tt.username, Password: tt.password})
			assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
		})
	}
}

func TestUsernamePrefix(t *testing.T) {
	db := seed(t)
	s, err := New(Config{PasswordSalt: salt, UsernamePrefix: "m_"}, db.Client(), nil, "uni")
	require.NoError(t, err)

	for _, login := range []string{"alice", "m_alice"} {
		info, err := s.Authenticate(context.Background(), auth.Credentials{Username: login, Password: "password"})
		require.NoError(t, err, login)
		assert.Equal(t, "m_alice", info.Username())
		assert.Equal(t, "alice", info.(auth.LMSAccount).LMSUsername())
	}

	_, err = s.Authenticate(context.Background(), auth.Credentials{Username: "m_", Password: "password"})
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
}

func TestUsernamePrefixOwnedByMoodleUser(t *testing.T) {
	db := seed(t)
	db.AddUser(lms.User{ID: 11, Username: "m_mary", Confirmed: true, Password: saltedMD5("secret", salt)})
	s, err := New(Config{PasswordSalt: salt, UsernamePrefix: "m_"}, db.Client(), nil, "uni")
	require.NoError(t, err)

	info, err := s.Authenticate(context.Background(), auth.Credentials{Username: "m_mary", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "m_m_mary", info.Username())
	assert.Equal(t, "m_mary", info.(auth.LMSAccount).LMSUsername())
	assert.Equal(t, int64(11), info.(auth.LMSAccount).LMSUserID())

	// mary herself does not exist in Moodle
	_, err = s.Authenticate(context.Background(), auth.Credentials{Username: "mary", Password: "secret"})
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
}

type brokenLMS struct{}

func (brokenLMS) UserByUsername(context.Context, string) (*lms.User, error) {
	return nil, errors.New("connection reset by peer")
}

func TestBackendError(t *testing.T) {
	s, err := New(Config{}, brokenLMS{}, nil, "uni")
	require.NoError(t, err)

	_, err = s.Authenticate(context.Background(), auth.Credentials{Username: "alice", Password: "password"})
	assert.ErrorIs(t, err, auth.ErrBackendUnavailable)
}

func TestLocalPrincipalCreated(t *testing.T) {
	db := seed(t)
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "labgate.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s, err := New(Config{PasswordSalt: salt, UsernamePrefix: "m_"}, db.Client(), st, "uni")
	require.NoError(t, err)
	_, err = s.Authenticate(context.Background(), auth.Credentials{Username: "alice", Password: "password"})
	require.NoError(t, err)

	p, err := st.GetPrincipal(context.Background(), "uni", "m_alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@uni.edu", p.Email)
}

func TestNewRequiresLMS(t *testing.T) {
	_, err := New(Config{}, nil, nil, "uni")
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

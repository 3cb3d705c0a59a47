package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/models"
	"github.com/marmos91/labgate/pkg/controlplane/store"
)

func newStore(t *testing.T) *store.GORMStore {
	t.Helper()
	s, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "labgate.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addPrincipal(t *testing.T, s *store.GORMStore, name, password string, allowed bool) {
	t.Helper()
	p := &models.Principal{
		Namespace:   "uni",
		Name:        name,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       name + "@example.edu",
		AuthAllowed: allowed,
	}
	p.SetPassword(password)
	_, err := s.CreatePrincipal(context.Background(), p)
	require.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	s := newStore(t)
	addPrincipal(t, s, "alice", "correct horse", true)
	addPrincipal(t, s, "bob", "hunter2", false)

	strategy, err := New(s, "uni")
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("correct password", func(t *testing.T) {
		info, err := strategy.Authenticate(ctx, auth.Credentials{Username: "alice", Password: "correct horse"})
		require.NoError(t, err)
		assert.Equal(t, "alice", info.Username())
		assert.Equal(t, "uni", info.Namespace())
		email, _ := info.Get(auth.Email)
		assert.Equal(t, "alice@example.edu", email)
		display, _ := info.Get(auth.DisplayName)
		assert.Equal(t, "Ada Lovelace", display)
		pw, ok := info.Password()
		assert.True(t, ok)
		assert.Equal(t, "correct horse", pw)
	})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "Correct horse"},
		{"unknown principal", "carol", "anything"},
		{"auth not allowed with right password", "bob", "hunter2"},
		{"auth not allowed with wrong password", "bob", "nope"},
		{"empty password", "alice", ""},
		{"empty username", "", "correct horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := strategy.Authenticate(ctx, auth.Credentials{Username: tt.username, Password: tt.password})
			assert.Nil(t, info)
			assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
		})
	}
}

func TestOtherNamespaceIsolated(t *testing.T) {
	s := newStore(t)
	addPrincipal(t, s, "alice", "pw", true)

	strategy, err := New(s, "other")
	require.NoError(t, err)
	_, err = strategy.Authenticate(context.Background(), auth.Credentials{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
}

func TestStoreErrorIsBackendError(t *testing.T) {
	s := newStore(t)
	strategy, err := New(s, "uni")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = strategy.Authenticate(context.Background(), auth.Credentials{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrBackendUnavailable)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, "uni")
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

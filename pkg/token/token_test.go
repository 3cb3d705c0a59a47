package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-must-be-32-chars!"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{Secret: testSecret})
	require.NoError(t, err)
	return iss
}

func TestNewIssuer(t *testing.T) {
	t.Run("ShortSecret", func(t *testing.T) {
		_, err := NewIssuer(Config{Secret: "short"})
		assert.ErrorIs(t, err, ErrInvalidSecretLength)
	})

	t.Run("Defaults", func(t *testing.T) {
		iss := newTestIssuer(t)
		assert.Equal(t, "labgate", iss.config.Issuer)
		assert.Equal(t, 8*time.Hour, iss.config.SessionTTL)
		assert.Equal(t, 7*24*time.Hour, iss.config.RefreshTTL)
	})
}

func TestIssueAndValidate(t *testing.T) {
	iss := newTestIssuer(t)

	pair, err := iss.Issue(Subject{Namespace: "uni", Username: "jdoe", Strategy: "ldap", Groups: []string{"lab-a"}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(8*3600), pair.ExpiresIn)

	claims, err := iss.ValidateSession(pair.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "uni", claims.Namespace)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, "uni/jdoe", claims.Subject)
	assert.True(t, claims.IsSession())
	assert.True(t, claims.HasGroup("lab-a"))
	assert.False(t, claims.HasGroup("lab-b"))

	_, err = iss.ValidateSession(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestValidateRejectsTampering(t *testing.T) {
	iss := newTestIssuer(t)
	pair, err := iss.Issue(Subject{Namespace: "uni", Username: "jdoe"})
	require.NoError(t, err)

	other, err := NewIssuer(Config{Secret: "another-secret-key-of-32-chars!!"})
	require.NoError(t, err)
	_, err = other.Validate(pair.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	iss := newTestIssuer(t)
	issued := time.Now().Add(-24 * time.Hour)
	iss.now = func() time.Time { return issued }

	pair, err := iss.Issue(Subject{Namespace: "uni", Username: "jdoe"})
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Validate(pair.SessionToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefresh(t *testing.T) {
	iss := newTestIssuer(t)
	pair, err := iss.Issue(Subject{Namespace: "uni", Username: "jdoe", Groups: []string{"g"}})
	require.NoError(t, err)

	_, err = iss.Refresh(pair.SessionToken)
	assert.ErrorIs(t, err, ErrWrongKind)

	next, err := iss.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	claims, err := iss.ValidateSession(next.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, claims.Groups)
}

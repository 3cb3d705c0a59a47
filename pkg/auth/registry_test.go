package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFactory(s Strategy) Factory {
	return func(string) (Strategy, error) { return s, nil }
}

func TestRegistryBuildOrder(t *testing.T) {
	r := NewRegistry()
	db := &fakeStrategy{typ: TypeDatabase}
	ldap := &fakeStrategy{typ: TypeLdap}
	r.Register(TypeDatabase, staticFactory(db))
	r.Register(TypeLdap, staticFactory(ldap))

	got, err := r.Build("uni", []string{"Ldap", "Database"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, ldap, got[0])
	assert.Same(t, db, got[1])
}

func TestRegistryInstitutionOverride(t *testing.T) {
	r := NewRegistry()
	generic := &fakeStrategy{typ: TypeLdap}
	special := &fakeStrategy{typ: TypeLdap}
	r.Register(TypeLdap, staticFactory(generic))
	r.RegisterInstitution("uts", TypeLdap, staticFactory(special))

	got, err := r.Build("uts", []string{"Ldap"})
	require.NoError(t, err)
	assert.Same(t, special, got[0])

	got, err = r.Build("uq", []string{"Ldap"})
	require.NoError(t, err)
	assert.Same(t, generic, got[0])
}

func TestRegistryFactoryReceivesNamespace(t *testing.T) {
	r := NewRegistry()
	var seen string
	r.Register(TypeDatabase, func(ns string) (Strategy, error) {
		seen = ns
		return &fakeStrategy{typ: TypeDatabase}, nil
	})

	_, err := r.Build("uni", []string{"Database"})
	require.NoError(t, err)
	assert.Equal(t, "uni", seen)
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(TypeDatabase, staticFactory(&fakeStrategy{typ: TypeDatabase}))
	r.Register(TypeLdap, func(string) (Strategy, error) {
		return nil, errors.New("ldap url missing")
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := r.Build("uni", nil)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("unknown type fails fast", func(t *testing.T) {
		_, err := r.Build("uni", []string{"Database", "Radius"})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("type without factory", func(t *testing.T) {
		_, err := r.Build("uni", []string{"Moodle"})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("failing factory is skipped", func(t *testing.T) {
		got, err := r.Build("uni", []string{"Ldap", "Database"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, TypeDatabase, got[0].Type())
	})

	t.Run("nothing constructible", func(t *testing.T) {
		_, err := r.Build("uni", []string{"Ldap"})
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

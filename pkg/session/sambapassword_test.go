package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/directory/directorytest"
	"github.com/marmos91/labgate/pkg/samba"
	"github.com/marmos91/labgate/pkg/scheduler"
)

type fakeQueue struct {
	status scheduler.QueueStatus
	err    error
	asked  []string
}

func (f *fakeQueue) IsUserInQueue(_ context.Context, principal string) (scheduler.QueueStatus, error) {
	f.asked = append(f.asked, principal)
	return f.status, f.err
}

const jdoeDN = "uid=jdoe,ou=students,ou=people,dc=lab,dc=edu"

func newSambaFixture(t *testing.T, storedPassword string, q *fakeQueue) (*directorytest.Server, *SambaPassword) {
	t.Helper()
	srv := directorytest.NewServer()
	h := samba.HashPassword(storedPassword)
	srv.Put(jdoeDN, map[string][]string{
		"objectClass":     {"sambaSamAccount"},
		"uid":             {"jdoe"},
		"sambaLMPassword": {h.LM},
		"sambaNTPassword": {h.NT},
	})
	step, err := NewSambaPassword(directory.Config{URL: "ldap://unused", BaseDN: "ou=people,dc=lab,dc=edu"}, srv, q)
	require.NoError(t, err)
	return srv, step
}

func ldapLogin(password string) *auth.Result {
	return result(auth.TypeLdap, auth.NewInfo("uni", "jdoe").SetPassword(password))
}

func TestSambaPasswordNoopWhenHashesMatch(t *testing.T) {
	q := &fakeQueue{}
	srv, step := newSambaFixture(t, "same", q)

	require.NoError(t, step.Setup(context.Background(), ldapLogin("same")))
	assert.Zero(t, srv.Modifies)
	assert.Empty(t, q.asked, "scheduler is only consulted before a write")
}

func TestSambaPasswordRestoresHashes(t *testing.T) {
	q := &fakeQueue{}
	srv, step := newSambaFixture(t, "batch-password", q)

	require.NoError(t, step.Setup(context.Background(), ldapLogin("mine")))
	assert.Equal(t, 1, srv.Modifies)
	assert.Equal(t, []string{"uni:jdoe"}, q.asked)

	e := srv.Entry(jdoeDN)
	want := samba.HashPassword("mine")
	assert.Equal(t, want.LM, e.GetAttributeValue("sambaLMPassword"))
	assert.Equal(t, want.NT, e.GetAttributeValue("sambaNTPassword"))
	assert.NotEmpty(t, e.GetAttributeValue("sambaPwdLastSet"))
}

func TestSambaPasswordSkipsUserInSession(t *testing.T) {
	q := &fakeQueue{status: scheduler.QueueStatus{InSession: true}}
	srv, step := newSambaFixture(t, "batch-password", q)

	require.NoError(t, step.Setup(context.Background(), ldapLogin("mine")))
	assert.Zero(t, srv.Modifies)
}

func TestSambaPasswordSchedulerError(t *testing.T) {
	q := &fakeQueue{err: errors.New("connection refused")}
	srv, step := newSambaFixture(t, "batch-password", q)

	assert.Error(t, step.Setup(context.Background(), ldapLogin("mine")))
	assert.Zero(t, srv.Modifies)
}

func TestSambaPasswordUnknownAccount(t *testing.T) {
	_, step := newSambaFixture(t, "x", &fakeQueue{})
	err := step.Setup(context.Background(), result(auth.TypeLdap, auth.NewInfo("uni", "ghost").SetPassword("x")))
	assert.ErrorIs(t, err, directory.ErrNoSuchEntry)
}

package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/models"
	"github.com/marmos91/labgate/pkg/controlplane/store"
)

type ldapInfo struct {
	*auth.BasicInfo
	entry *ldap.Entry
}

func (i *ldapInfo) Entry() *ldap.Entry { return i.entry }

type lmsInfo struct {
	*auth.BasicInfo
	id int64
}

func (i *lmsInfo) LMSUserID() int64    { return i.id }
func (i *lmsInfo) LMSUsername() string { return i.Username() }

func result(t auth.Type, info auth.Info) *auth.Result {
	return &auth.Result{Success: true, Type: t, Info: info}
}

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

func seedPrincipal(t *testing.T, s *store.GORMStore, name string, groups ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.CreatePrincipal(ctx, &models.Principal{Namespace: "uni", Name: name, FirstName: "Old", Email: "old@example.edu"})
	require.NoError(t, err)
	if len(groups) > 0 {
		_, err = s.ReconcileGroups(ctx, "uni", name, groups, store.ReconcileOptions{})
		require.NoError(t, err)
	}
}

func seedGroups(t *testing.T, s *store.GORMStore, names ...string) {
	t.Helper()
	for _, n := range names {
		_, err := s.CreateGroup(context.Background(), &models.UserClass{Name: n, Active: true})
		require.NoError(t, err)
	}
}

func groupNames(t *testing.T, s *store.GORMStore, name string) []string {
	t.Helper()
	classes, err := s.GetPrincipalGroups(context.Background(), "uni", name)
	require.NoError(t, err)
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Name)
	}
	return out
}

type call struct {
	name string
	args []string
}

// fakeRunner records invocations and returns canned output.
type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	out   []byte
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	return f.out, f.err
}

type staticUIDs []int

func (s staticUIDs) UsedUIDs(context.Context) ([]int, error) { return s, nil }

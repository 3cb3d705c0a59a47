package lms_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/lms/lmstest"
)

func TestUserByUsername(t *testing.T) {
	db := lmstest.New(t)
	db.AddUser(lms.User{Username: "alice", Confirmed: true, FirstName: "Alice"})
	db.AddUser(lms.User{Username: "twin", Confirmed: true})
	db.AddUser(lms.User{Username: "twin", Confirmed: true})
	c := db.Client()
	ctx := context.Background()

	u, err := c.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FirstName)
	assert.True(t, u.Active())

	_, err = c.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, lms.ErrUserNotFound)

	_, err = c.UserByUsername(ctx, "twin")
	assert.ErrorIs(t, err, lms.ErrAmbiguousUser)
}

func TestUserActive(t *testing.T) {
	tests := []struct {
		user lms.User
		want bool
	}{
		{lms.User{Confirmed: true}, true},
		{lms.User{Confirmed: false}, false},
		{lms.User{Confirmed: true, Deleted: true}, false},
		{lms.User{Confirmed: true, Suspended: true}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.user.Active(), "%+v", tt.user)
	}
}

func TestEnrolledCourses(t *testing.T) {
	db := lmstest.New(t)
	u := db.AddUser(lms.User{Username: "alice", Confirmed: true})
	cs101 := db.AddCourse(lms.Course{Category: 3, ShortName: "CS101", FullName: "Intro to Computing"})
	ee101 := db.AddCourse(lms.Course{Category: 4, ShortName: "EE101", FullName: "Circuits"})
	db.AddCourse(lms.Course{Category: 4, ShortName: "EE201", FullName: "Signals"})
	db.Enrol(u.ID, cs101.ID, 0)
	db.Enrol(u.ID, ee101.ID, 1)

	courses, err := db.Client().EnrolledCourses(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS101", courses[0].ShortName)
	assert.Equal(t, int64(3), courses[0].Category)
}

func TestCategoryPath(t *testing.T) {
	cats := map[int64]lms.Category{
		1: {ID: 1, Name: "Faculty of Engineering", Parent: 0},
		2: {ID: 2, Name: "Electrical", Parent: 1},
		3: {ID: 3, Name: "Labs", Parent: 2},
		7: {ID: 7, Name: "Loop A", Parent: 8},
		8: {ID: 8, Name: "Loop B", Parent: 7},
	}

	names := func(path []lms.Category) []string {
		var out []string
		for _, c := range path {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Labs", "Electrical", "Faculty of Engineering"}, names(lms.CategoryPath(cats, 3)))
	assert.Equal(t, []string{"Loop A", "Loop B"}, names(lms.CategoryPath(cats, 7)))
	assert.Empty(t, lms.CategoryPath(cats, 42))
	assert.Empty(t, lms.CategoryPath(cats, 0))
}

func TestCategories(t *testing.T) {
	db := lmstest.New(t)
	db.AddCategory(1, "Science", 0)
	db.AddCategory(2, "Physics", 1)

	cats, err := db.Client().Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 2)
	assert.Equal(t, int64(1), cats[2].Parent)
}

func TestConfig(t *testing.T) {
	cfg := lms.Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, "mdl_", cfg.TablePrefix)
	assert.Equal(t, lms.DefaultTimeout, cfg.Timeout)
	assert.Error(t, cfg.Validate())

	cfg.Database.Type = store.DatabaseTypeSQLite
	assert.Error(t, cfg.Validate())

	cfg.Database.SQLite.Path = "/var/lib/moodle.db"
	assert.NoError(t, cfg.Validate())
}

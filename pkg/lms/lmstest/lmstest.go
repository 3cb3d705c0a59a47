// Package lmstest builds throwaway Moodle databases for tests.
package lmstest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/lms"
)

// Prefix is the table prefix used by DB.
const Prefix = "mdl_"

type enrol struct {
	ID       int64 `gorm:"column:id;primaryKey"`
	CourseID int64 `gorm:"column:courseid"`
	Status   int   `gorm:"column:status"`
}

type userEnrolment struct {
	ID      int64 `gorm:"column:id;primaryKey"`
	EnrolID int64 `gorm:"column:enrolid"`
	UserID  int64 `gorm:"column:userid"`
	Status  int   `gorm:"column:status"`
}

// DB is a SQLite database with the Moodle tables used by the lms package.
type DB struct {
	t    *testing.T
	db   *gorm.DB
	next int64
}

// New creates the database in a temporary directory.
func New(t *testing.T) *DB {
	t.Helper()
	cfg := store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "moodle.db")},
	}
	db, err := store.Open(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	tables := []struct {
		name  string
		model any
	}{
		{"user", &lms.User{}},
		{"course", &lms.Course{}},
		{"course_categories", &lms.Category{}},
		{"enrol", &enrol{}},
		{"user_enrolments", &userEnrolment{}},
	}
	for _, tbl := range tables {
		require.NoError(t, db.Table(Prefix+tbl.name).AutoMigrate(tbl.model))
	}
	return &DB{t: t, db: db, next: 100}
}

// Client returns an lms client over the database.
func (d *DB) Client() *lms.Client {
	return lms.NewClient(d.db, Prefix, time.Second)
}

// Gorm exposes the raw connection.
func (d *DB) Gorm() *gorm.DB { return d.db }

func (d *DB) id() int64 {
	d.next++
	return d.next
}

// AddUser inserts u, assigning an id when it has none.
func (d *DB) AddUser(u lms.User) lms.User {
	d.t.Helper()
	if u.ID == 0 {
		u.ID = d.id()
	}
	require.NoError(d.t, d.db.Table(Prefix+"user").Create(&u).Error)
	return u
}

// AddCategory inserts a course category.
func (d *DB) AddCategory(id int64, name string, parent int64) {
	d.t.Helper()
	c := lms.Category{ID: id, Name: name, Parent: parent}
	require.NoError(d.t, d.db.Table(Prefix+"course_categories").Create(&c).Error)
}

// AddCourse inserts a course.
func (d *DB) AddCourse(c lms.Course) lms.Course {
	d.t.Helper()
	if c.ID == 0 {
		c.ID = d.id()
	}
	require.NoError(d.t, d.db.Table(Prefix+"course").Create(&c).Error)
	return c
}

// Enrol enrols userID in courseID. status is the user enrolment status
// (0 active, 1 suspended).
func (d *DB) Enrol(userID, courseID int64, status int) {
	d.t.Helper()
	e := enrol{ID: d.id(), CourseID: courseID}
	require.NoError(d.t, d.db.Table(Prefix+"enrol").Create(&e).Error)
	ue := userEnrolment{ID: d.id(), EnrolID: e.ID, UserID: userID, Status: status}
	require.NoError(d.t, d.db.Table(Prefix+"user_enrolments").Create(&ue).Error)
}

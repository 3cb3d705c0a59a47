// Package lms reads users, enrolments and course categories from a
// Moodle database. Access is read-only.
package lms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/labgate/pkg/controlplane/store"
)

// DefaultTimeout bounds every query when none is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrUserNotFound is returned when no Moodle user has the username.
	ErrUserNotFound = errors.New("lms user not found")

	// ErrAmbiguousUser is returned when several Moodle users share the
	// username, e.g. across MNet hosts.
	ErrAmbiguousUser = errors.New("lms username is not unique")
)

// Config describes the Moodle database.
type Config struct {
	Database store.Config `mapstructure:"database" yaml:"database"`

	// TablePrefix is prepended to every Moodle table name.
	TablePrefix string `mapstructure:"table_prefix" yaml:"table_prefix"`

	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.TablePrefix == "" {
		c.TablePrefix = "mdl_"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate requires an explicit database location. The control plane
// defaults never apply to the LMS.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case store.DatabaseTypeSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("lms sqlite path is required")
		}
	case store.DatabaseTypePostgres:
	case "":
		return fmt.Errorf("lms database type is required")
	}
	return c.Database.Validate()
}

// User is a row of the Moodle user table.
type User struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Auth      string `gorm:"column:auth"`
	Confirmed bool   `gorm:"column:confirmed"`
	Deleted   bool   `gorm:"column:deleted"`
	Suspended bool   `gorm:"column:suspended"`
	Username  string `gorm:"column:username"`
	Password  string `gorm:"column:password"`
	FirstName string `gorm:"column:firstname"`
	LastName  string `gorm:"column:lastname"`
	Email     string `gorm:"column:email"`
}

// Active reports whether the account may log in.
func (u *User) Active() bool {
	return u.Confirmed && !u.Deleted && !u.Suspended
}

// Course is a row of the Moodle course table.
type Course struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Category  int64  `gorm:"column:category"`
	ShortName string `gorm:"column:shortname"`
	FullName  string `gorm:"column:fullname"`
}

// Category is a row of the Moodle course_categories table.
type Category struct {
	ID     int64  `gorm:"column:id;primaryKey"`
	Name   string `gorm:"column:name"`
	Parent int64  `gorm:"column:parent"`
}

// Client queries a Moodle database.
type Client struct {
	db      *gorm.DB
	prefix  string
	timeout time.Duration
}

// Open connects to the Moodle database described by cfg.
func Open(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := store.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("lms: %w", err)
	}
	return NewClient(db, cfg.TablePrefix, cfg.Timeout), nil
}

// NewClient wraps an existing connection.
func NewClient(db *gorm.DB, prefix string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{db: db, prefix: prefix, timeout: timeout}
}

// Table returns the prefixed name of a Moodle table.
func (c *Client) Table(name string) string {
	return c.prefix + name
}

func (c *Client) query(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return c.db.WithContext(ctx), cancel
}

// UserByUsername returns the single user called username.
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	db, cancel := c.query(ctx)
	defer cancel()

	var users []User
	err := db.Table(c.Table("user")).
		Where("username = ?", username).
		Limit(2).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("query lms user: %w", err)
	}
	switch len(users) {
	case 0:
		return nil, ErrUserNotFound
	case 1:
		return &users[0], nil
	default:
		return nil, ErrAmbiguousUser
	}
}

// EnrolledCourses returns the courses userID is actively enrolled in,
// ordered by course id. Suspended enrolments and disabled enrolment
// methods are ignored.
func (c *Client) EnrolledCourses(ctx context.Context, userID int64) ([]Course, error) {
	db, cancel := c.query(ctx)
	defer cancel()

	var courses []Course
	err := db.Table(c.Table("course")+" AS c").
		Select("DISTINCT c.id, c.category, c.shortname, c.fullname").
		Joins("JOIN "+c.Table("enrol")+" AS e ON e.courseid = c.id").
		Joins("JOIN "+c.Table("user_enrolments")+" AS ue ON ue.enrolid = e.id").
		Where("ue.userid = ? AND ue.status = 0 AND e.status = 0", userID).
		Order("c.id").
		Scan(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("query lms enrolments: %w", err)
	}
	return courses, nil
}

// Categories returns every course category keyed by id.
func (c *Client) Categories(ctx context.Context) (map[int64]Category, error) {
	db, cancel := c.query(ctx)
	defer cancel()

	var rows []Category
	if err := db.Table(c.Table("course_categories")).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query lms categories: %w", err)
	}
	out := make(map[int64]Category, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CategoryPath returns the category id followed by its ancestors up to
// the root. Unknown ids end the walk; a parent cycle is cut at the first
// repeated category.
func CategoryPath(categories map[int64]Category, id int64) []Category {
	var path []Category
	seen := make(map[int64]bool)
	for id != 0 && !seen[id] {
		cat, ok := categories[id]
		if !ok {
			break
		}
		seen[id] = true
		path = append(path, cat)
		id = cat.Parent
	}
	return path
}

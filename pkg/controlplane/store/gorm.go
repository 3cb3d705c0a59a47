package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// DatabaseType defines the supported database backends.
type DatabaseType string

const (
	// DatabaseTypeSQLite uses SQLite (single-node, default).
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres uses PostgreSQL.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	// Default: $XDG_CONFIG_HOME/labgate/labgate.db
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"` // disable, require, verify-ca, verify-full
	SSLRootCert  string `mapstructure:"sslrootcert" yaml:"sslrootcert,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)

	if c.SSLMode != "" {
		dsn += " sslmode=" + c.SSLMode
	}
	if c.SSLRootCert != "" {
		dsn += " sslrootcert=" + c.SSLRootCert
	}
	return dsn
}

// Config contains database configuration.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	if c.Type == DatabaseTypeSQLite && c.SQLite.Path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, _ := os.UserHomeDir()
			configDir = filepath.Join(homeDir, ".config")
		}
		c.SQLite.Path = filepath.Join(configDir, "labgate", "labgate.db")
	}

	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 25
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// Open connects to the configured database without migrating it.
// The LMS adapter shares this so both backends are reachable with the
// same configuration block.
func Open(config *Config) (*gorm.DB, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL allows concurrent readers next to the single writer.
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		dialector = sqlite.Open(dsn)
	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}
	return db, nil
}

// GORMStore implements Store on top of GORM for SQLite and PostgreSQL.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// New opens the database and creates the schema via AutoMigrate.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}

	db, err := Open(config)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &GORMStore{db: db, config: config}, nil
}

// DB returns the underlying GORM database connection.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/labgate/internal/telemetry"
	"github.com/marmos91/labgate/pkg/auth/kerberos"
	ldapauth "github.com/marmos91/labgate/pkg/auth/ldap"
	"github.com/marmos91/labgate/pkg/auth/moodle"
	"github.com/marmos91/labgate/pkg/auth/sso"
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/scheduler"
	"github.com/marmos91/labgate/pkg/session"
	"github.com/marmos91/labgate/pkg/throttle"
	"github.com/marmos91/labgate/pkg/token"
)

// Config represents the labgate configuration.
//
// It captures everything needed to assemble the login pipeline:
//   - Logging, tracing and metrics
//   - The control plane database (principals, user classes, SSO mappings)
//   - The ordered authentication strategies and their backends
//   - The ordered session provisioning steps and their parameters
//   - The scheduling server, session tokens and login throttling
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (LABGATE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Optional backend blocks are pointers: a nil block is not configured and
// is not validated.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the control plane database (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Scheduler is consulted before a Samba password is overwritten.
	Scheduler scheduler.Config `mapstructure:"scheduler" yaml:"scheduler"`

	Token    TokenConfig     `mapstructure:"token" yaml:"token"`
	Throttle throttle.Config `mapstructure:"throttle" yaml:"throttle"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for /metrics and /healthz. Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AuthConfig configures the authentication chain.
type AuthConfig struct {
	// Namespace is the institution served when a login names none.
	Namespace string `mapstructure:"namespace" validate:"required" yaml:"namespace"`

	// Strategies is the ordered list of strategy types to try.
	Strategies []string `mapstructure:"strategies" validate:"required,min=1" yaml:"strategies"`

	Ldap     *ldapauth.Config `mapstructure:"ldap" yaml:"ldap,omitempty"`
	Moodle   *moodle.Config   `mapstructure:"moodle" yaml:"moodle,omitempty"`
	SSO      *sso.Config      `mapstructure:"sso" yaml:"sso,omitempty"`
	Kerberos *kerberos.Config `mapstructure:"kerberos" yaml:"kerberos,omitempty"`

	// Institutions override the chain, the steps or a backend for one
	// namespace.
	Institutions []InstitutionConfig `mapstructure:"institutions" validate:"dive" yaml:"institutions,omitempty"`
}

// InstitutionConfig overrides settings for one namespace. Empty fields
// fall back to the top-level configuration.
type InstitutionConfig struct {
	Namespace  string   `mapstructure:"namespace" validate:"required" yaml:"namespace"`
	Strategies []string `mapstructure:"strategies" yaml:"strategies,omitempty"`
	Steps      []string `mapstructure:"steps" yaml:"steps,omitempty"`

	Ldap   *ldapauth.Config `mapstructure:"ldap" yaml:"ldap,omitempty"`
	Moodle *moodle.Config   `mapstructure:"moodle" yaml:"moodle,omitempty"`
}

// SessionConfig configures post-login provisioning.
type SessionConfig struct {
	// Steps is the ordered list of provisioning steps.
	Steps []string `mapstructure:"steps" yaml:"steps"`

	// Directory is the account directory written by LdapAccount and
	// SambaPassword. It needs a service account with write access.
	Directory *directory.Config `mapstructure:"directory" yaml:"directory,omitempty"`

	// Getent is the command used to enumerate host accounts.
	Getent string `mapstructure:"getent" yaml:"getent,omitempty"`

	LdapAccount     *session.LdapAccountConfig     `mapstructure:"ldap_account" yaml:"ldap_account,omitempty"`
	Permissions     *session.PermissionsConfig     `mapstructure:"permissions" yaml:"permissions,omitempty"`
	HomeDirectory   *session.HomeDirectoryConfig   `mapstructure:"home_directory" yaml:"home_directory,omitempty"`
	UserDetails     session.UserDetailsConfig      `mapstructure:"user_details" yaml:"user_details"`
	MoodleAuthorise *session.MoodleAuthoriseConfig `mapstructure:"moodle_authorise" yaml:"moodle_authorise,omitempty"`
}

// TokenConfig configures the session tokens issued after login.
type TokenConfig struct {
	Enabled      bool `mapstructure:"enabled" yaml:"enabled"`
	token.Config `mapstructure:",squash" yaml:",inline"`
}

// Institution returns the override for namespace, if any.
func (c *AuthConfig) Institution(namespace string) (InstitutionConfig, bool) {
	for _, inst := range c.Institutions {
		if inst.Namespace == namespace {
			return inst, true
		}
	}
	return InstitutionConfig{}, false
}

// Namespaces returns the default namespace followed by every institution.
func (c *Config) Namespaces() []string {
	out := []string{c.Auth.Namespace}
	for _, inst := range c.Auth.Institutions {
		if inst.Namespace != c.Auth.Namespace {
			out = append(out, inst.Namespace)
		}
	}
	return out
}

// StrategiesFor returns the strategy chain of namespace.
func (c *Config) StrategiesFor(namespace string) []string {
	if inst, ok := c.Auth.Institution(namespace); ok && len(inst.Strategies) > 0 {
		return inst.Strategies
	}
	return c.Auth.Strategies
}

// StepsFor returns the provisioning steps of namespace.
func (c *Config) StepsFor(namespace string) []string {
	if inst, ok := c.Auth.Institution(namespace); ok && len(inst.Steps) > 0 {
		return inst.Steps
	}
	return c.Session.Steps
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LABGATE_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  labgate init\n\n"+
				"Or specify a custom config file:\n"+
				"  labgate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  labgate init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file holds bind passwords and the token secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// secretEnv lists keys that may be supplied only through the environment.
var secretEnv = []string{
	"token.secret",
	"throttle.password",
	"database.postgres.password",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: LABGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("LABGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretEnv {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/labgate/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "labgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "labgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}

package config

import (
	"strings"
	"time"

	"github.com/marmos91/labgate/internal/telemetry"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/scheduler"
	"github.com/marmos91/labgate/pkg/session"
	"github.com/marmos91/labgate/pkg/throttle"
)

const (
	defaultNamespace  = "default"
	defaultGetent     = "getent"
	defaultSessionTTL = 8 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Nil backend blocks stay nil
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.Database.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
	applyAuthDefaults(&cfg.Auth)
	applySessionDefaults(&cfg.Session)
	cfg.Scheduler.ApplyDefaults()
	applyTokenDefaults(&cfg.Token)
	applyThrottleDefaults(&cfg.Throttle)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *telemetry.Config) {
	def := telemetry.DefaultConfig()

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}

	// Default sample rate is 1.0 (sample all logins)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = def.ServiceVersion
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAuthDefaults normalizes strategy names and fills backend blocks.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []string{string(auth.TypeDatabase)}
	}
	cfg.Strategies = canonicalStrategies(cfg.Strategies)

	if cfg.Ldap != nil {
		cfg.Ldap.ApplyDefaults()
	}
	if cfg.Moodle != nil {
		cfg.Moodle.LMS.ApplyDefaults()
	}
	if cfg.SSO != nil {
		cfg.SSO.ApplyDefaults()
	}
	if cfg.Kerberos != nil && cfg.Kerberos.Timeout == 0 {
		cfg.Kerberos.Timeout = 10 * time.Second
	}

	for i := range cfg.Institutions {
		inst := &cfg.Institutions[i]
		inst.Strategies = canonicalStrategies(inst.Strategies)
		if inst.Ldap != nil {
			inst.Ldap.ApplyDefaults()
		}
		if inst.Moodle != nil {
			inst.Moodle.LMS.ApplyDefaults()
		}
	}
}

// canonicalStrategies rewrites known names to their canonical spelling.
// Unknown names are kept so validation can report them.
func canonicalStrategies(names []string) []string {
	if len(names) == 0 {
		return names
	}
	out := make([]string, len(names))
	for i, name := range names {
		if t, err := auth.ParseType(name); err == nil {
			out[i] = string(t)
		} else {
			out[i] = name
		}
	}
	return out
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Getent == "" {
		cfg.Getent = defaultGetent
	}
	if cfg.Directory != nil {
		cfg.Directory.ApplyDefaults()
	}
	if cfg.LdapAccount != nil {
		cfg.LdapAccount.ApplyDefaults()
	}
	if cfg.HomeDirectory != nil {
		cfg.HomeDirectory.ApplyDefaults()
	}
	cfg.UserDetails.ApplyDefaults()
}

func applyTokenDefaults(cfg *TokenConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "labgate"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
}

func applyThrottleDefaults(cfg *throttle.Config) {
	def := throttle.DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window == 0 {
		cfg.Window = def.Window
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// The default pipeline authenticates against the control plane database
// and records the user's details after login.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry:       telemetry.DefaultConfig(),
		ShutdownTimeout: 30 * time.Second,
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Auth: AuthConfig{
			Namespace:  defaultNamespace,
			Strategies: []string{string(auth.TypeDatabase)},
		},
		Session: SessionConfig{
			Steps: []string{session.StepUserDetails},
		},
		Scheduler: scheduler.Config{},
		Throttle:  throttle.DefaultConfig(),
	}

	ApplyDefaults(cfg)
	return cfg
}

package config

import (
	"testing"
	"time"

	"github.com/marmos91/labgate/pkg/auth/sso"
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/session"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Database(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected sqlite by default, got %q", cfg.Database.Type)
	}
	if cfg.Database.SQLite.Path == "" {
		t.Error("Expected default sqlite path")
	}
}

func TestApplyDefaults_Auth(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{
			Strategies: []string{"LDAP", "moodle", "bogus"},
			SSO:        &sso.Config{},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Auth.Namespace != "default" {
		t.Errorf("Expected default namespace, got %q", cfg.Auth.Namespace)
	}
	want := []string{"Ldap", "Moodle", "bogus"}
	for i, name := range want {
		if cfg.Auth.Strategies[i] != name {
			t.Errorf("Strategy %d: expected %q, got %q", i, name, cfg.Auth.Strategies[i])
		}
	}
	if cfg.Auth.SSO.Policy != sso.PolicyEither {
		t.Errorf("Expected SSO policy default, got %q", cfg.Auth.SSO.Policy)
	}
	if cfg.Auth.Ldap != nil {
		t.Error("Expected unset ldap block to stay nil")
	}
}

func TestApplyDefaults_Session(t *testing.T) {
	cfg := &Config{
		Session: SessionConfig{
			HomeDirectory: &session.HomeDirectoryConfig{Script: "/bin/true"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Session.HomeDirectory.Attribute != "homeDirectory" {
		t.Errorf("Expected default home attribute, got %q", cfg.Session.HomeDirectory.Attribute)
	}
	if len(cfg.Session.UserDetails.Email) == 0 {
		t.Error("Expected default user details candidates")
	}
	if cfg.Session.LdapAccount != nil {
		t.Error("Expected unset ldap_account block to stay nil")
	}
}

func TestApplyDefaults_TokenAndThrottle(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Token.Issuer != "labgate" {
		t.Errorf("Expected issuer 'labgate', got %q", cfg.Token.Issuer)
	}
	if cfg.Token.SessionTTL != 8*time.Hour {
		t.Errorf("Expected session TTL 8h, got %v", cfg.Token.SessionTTL)
	}
	if cfg.Throttle.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.Throttle.MaxAttempts)
	}
	if cfg.Throttle.Window != 15*time.Minute {
		t.Errorf("Expected 15m window, got %v", cfg.Throttle.Window)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		ShutdownTimeout: time.Minute,
		Metrics:         MetricsConfig{Port: 9100},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != time.Minute {
		t.Errorf("Expected shutdown timeout 1m, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Expected metrics port 9100, got %d", cfg.Metrics.Port)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if len(cfg.Auth.Strategies) != 1 || cfg.Auth.Strategies[0] != "Database" {
		t.Errorf("Expected [Database], got %v", cfg.Auth.Strategies)
	}
	if len(cfg.Session.Steps) != 1 || cfg.Session.Steps[0] != session.StepUserDetails {
		t.Errorf("Expected [UserDetails], got %v", cfg.Session.Steps)
	}
	if cfg.Token.Enabled || cfg.Throttle.Enabled || cfg.Scheduler.Enabled {
		t.Error("Expected optional services disabled by default")
	}
}

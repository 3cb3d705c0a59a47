package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: "info"

database:
  type: sqlite
  sqlite:
    path: "`+yamlSafePath(tmpDir)+`/labgate.db"

auth:
  namespace: uts
  strategies: [database]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Auth.Namespace != "uts" {
		t.Errorf("Expected namespace 'uts', got %q", cfg.Auth.Namespace)
	}
	if len(cfg.Auth.Strategies) != 1 || cfg.Auth.Strategies[0] != "Database" {
		t.Errorf("Expected canonical strategy [Database], got %v", cfg.Auth.Strategies)
	}
	if cfg.Session.Getent != "getent" {
		t.Errorf("Expected default getent command, got %q", cfg.Session.Getent)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Auth.Namespace != "default" {
		t.Errorf("Expected default namespace, got %q", cfg.Auth.Namespace)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_FullPipeline(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
database:
  sqlite:
    path: "`+yamlSafePath(tmpDir)+`/labgate.db"

auth:
  namespace: uts
  strategies: [ldap, moodle, database]
  ldap:
    directory:
      url: ldap://ldap.example.edu
      base_dn: ou=people,dc=example,dc=edu
      timeout: 5s
    constraints:
      - attribute: eduPersonAffiliation
        pattern: "student"
  moodle:
    lms:
      database:
        type: sqlite
        sqlite:
          path: "`+yamlSafePath(tmpDir)+`/moodle.db"
    password_salt: pepper
  institutions:
    - namespace: partner
      strategies: [moodle]
      steps: [MoodleAuthorise]

session:
  steps: [LdapAccount, Permissions, SambaPassword, HomeDirectory, UserDetails]
  directory:
    url: ldaps://accounts.example.edu
    base_dn: dc=example,dc=edu
    bind_dn: cn=admin,dc=example,dc=edu
  ldap_account:
    people_base: ou=people,dc=example,dc=edu
    default_ou: staff
    sid_prefix: S-1-5-21-1111-2222-3333
  permissions:
    rules:
      - "ou=staff{staff}"
  home_directory:
    script: /usr/local/sbin/mkhome
    timeout: 1m
  moodle_authorise:
    rules:
      - field: course_shortname
        pattern: "ELEC*"
        groups: [electrical]

token:
  enabled: true
  secret: "test-secret-key-for-testing-minimum-32-chars"
  session_ttl: 1h
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Auth.Ldap == nil || cfg.Auth.Ldap.Directory.Timeout != 5*time.Second {
		t.Fatalf("Expected ldap directory timeout 5s, got %+v", cfg.Auth.Ldap)
	}
	if cfg.Auth.Ldap.UsernameAttribute != "uid" {
		t.Errorf("Expected default username attribute, got %q", cfg.Auth.Ldap.UsernameAttribute)
	}
	if cfg.Auth.Moodle == nil || cfg.Auth.Moodle.LMS.TablePrefix != "mdl_" {
		t.Errorf("Expected default moodle table prefix, got %+v", cfg.Auth.Moodle)
	}
	if got := cfg.StrategiesFor("partner"); len(got) != 1 || got[0] != "Moodle" {
		t.Errorf("Expected partner strategies [Moodle], got %v", got)
	}
	if got := cfg.StepsFor("uts"); len(got) != 5 {
		t.Errorf("Expected 5 steps for uts, got %v", got)
	}
	if got := cfg.StepsFor("partner"); len(got) != 1 || got[0] != "MoodleAuthorise" {
		t.Errorf("Expected partner steps [MoodleAuthorise], got %v", got)
	}
	if cfg.Session.HomeDirectory.Timeout != time.Minute {
		t.Errorf("Expected home directory timeout 1m, got %v", cfg.Session.HomeDirectory.Timeout)
	}
	if cfg.Session.LdapAccount.MinUID != 10000 {
		t.Errorf("Expected default min uid, got %d", cfg.Session.LdapAccount.MinUID)
	}
	if cfg.Token.SessionTTL != time.Hour {
		t.Errorf("Expected session TTL 1h, got %v", cfg.Token.SessionTTL)
	}
	if cfg.Token.RefreshTTL != 7*24*time.Hour {
		t.Errorf("Expected default refresh TTL, got %v", cfg.Token.RefreshTTL)
	}
}

func TestLoad_MissingStrategyBlock(t *testing.T) {
	configPath := writeConfig(t, `
auth:
  strategies: [Ldap]
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for Ldap strategy without auth.ldap block")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: INFO
database:
  sqlite:
    path: "`+yamlSafePath(tmpDir)+`/labgate.db"
token:
  enabled: true
`)

	t.Setenv("LABGATE_LOGGING_LEVEL", "DEBUG")
	t.Setenv("LABGATE_TOKEN_SECRET", "env-secret-key-for-testing-minimum-32-chars")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level DEBUG from environment, got %q", cfg.Logging.Level)
	}
	if cfg.Token.Secret != "env-secret-key-for-testing-minimum-32-chars" {
		t.Errorf("Expected token secret from environment, got %q", cfg.Token.Secret)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Auth.Namespace = "uts"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Auth.Namespace != "uts" {
		t.Errorf("Expected namespace 'uts' after reload, got %q", loaded.Auth.Namespace)
	}
}

func TestDurationDecodeHook(t *testing.T) {
	hook := durationDecodeHook().(func(reflect.Type, reflect.Type, interface{}) (interface{}, error))
	durationType := reflect.TypeOf(time.Duration(0))

	got, err := hook(reflect.TypeOf(""), durationType, "90s")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != 90*time.Second {
		t.Errorf("Expected 90s, got %v", got)
	}

	if _, err := hook(reflect.TypeOf(""), durationType, "soon"); err == nil {
		t.Error("Expected error for unparseable duration")
	}

	// Non-duration targets pass through untouched.
	got, err = hook(reflect.TypeOf(""), reflect.TypeOf(""), "90s")
	if err != nil || got != "90s" {
		t.Errorf("Expected passthrough, got %v (%v)", got, err)
	}
}

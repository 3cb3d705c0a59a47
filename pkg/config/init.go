package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# labgate configuration file
#
# Values can be overridden with LABGATE_* environment variables, e.g.
#   LABGATE_LOGGING_LEVEL=DEBUG
#   LABGATE_TOKEN_SECRET=...
#
# Strategies are tried in order: Database, Ldap, Moodle, SSO, Kerberos.
# Steps run in order after a successful login: LdapAccount, Permissions,
# SambaPassword, HomeDirectory, UserDetails, MoodleAuthorise.

`

// InitConfig writes the default configuration to the default location.
// It returns the written path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path. An existing
// file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := GetDefaultConfig()
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	cfg.Token.Secret = secret

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateSecret returns a random token signing secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

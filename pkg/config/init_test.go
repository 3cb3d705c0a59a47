package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigWritesDefaultLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, DefaultConfigExists())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{"# labgate configuration file", "logging:", "database:", "auth:", "session:", "token:", "throttle:"} {
		assert.Contains(t, string(content), section)
	}

	_, err = InitConfig(false)
	assert.ErrorContains(t, err, "already exists")
}

func TestInitConfigToPath(t *testing.T) {
	tests := []struct {
		name    string
		exists  bool
		force   bool
		wantErr bool
	}{
		{name: "fresh path", exists: false},
		{name: "existing without force", exists: true, wantErr: true},
		{name: "existing with force", exists: true, force: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config.yaml")
			if tt.exists {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
				require.NoError(t, os.WriteFile(path, []byte("logging: {}\n"), 0644))
			}

			err := InitConfigToPath(path, tt.force)
			if tt.wantErr {
				assert.ErrorContains(t, err, "already exists")
				content, _ := os.ReadFile(path)
				assert.Equal(t, "logging: {}\n", string(content), "file must be left untouched")
				return
			}
			require.NoError(t, err)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
		})
	}
}

func TestGeneratedConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "default", cfg.Auth.Namespace)
	assert.Equal(t, []string{"Database"}, cfg.Auth.Strategies)
	assert.Equal(t, []string{"UserDetails"}, cfg.StepsFor("default"))

	// A secret is generated, but issuing tokens is an explicit opt-in.
	assert.GreaterOrEqual(t, len(cfg.Token.Secret), 32)
	assert.False(t, cfg.Token.Enabled)
}

func TestGeneratedSecretsDiffer(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

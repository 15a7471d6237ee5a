package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s3cret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "pebble", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 30, cfg.JWT.TTLDays)
	assert.Equal(t, "1234", cfg.Auth.OTPCode)
	assert.Equal(t, 15*time.Second, cfg.Assistant.Timeout)
	assert.Equal(t, "v1beta", cfg.Assistant.APIVersion)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
database:
  driver: postgres
  host: db
  port: 5432
  user: app
  password: pw
  dbname: kissan
jwt:
  secret: abc
assistant:
  timeout: 3s
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=kissan sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 3*time.Second, cfg.Assistant.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DSN", "postgres://u:p@h/db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@h/db", cfg.Database.DSN())
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "only-env", cfg.JWT.Secret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing secret", "log:\n  level: info\n"},
		{"unknown database", "jwt:\n  secret: x\ndatabase:\n  driver: mongo\n"},
		{"s3 without bucket", "jwt:\n  secret: x\nstorage:\n  driver: s3\n"},
		{"push without key", "jwt:\n  secret: x\npush:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			os.Unsetenv("JWT_SECRET")
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

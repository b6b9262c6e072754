package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "jetdesk-token", c.Auth.TokenHeader)
	assert.Equal(t, "3m", c.Auth.CaptchaTTL)
	assert.False(t, c.IsProd())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: staging
server:
  addr: ":9090"
auth:
  token_header: x-session
rate:
  enabled: true
  login:
    limit: 5
    window: 30s
`), 0o600))

	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("PASSWORD_SECRET", "shhh")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.App.Env)
	// Env gana sobre YAML.
	assert.Equal(t, ":7070", c.Server.Addr)
	assert.Equal(t, "x-session", c.Auth.TokenHeader)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 5, c.Rate.Login.Limit)
	assert.Equal(t, "shhh", c.Security.PasswordSecret)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	write := func(body string) string {
		p := filepath.Join(dir, "c.yaml")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := Load(write("storage:\n  driver: oracle\n"))
	assert.Error(t, err)

	_, err = Load(write("storage:\n  driver: postgres\n"))
	assert.Error(t, err)

	_, err = Load(write("cache:\n  kind: redis\n"))
	assert.Error(t, err)

	_, err = Load(write("jwt:\n  access_ttl: banana\n"))
	assert.Error(t, err)
}

func TestProdRequiresSecrets(t *testing.T) {
	t.Setenv("PASSWORD_SECRET", "")
	t.Setenv("MASTER_KEY", "")
	t.Setenv("JWT_SIGNING_SEED", "")
	t.Setenv("APP_ENV", "prod")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("PASSWORD_SECRET", "a")
	t.Setenv("MASTER_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("JWT_SIGNING_SEED", "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=")
	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.IsProd())
}

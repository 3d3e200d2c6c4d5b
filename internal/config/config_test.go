package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Provider.TimeoutSeconds)
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
storage:
  dataDir: /srv/evidence
security:
  destructiveSecret: hunter2
provider:
  apiKey: sk-test
  model: gpt-4o
  timeoutSeconds: 30
database:
  driver: postgres
  host: db
  port: 5432
  user: app
  password: pw
  name: locker
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Security.DestructiveSecret)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=locker sslmode=disable", cfg.PostgresDSN())
}

func TestResolveDataDirEnvOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  dataDir: /from/config\n"))
	require.NoError(t, err)

	override := t.TempDir()
	t.Setenv("EVIDENCE_DATA_DIR", override)
	dir, err := cfg.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, override, dir)
}

func TestResolveDataDirTildeExpansion(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  dataDir: \"~/evidence\"\n"))
	require.NoError(t, err)
	t.Setenv("EVIDENCE_DATA_DIR", "")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err := cfg.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "evidence"), dir)
}

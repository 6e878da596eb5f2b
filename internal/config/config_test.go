package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/logging"
)

const validConfig = `version: 1
stores:
  vault-prod:
    type: vault
    address: https://vault.internal:8200
    auth_method: token
tasks:
  - name: prod-tenant
    store: vault-prod
    secret_path: secret/data/prisma/prod
    identity_api_url: https://api.prismacloud.io
    timeout_ms: 5000
  - name: eu-tenant
    store: vault-prod
    secret_path: secret/data/prisma/eu
    identity_api_url: https://api.eu.prismacloud.io
`

func writeConfig(t *testing.T, content string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyrotor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &Config{
		Path:   path,
		Logger: logging.NewWithWriter(io.Discard, false, true),
	}
}

func TestLoadValidConfig(t *testing.T) {
	cfg := writeConfig(t, validConfig)
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	require.Len(t, def.Tasks, 2)
	assert.Equal(t, "prod-tenant", def.Tasks[0].Name)
	assert.Equal(t, "vault", def.Stores["vault-prod"].Type)
	assert.Equal(t, "https://vault.internal:8200", def.Stores["vault-prod"].Config["address"])

	assert.Equal(t, 5*time.Second, def.Tasks[0].Timeout())
	assert.Equal(t, 10*time.Second, def.Tasks[1].Timeout(), "default timeout applies")
}

func TestLoadMissingFile(t *testing.T) {
	cfg := &Config{
		Path:   filepath.Join(t.TempDir(), "nope.yaml"),
		Logger: logging.NewWithWriter(io.Discard, false, true),
	}

	err := cfg.Load()
	var cfgErr kerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Contains(t, cfgErr.Suggestion, "keyrotor.yaml")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	cfg := writeConfig(t, "version: [not\n  valid")
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr kerrors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestSchemaRejectsMissingTaskFields(t *testing.T) {
	cfg := writeConfig(t, `version: 1
stores:
  s1:
    type: vault
tasks:
  - name: broken
    store: s1
`)
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestSchemaRejectsUnknownVersion(t *testing.T) {
	cfg := writeConfig(t, `version: 2
stores:
  s1:
    type: vault
tasks:
  - name: t
    store: s1
    secret_path: p
    identity_api_url: https://x
`)
	require.Error(t, cfg.Load())
}

func TestSemanticsRejectUndefinedStore(t *testing.T) {
	cfg := writeConfig(t, `version: 1
stores:
  s1:
    type: vault
tasks:
  - name: t
    store: missing
    secret_path: p
    identity_api_url: https://x
`)
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined store")
}

func TestSemanticsRejectDuplicateTaskNames(t *testing.T) {
	cfg := writeConfig(t, `version: 1
stores:
  s1:
    type: vault
tasks:
  - name: dup
    store: s1
    secret_path: a
    identity_api_url: https://x
  - name: dup
    store: s1
    secret_path: b
    identity_api_url: https://y
`)
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task name")
}

func TestSemanticsRejectBadURL(t *testing.T) {
	cfg := writeConfig(t, `version: 1
stores:
  s1:
    type: vault
tasks:
  - name: t
    store: s1
    secret_path: p
    identity_api_url: ftp://nope
`)
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http(s)")
}

func TestTaskLookup(t *testing.T) {
	cfg := writeConfig(t, validConfig)
	require.NoError(t, cfg.Load())

	task, err := cfg.Definition.Task("eu-tenant")
	require.NoError(t, err)
	assert.Equal(t, "secret/data/prisma/eu", task.SecretPath)

	_, err = cfg.Definition.Task("absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prod-tenant")
}

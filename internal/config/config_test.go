package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: "9090"
game:
  manager_password: "hunter22"
  manager_grace_period: "15s"
transport:
  allowed_origins: ["https://quiz.example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "hunter22", cfg.Game.ManagerPassword)
	assert.Equal(t, "15s", cfg.Game.ManagerGracePeriod)
	assert.Equal(t, 6, cfg.Game.CodeLength, "untouched keys keep defaults")
	assert.Equal(t, "3s", cfg.Game.QuestionCooldown)
	assert.Equal(t, []string{"https://quiz.example.com"}, cfg.Transport.AllowedOrigins)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, TTLDuration("10s", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}

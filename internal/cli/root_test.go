package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandBindsEnv(t *testing.T) {
	t.Setenv("TRIVIA_LOG_LEVEL", "debug")
	t.Setenv("TRIVIA_MANAGER_PASSWORD", "letmein")

	cmd := newRootCmd()
	level, err := cmd.PersistentFlags().GetString("log-level")
	require.NoError(t, err)
	assert.Equal(t, "debug", level)

	password, err := cmd.PersistentFlags().GetString("manager-password")
	require.NoError(t, err)
	assert.Equal(t, "letmein", password)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["start"] && names["migrate"] && names["seed"])
}

func TestOptionsLoadFallsBackToDefaults(t *testing.T) {
	opts := &options{
		configPath:      filepath.Join(t.TempDir(), "absent.yaml"),
		port:            "9999",
		managerPassword: "letmein",
	}
	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "letmein", cfg.Game.ManagerPassword)
	assert.Equal(t, "default", cfg.Questions.Set)
}

func TestQuestionLoaderFallsBackToSample(t *testing.T) {
	opts := &options{configPath: filepath.Join(t.TempDir(), "absent.yaml")}
	cfg, err := opts.load()
	require.NoError(t, err)
	cfg.Questions.File = filepath.Join(t.TempDir(), "missing.yaml")

	loader, err := questionLoader(cfg, nil)
	require.NoError(t, err)
	set, err := loader.LoadQuestionSet(context.Background(), "default")
	require.NoError(t, err)
	assert.NotEmpty(t, set.Questions)
}

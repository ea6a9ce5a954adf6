package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "local", env.Env)
	assert.Equal(t, "3100", env.HTTPPort)
	assert.Equal(t, "yaml", env.TaskStore)
	assert.Equal(t, int64(5*1024*1024), env.MaxImageBytes)
	assert.Equal(t, 5*time.Minute, env.Timeout)
	assert.False(t, env.PushEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SPRINTGUILD_TASK_STORE", "sqlite")
	t.Setenv("SPRINTGUILD_LOG_LEVEL", "warn")
	t.Setenv("SPRINTGUILD_VAPID_PUBLIC_KEY", "pub")
	t.Setenv("SPRINTGUILD_VAPID_PRIVATE_KEY", "priv")

	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", env.TaskStore)
	assert.Equal(t, slog.LevelWarn, env.SlogLevel())
	assert.True(t, env.PushEnabled())
}

func TestLoadEnvRejectsUnknownStores(t *testing.T) {
	t.Run("storage type", func(t *testing.T) {
		t.Setenv("SPRINTGUILD_STORAGE_TYPE", "ftp")
		_, err := LoadEnv()
		require.Error(t, err)
	})
	t.Run("s3 without bucket", func(t *testing.T) {
		t.Setenv("SPRINTGUILD_STORAGE_TYPE", "s3")
		_, err := LoadEnv()
		require.Error(t, err)
	})
	t.Run("task store", func(t *testing.T) {
		t.Setenv("SPRINTGUILD_TASK_STORE", "postgres")
		_, err := LoadEnv()
		require.Error(t, err)
	})
}

func TestSlogLevelFallsBackToDebug(t *testing.T) {
	env := &BaseEnv{LogLevel: "loud"}
	assert.Equal(t, slog.LevelDebug, env.SlogLevel())

	var nilEnv *BaseEnv
	assert.Equal(t, slog.LevelDebug, nilEnv.SlogLevel())
}

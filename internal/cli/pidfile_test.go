package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPIDFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "eva.pid"), getPIDFilePath("/data"))

	path := getPIDFilePath("")
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "eva.pid")
}

func TestIsRunning(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "nonexistent.pid")
		assert.False(t, isRunning(pidFile))
	})

	t.Run("invalid pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "invalid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("invalid"), 0644))

		assert.False(t, isRunning(pidFile))
	})

	t.Run("own process", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "sub", "eva.pid")
		require.NoError(t, writePID(pidFile))

		assert.True(t, isRunning(pidFile))
		pid, err := readPID(pidFile)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})
}

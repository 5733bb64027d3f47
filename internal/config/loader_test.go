package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("should load defaults when file does not exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("EVA_DATA_DIR", tmpDir)

		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, DeviceDesktop, cfg.Device)
		assert.Equal(t, tmpDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "database", "eva.db"), cfg.Memory.DBPath)
		assert.Equal(t, filepath.Join(tmpDir, "eva.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(tmpDir, "prompts"), cfg.Agent.PromptsDir)
	})

	t.Run("should load values from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "eva.json")
		content := `{
			"device": "mobile",
			"data_dir": "` + tmpDir + `",
			"agent": {"chat_model": "openai:gpt-4o", "name": "EVA01"},
			"ai": {"profiles": [{"id": "oa", "provider": "openai", "api_key": "sk-test"}]},
			"memory": {"threshold": 6, "backend": "jsonl"},
			"session": {"exit_keywords": ["goodbye"]}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, DeviceMobile, cfg.Device)
		assert.Equal(t, "EVA01", cfg.Agent.Name)
		assert.Equal(t, "openai:gpt-4o", cfg.Agent.ChatModel)
		assert.Equal(t, 0.8, cfg.Agent.Temperature)
		assert.Equal(t, 6, cfg.Memory.Threshold)
		assert.Equal(t, BackendJSONL, cfg.Memory.Backend)
		assert.Equal(t, []string{"goodbye"}, cfg.Session.ExitKeywords)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "sk-test", cfg.AI.Profiles[0].APIKey)
	})

	t.Run("should apply environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("EVA_DATA_DIR", tmpDir)
		t.Setenv("EVA_AGENT_CHAT_MODEL", "gemini:gemini-1.5-flash")
		t.Setenv("EVA_MEMORY_THRESHOLD", "4")

		cfg, err := NewLoader(filepath.Join(tmpDir, "none.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, "gemini:gemini-1.5-flash", cfg.Agent.ChatModel)
		assert.Equal(t, 4, cfg.Memory.Threshold)
	})

	t.Run("should fail on malformed file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "eva.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		_, err := Load(configPath)
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "eva.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Agent.Name = "EVA02"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "EVA02", loaded.Agent.Name)
	assert.Equal(t, 10, loaded.Memory.Threshold)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "/tmp/x.json", NewLoader("/tmp/x.json").GetConfigPath())

	path := NewLoader("").GetConfigPath()
	assert.Equal(t, "eva.json", filepath.Base(path))
}

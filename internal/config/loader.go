package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envKeys are bound explicitly so EVA_* variables apply even when the key
// is absent from the config file.
var envKeys = []string{
	"device",
	"language",
	"data_dir",
	"agent.name",
	"agent.chat_model",
	"agent.summarize_model",
	"agent.prompts_dir",
	"memory.threshold",
	"memory.backend",
	"memory.db_path",
	"actions.max_parallel",
	"actions.music_base_url",
	"gateway.host",
	"gateway.port",
	"logging.level",
	"logging.file",
	"telemetry.tracing",
	"telemetry.sample_ratio",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file (if present), applies EVA_ environment
// overrides and fills the derived paths.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to resolve config path")
	}

	v := viper.New()
	v.SetEnvPrefix("EVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if filepath.Ext(configPath) == "" {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) fillPaths() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".eva")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "eva.log")
	}
	if c.Memory.DBPath == "" {
		c.Memory.DBPath = filepath.Join(c.DataDir, "database", "eva.db")
	}
	if c.Memory.JSONLDir == "" {
		c.Memory.JSONLDir = filepath.Join(c.DataDir, "memory")
	}
	if c.Agent.PromptsDir == "" {
		c.Agent.PromptsDir = filepath.Join(c.DataDir, "prompts")
	}
	return nil
}

// Save writes cfg to the config path, creating the directory when needed.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if filepath.Ext(configPath) == "" {
		v.SetConfigType("json")
	}

	v.Set("device", cfg.Device)
	v.Set("language", cfg.Language)
	v.Set("agent", cfg.Agent)
	v.Set("ai", cfg.AI)
	v.Set("memory", cfg.Memory)
	v.Set("actions", cfg.Actions)
	v.Set("session", cfg.Session)
	v.Set("gateway", cfg.Gateway)
	v.Set("logging", cfg.Logging)
	v.Set("telemetry", cfg.Telemetry)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".eva", "eva.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

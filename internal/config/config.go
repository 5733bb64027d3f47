package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the main EVA configuration
type Config struct {
	// Device selects the client: desktop (console) or mobile (websocket gateway).
	Device string `json:"device" mapstructure:"device"`

	// Language is the default response language when the client sends none.
	Language string `json:"language" mapstructure:"language"`

	Agent     AgentConfig     `json:"agent" mapstructure:"agent"`
	AI        AIConfig        `json:"ai" mapstructure:"ai"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	Actions   ActionsConfig   `json:"actions" mapstructure:"actions"`
	Session   SessionConfig   `json:"session" mapstructure:"session"`
	Gateway   GatewayConfig   `json:"gateway" mapstructure:"gateway"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig selects the reasoning models. Models are written as
// "<provider>:<model>", e.g. "anthropic:claude-3-5-sonnet-latest".
type AgentConfig struct {
	Name                 string  `json:"name" mapstructure:"name"`
	ChatModel            string  `json:"chat_model" mapstructure:"chat_model"`
	SummarizeModel       string  `json:"summarize_model" mapstructure:"summarize_model"`
	Temperature          float64 `json:"temperature" mapstructure:"temperature"`
	SummarizeTemperature float64 `json:"summarize_temperature" mapstructure:"summarize_temperature"`
	MaxTokens            int     `json:"max_tokens" mapstructure:"max_tokens"`
	// PromptsDir overrides the embedded prompt templates, defaults to <data_dir>/prompts.
	PromptsDir string `json:"prompts_dir" mapstructure:"prompts_dir"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai, gemini, ollama
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// MemoryConfig controls the rolling buffer and the durable log.
type MemoryConfig struct {
	Threshold int    `json:"threshold" mapstructure:"threshold"`
	Backend   string `json:"backend" mapstructure:"backend"` // sqlite, jsonl
	DBPath    string `json:"db_path" mapstructure:"db_path"`
	JSONLDir  string `json:"jsonl_dir" mapstructure:"jsonl_dir"`
}

// ActionsConfig holds tool configuration
type ActionsConfig struct {
	MaxParallel    int      `json:"max_parallel" mapstructure:"max_parallel"` // 0 means one worker per CPU
	TimeoutSeconds int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Enabled        []string `json:"enabled" mapstructure:"enabled"` // empty enables every tool
	MusicBaseURL   string   `json:"music_base_url" mapstructure:"music_base_url"`
	ReaderMaxChars int      `json:"reader_max_chars" mapstructure:"reader_max_chars"`
}

// SessionConfig holds the conversation policy.
type SessionConfig struct {
	ExitKeywords     []string `json:"exit_keywords" mapstructure:"exit_keywords"`
	Farewell         string   `json:"farewell" mapstructure:"farewell"`
	ErrorNotice      string   `json:"error_notice" mapstructure:"error_notice"`
	NameConfidence   float64  `json:"name_confidence" mapstructure:"name_confidence"`
	DesireConfidence float64  `json:"desire_confidence" mapstructure:"desire_confidence"`
}

// GatewayConfig holds the mobile websocket gateway configuration
type GatewayConfig struct {
	Port int    `json:"port" mapstructure:"port"`
	Host string `json:"host" mapstructure:"host"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TelemetryConfig toggles otel tracing.
type TelemetryConfig struct {
	Tracing     bool    `json:"tracing" mapstructure:"tracing"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// MinMemoryThreshold is the smallest compaction threshold that shrinks the
// rolling buffer.
const MinMemoryThreshold = 4

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"

	BackendSQLite = "sqlite"
	BackendJSONL  = "jsonl"
)

var supportedProviders = []string{"anthropic", "openai", "gemini", "ollama"}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Device:   DeviceDesktop,
		Language: "en",
		Agent: AgentConfig{
			Name:                 "EVA",
			ChatModel:            "ollama:llama3.1",
			SummarizeModel:       "ollama:llama3.1",
			Temperature:          0.8,
			SummarizeTemperature: 0,
			MaxTokens:            2048,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		Memory: MemoryConfig{
			Threshold: 10,
			Backend:   BackendSQLite,
		},
		Actions: ActionsConfig{
			TimeoutSeconds: 180,
			MusicBaseURL:   "http://localhost:3000",
			ReaderMaxChars: 4000,
		},
		Session: SessionConfig{
			ExitKeywords:     []string{"bye", "exit"},
			Farewell:         "NOW EXITING E.V.A.",
			ErrorNotice:      "Something went wrong and I have to stop here.",
			NameConfidence:   0.8,
			DesireConfidence: 0.7,
		},
		Gateway: GatewayConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "eva",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// ParseModelRef splits "<provider>:<model>".
func ParseModelRef(ref string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(ref), ":")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("invalid model reference %q (want provider:model)", ref)
	}
	provider = strings.ToLower(provider)
	if !contains(supportedProviders, provider) {
		return "", "", fmt.Errorf("unsupported provider %s (must be: %s)", provider, strings.Join(supportedProviders, ", "))
	}
	return provider, model, nil
}

// Profile returns the highest priority profile for a provider.
func (c *Config) Profile(provider string) (AIProfile, bool) {
	var best AIProfile
	found := false
	for _, p := range c.AI.Profiles {
		if p.Provider != provider {
			continue
		}
		if !found || p.Priority > best.Priority {
			best = p
			found = true
		}
	}
	return best, found
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Device != DeviceDesktop && c.Device != DeviceMobile {
		return fmt.Errorf("invalid device %s (must be: desktop, mobile)", c.Device)
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if !contains(supportedProviders, profile.Provider) {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: %s)", profile.ID, profile.Provider, strings.Join(supportedProviders, ", "))
		}
		if profile.Provider != "ollama" && profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
	}

	for _, ref := range []string{c.Agent.ChatModel, c.Agent.SummarizeModel} {
		provider, _, err := ParseModelRef(ref)
		if err != nil {
			return fmt.Errorf("agent: %w", err)
		}
		if provider == "ollama" {
			continue
		}
		if _, ok := c.Profile(provider); !ok {
			return fmt.Errorf("agent: model %s needs an AI profile for provider %s", ref, provider)
		}
	}

	if c.Memory.Threshold < MinMemoryThreshold {
		return fmt.Errorf("memory threshold must be at least %d, got %d", MinMemoryThreshold, c.Memory.Threshold)
	}
	if c.Memory.Backend != BackendSQLite && c.Memory.Backend != BackendJSONL {
		return fmt.Errorf("invalid memory backend %s (must be: sqlite, jsonl)", c.Memory.Backend)
	}

	if c.Actions.MaxParallel < 0 {
		return fmt.Errorf("actions.max_parallel must be >= 0")
	}
	if c.Actions.TimeoutSeconds <= 0 {
		return fmt.Errorf("actions.timeout_seconds must be positive")
	}

	if len(c.Session.ExitKeywords) == 0 {
		return fmt.Errorf("session.exit_keywords must not be empty")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %g", c.Telemetry.SampleRatio)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

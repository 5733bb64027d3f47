package config

import (
	"fmt"
	"strings"
)

// Validator checks individual values and reports every problem at once,
// where Config.Validate stops at the first structural error.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if provider == "ollama" {
		return nil
	}
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateConfidence checks a setup acceptance threshold.
func (v *Validator) ValidateConfidence(name string, c float64) error {
	if c <= 0 || c > 1 {
		return fmt.Errorf("%s must be in (0, 1], got %.2f", name, c)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if contains(validLevels, level) {
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates a TCP port.
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	for i, profile := range cfg.AI.Profiles {
		if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
			errs = append(errs, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
	}

	if err := v.ValidateTemperature(cfg.Agent.Temperature); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}
	if err := v.ValidateTemperature(cfg.Agent.SummarizeTemperature); err != nil {
		errs = append(errs, fmt.Errorf("agent summarizer: %w", err))
	}
	if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}

	if err := v.ValidateConfidence("session.name_confidence", cfg.Session.NameConfidence); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateConfidence("session.desire_confidence", cfg.Session.DesireConfidence); err != nil {
		errs = append(errs, err)
	}
	for i, kw := range cfg.Session.ExitKeywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Errorf("session.exit_keywords[%d] is blank", i))
		}
	}

	if cfg.Device == DeviceMobile {
		if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}

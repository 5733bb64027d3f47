package tools

import (
	"github.com/harun/eva/internal/config"
	"github.com/harun/eva/pkg/actions"
	"github.com/rs/zerolog"
)

// Builtins returns every built-in tool configured from cfg.
func Builtins(cfg config.ActionsConfig, logger zerolog.Logger) []actions.Tool {
	return []actions.Tool{
		MusicMaker(MusicConfig{BaseURL: cfg.MusicBaseURL, Logger: logger}),
		PageReader(ReaderConfig{MaxChars: cfg.ReaderMaxChars, Logger: logger}),
	}
}

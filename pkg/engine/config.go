package engine

import "github.com/famulus-ai/famulus/pkg/config"

// Config holds the per-engine settings resolved from a profile and the
// engine section of the configuration file.
type Config struct {
	// Backend names the adapter kind, used as a metric label.
	Backend string

	// Model is passed through to the provider on every request.
	Model string

	// Temperature and MaxTokens are optional sampling parameters.
	Temperature *float64
	MaxTokens   *int

	// SystemPrompt, when set, is committed as the first message of a
	// new conversation.
	SystemPrompt string

	// MaxToolRounds bounds tool-call rounds within one turn.
	MaxToolRounds int
}

// FromProfile assembles an engine Config from a resolved profile and
// the engine configuration section.
func FromProfile(p config.Profile, ec config.EngineConfig) Config {
	return Config{
		Backend:       string(p.Backend),
		Model:         p.Model,
		Temperature:   p.Temperature,
		MaxTokens:     p.MaxTokens,
		SystemPrompt:  ec.SystemPrompt,
		MaxToolRounds: ec.MaxToolRounds,
	}
}

// maxToolRounds returns the effective round limit, defaulting to 8.
func (c Config) maxToolRounds() int {
	if c.MaxToolRounds <= 0 {
		return 8
	}
	return c.MaxToolRounds
}

package nlu

import (
	"fmt"
	"time"

	"github.com/helixir/literature-assistant/internal/observability"
)

// FactoryConfig holds the parameters needed to create an Analyzer.
// This is defined in the nlu package to avoid importing the config package,
// keeping the nlu package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the NLU provider name ("openai" or "anthropic").
	Provider string
	// Temperature is the model temperature setting.
	Temperature float64
	// Timeout is the timeout for API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
	// Metrics receives per-request counters. May be nil.
	Metrics *observability.Metrics
}

// NewAnalyzer creates an Analyzer based on the configuration.
// Supports "openai" and "anthropic" providers. Returns an error for
// unsupported or empty provider values.
func NewAnalyzer(cfg FactoryConfig) (Analyzer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIAnalyzer(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.Metrics), nil
	case "anthropic":
		return NewAnthropicAnalyzer(cfg.Anthropic, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.Metrics), nil
	default:
		return nil, fmt.Errorf("unsupported NLU provider: %q", cfg.Provider)
	}
}

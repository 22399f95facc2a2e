// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

type Config struct {
	// Provider credentials. BaseURL is optional and points the client at any
	// OpenAI-compatible endpoint.
	APIKey  string
	BaseURL string

	// Model parameters
	Model       string
	Temperature float32

	// Upper bound for a whole streamed completion.
	Timeout time.Duration
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("CHAT_MODEL is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

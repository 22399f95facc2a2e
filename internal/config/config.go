// File: internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// DefaultSystemPrompt steers the assistant toward triage-style medical guidance.
const DefaultSystemPrompt = "You are a helpful, empathetic, and knowledgeable AI doctor. " +
	"You are capable of providing basic medical advice, triaging symptoms, " +
	"and suggesting when someone should see a real doctor. " +
	"You do not diagnose or prescribe. Always recommend consulting a human doctor " +
	"for serious or persistent issues. Respond in a professional and clear tone."

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"bluebox.db"`
	JWTSecretKey string `env:"JWT_SECRET_KEY"`

	// Provider behind the inference endpoint.
	OpenAIAPIKey  string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string  `env:"OPENAI_BASE_URL"`
	ChatModel     string  `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	Temperature   float32 `env:"TEMPERATURE" envDefault:"0.7"`
	SystemPrompt  string  `env:"SYSTEM_PROMPT"`

	// Where session controllers send their history. Defaults to this server's own endpoint.
	InferenceURL  string        `env:"INFERENCE_URL"`
	StreamTimeout time.Duration `env:"STREAM_TIMEOUT" envDefault:"2m"`

	SessionCacheSize int      `env:"SESSION_CACHE_SIZE" envDefault:"1024"`
	CORSOrigins      []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads configuration from environment variables or .env file.
func Load() (*Config, error) {
	if strings.ToLower(os.Getenv("ENV")) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills derived defaults and enforces production requirements.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.InferenceURL == "" {
		c.InferenceURL = fmt.Sprintf("http://localhost:%s/api/chat", c.ServerPort)
	}
	if c.StreamTimeout <= 0 {
		return fmt.Errorf("STREAM_TIMEOUT must be positive")
	}
	if c.SessionCacheSize <= 0 {
		return fmt.Errorf("SESSION_CACHE_SIZE must be positive")
	}

	if c.IsProduction() {
		missing := []string{}
		if c.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required production environment variables: %v", missing)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

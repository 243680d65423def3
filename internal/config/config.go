package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models briefline.yml. The oracle API key is deliberately absent:
// it comes from the environment, never the file.
type Config struct {
	Oracle struct {
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxTokens      int    `yaml:"max_tokens"`
	} `yaml:"oracle"`
	Limits Limits `yaml:"limits"`
}

// Limits bounds the caller-side loops around the agent core. The three caps
// are independent: technical attempts cover malformed oracle output, quality
// retries cover thin updates, clarification rounds cover follow-up
// questions.
type Limits struct {
	TechnicalAttempts   int `yaml:"technical_attempts"`
	QualityRetries      int `yaml:"quality_retries"`
	ClarificationRounds int `yaml:"clarification_rounds"`
}

// OracleTimeout returns the configured oracle timeout.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with bl init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("config.oracle.base_url is required")
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("config.oracle.model is required")
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.oracle.timeout_seconds must be positive")
	}
	if c.Limits.TechnicalAttempts < 1 {
		return fmt.Errorf("config.limits.technical_attempts must be at least 1")
	}
	if c.Limits.QualityRetries < 0 {
		return fmt.Errorf("config.limits.quality_retries must not be negative")
	}
	if c.Limits.ClarificationRounds < 1 {
		return fmt.Errorf("config.limits.clarification_rounds must be at least 1")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "briefline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	cfg, _ := FromYAML([]byte(defaultTemplate))
	return cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `oracle:
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  timeout_seconds: 60
  max_tokens: 1024

limits:
  # total attempts for one oracle call whose output fails validation
  technical_attempts: 2
  # re-prompts for low-information daily updates before accepting as-is
  quality_retries: 2
  # clarification rounds before the last report is accepted as-is
  clarification_rounds: 5
`

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models venturelab.yml.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Research  StageLLMConfig  `yaml:"research"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Compile   StageLLMConfig  `yaml:"compile"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
}

// LLMConfig is the default OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	RatePerMinute  int     `yaml:"rate_per_minute"`
	Burst          int     `yaml:"burst"`
}

// StageLLMConfig overrides the default endpoint for one stage. Empty fields inherit.
type StageLLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

type ScoringConfig struct {
	StageLLMConfig  `yaml:",inline"`
	RubricVersion   string  `yaml:"rubric_version"`
	GreenThreshold  float64 `yaml:"green_threshold"`
	YellowThreshold float64 `yaml:"yellow_threshold"`
}

type LifecycleConfig struct {
	AllowParkedRescore bool `yaml:"allow_parked_rescore"`
	BlockRedApproval   bool `yaml:"block_red_approval"`
}

type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	AllowActorHeader bool   `yaml:"allow_actor_header"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PromptsConfig struct {
	OverrideDir string `yaml:"override_dir"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Resolved returns the stage settings with defaults from the LLM section filled in.
func (c *Config) Resolved(stage StageLLMConfig) StageLLMConfig {
	out := stage
	if out.BaseURL == "" {
		out.BaseURL = c.LLM.BaseURL
		if out.APIKey == "" {
			out.APIKey = c.LLM.APIKey
		}
	}
	if out.Model == "" {
		out.Model = c.LLM.Model
	}
	if out.Temperature == nil {
		t := c.LLM.Temperature
		out.Temperature = &t
	}
	return out
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return fmt.Errorf("config.llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("config.llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config.llm.temperature must be within [0,2]")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("config.llm.max_retries must be >= 0")
	}
	if c.LLM.RatePerMinute < 0 || c.LLM.Burst < 0 {
		return fmt.Errorf("config.llm rate limits must be >= 0")
	}
	if c.Scoring.RubricVersion == "" {
		return fmt.Errorf("config.scoring.rubric_version is required")
	}
	if c.Scoring.YellowThreshold <= 0 || c.Scoring.GreenThreshold > 100 {
		return fmt.Errorf("config.scoring thresholds must be within (0,100]")
	}
	if c.Scoring.YellowThreshold > c.Scoring.GreenThreshold {
		return fmt.Errorf("config.scoring.yellow_threshold must not exceed green_threshold")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("config.cache.ttl_seconds must be >= 0")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.logging.format must be json or console")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "venturelab.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses raw YAML on top of the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `llm:
  base_url: https://openrouter.ai/api/v1
  model: anthropic/claude-3.5-sonnet
  temperature: 0.4
  max_tokens: 4096
  timeout_seconds: 120
  max_retries: 3
  rate_per_minute: 30
  burst: 3

research:
  model: ""

scoring:
  rubric_version: v1
  green_threshold: 70
  yellow_threshold: 50
  temperature: 0.2

compile:
  temperature: 0.3

lifecycle:
  allow_parked_rescore: false
  block_red_approval: false

cache:
  redis_addr: ""
  ttl_seconds: 604800

server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  allow_actor_header: false

logging:
  level: info
  format: console
`

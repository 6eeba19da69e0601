package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. VENTURELAB_LLM_API_KEY.
const EnvPrefix = "VENTURELAB"

var stringOverrides = map[string]func(*Config) *string{
	"llm.base_url":           func(c *Config) *string { return &c.LLM.BaseURL },
	"llm.api_key":            func(c *Config) *string { return &c.LLM.APIKey },
	"llm.model":              func(c *Config) *string { return &c.LLM.Model },
	"research.base_url":      func(c *Config) *string { return &c.Research.BaseURL },
	"research.api_key":       func(c *Config) *string { return &c.Research.APIKey },
	"research.model":         func(c *Config) *string { return &c.Research.Model },
	"scoring.model":          func(c *Config) *string { return &c.Scoring.Model },
	"scoring.rubric_version": func(c *Config) *string { return &c.Scoring.RubricVersion },
	"compile.model":          func(c *Config) *string { return &c.Compile.Model },
	"cache.redis_addr":       func(c *Config) *string { return &c.Cache.RedisAddr },
	"cache.redis_password":   func(c *Config) *string { return &c.Cache.RedisPassword },
	"server.addr":            func(c *Config) *string { return &c.Server.Addr },
	"server.base_path":       func(c *Config) *string { return &c.Server.BasePath },
	"auth.jwt_secret":        func(c *Config) *string { return &c.Auth.JWTSecret },
	"logging.level":          func(c *Config) *string { return &c.Logging.Level },
	"logging.format":         func(c *Config) *string { return &c.Logging.Format },
	"prompts.override_dir":   func(c *Config) *string { return &c.Prompts.OverrideDir },
}

var boolOverrides = map[string]func(*Config) *bool{
	"lifecycle.allow_parked_rescore": func(c *Config) *bool { return &c.Lifecycle.AllowParkedRescore },
	"lifecycle.block_red_approval":   func(c *Config) *bool { return &c.Lifecycle.BlockRedApproval },
	"auth.allow_actor_header":        func(c *Config) *bool { return &c.Auth.AllowActorHeader },
}

var floatOverrides = map[string]func(*Config) *float64{
	"scoring.green_threshold":  func(c *Config) *float64 { return &c.Scoring.GreenThreshold },
	"scoring.yellow_threshold": func(c *Config) *float64 { return &c.Scoring.YellowThreshold },
	"llm.temperature":          func(c *Config) *float64 { return &c.LLM.Temperature },
}

var intOverrides = map[string]func(*Config) *int{
	"llm.max_retries":     func(c *Config) *int { return &c.LLM.MaxRetries },
	"llm.rate_per_minute": func(c *Config) *int { return &c.LLM.RatePerMinute },
	"llm.timeout_seconds": func(c *Config) *int { return &c.LLM.TimeoutSeconds },
	"cache.ttl_seconds":   func(c *Config) *int { return &c.Cache.TTLSeconds },
	"cache.redis_db":      func(c *Config) *int { return &c.Cache.RedisDB },
}

// NewViper returns a viper instance reading VENTURELAB_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads venturelab.yml from the workspace (defaults when absent), loads
// an optional .env file, applies environment overrides and validates.
func Load(workspace string, v *viper.Viper) (*Config, error) {
	if err := loadDotEnv(workspace); err != nil {
		return nil, err
	}
	cfg, err := LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}
	if v == nil {
		v = NewViper()
	}
	ApplyOverrides(cfg, v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides copies every key set in v onto cfg.
func ApplyOverrides(cfg *Config, v *viper.Viper) {
	for key, field := range stringOverrides {
		if s := v.GetString(key); s != "" {
			*field(cfg) = s
		}
	}
	for key, field := range boolOverrides {
		if v.IsSet(key) {
			*field(cfg) = v.GetBool(key)
		}
	}
	for key, field := range floatOverrides {
		if v.IsSet(key) {
			*field(cfg) = v.GetFloat64(key)
		}
	}
	for key, field := range intOverrides {
		if v.IsSet(key) {
			*field(cfg) = v.GetInt(key)
		}
	}
}

func loadDotEnv(workspace string) error {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AI     AIConfig    `yaml:"ai" validate:"required"`
	Paths  PathsConfig `yaml:"paths"`
	Limits Limits      `yaml:"limits" validate:"required"`
}

type AIConfig struct {
	APIKey  string `yaml:"api_key" validate:"required,min=20"`
	Model   string `yaml:"model" validate:"required"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Timeout int    `yaml:"timeout" validate:"required,min=10,max=3600"`
}

type PathsConfig struct {
	SessionDir string `yaml:"session_dir"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	configPath := getConfigPath()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg := defaultConfig()
		if apiKey := apiKeyFromEnv(); apiKey != "" {
			cfg.AI.APIKey = apiKey
		}
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.AI.APIKey == "" || cfg.AI.APIKey == "${LESSONFLOW_API_KEY}" {
		cfg.AI.APIKey = apiKeyFromEnv()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Model:   "claude-3-5-sonnet-20241022",
			BaseURL: "https://api.anthropic.com/v1",
			Timeout: 120,
		},
		Limits: DefaultLimits(),
	}
}

func apiKeyFromEnv() string {
	for _, name := range []string{"LESSONFLOW_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

func getConfigPath() string {
	if path := os.Getenv("LESSONFLOW_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lessonflow", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lessonflow", "config.yaml")
}

func (c *Config) validate() error {
	if c.Paths.SessionDir == "" {
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			c.Paths.SessionDir = filepath.Join(xdgData, "lessonflow", "sessions")
		} else {
			home, _ := os.UserHomeDir()
			c.Paths.SessionDir = filepath.Join(home, ".local", "share", "lessonflow", "sessions")
		}
	}

	if c.Limits.MaxConcurrentGenerators == 0 {
		c.Limits = DefaultLimits()
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

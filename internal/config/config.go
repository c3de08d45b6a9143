// Package config loads server settings from an optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	Metrics Metrics `yaml:"metrics"`
	GitHub  GitHub  `yaml:"github"`
	Gemini  Gemini  `yaml:"gemini"`
	Log     Log     `yaml:"log"`
}

type HTTP struct {
	Port              string        `yaml:"port" env:"PORT" env-default:"3001"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT" env-default:"10s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Port    string `yaml:"port" env:"METRICS_PORT" env-default:"9100"`
}

type GitHub struct {
	// APIURL is empty for api.github.com.
	APIURL  string        `yaml:"api_url" env:"GITHUB_API_URL"`
	Timeout time.Duration `yaml:"timeout" env:"GITHUB_TIMEOUT" env-default:"30s"`
}

type Gemini struct {
	// APIKey is empty when analysis is disabled.
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
}

type Log struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

// Addr returns the listen address of the API server.
func (h HTTP) Addr() string {
	return ":" + h.Port
}

// Load reads CONFIG_PATH when set, then applies the environment on top.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.HTTP.Port {
		return fmt.Errorf("METRICS_PORT must differ from PORT (%s)", c.HTTP.Port)
	}
	return nil
}

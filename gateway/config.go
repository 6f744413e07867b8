// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds gateway runtime configuration. Values are resolved in
// priority order: environment variables > config file > defaults.
type Config struct {
	Port string

	DatabaseURL string
	RedisURL    string

	JWTSecret string

	AnthropicAPIKey string
	OpenAIAPIKey    string

	SessionTTL      time.Duration
	JanitorInterval time.Duration
}

// fileConfig is the YAML shape; durations are strings ("30m") so the
// file stays readable.
type fileConfig struct {
	Port            string `yaml:"port"`
	DatabaseURL     string `yaml:"database_url"`
	RedisURL        string `yaml:"redis_url"`
	JWTSecret       string `yaml:"jwt_secret"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	SessionTTL      string `yaml:"session_ttl"`
	JanitorInterval string `yaml:"janitor_interval"`
}

// LoadConfig resolves gateway configuration. A YAML file named by
// NEXUS_CONFIG_FILE provides the base layer; environment variables
// override it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:            "8080",
		SessionTTL:      30 * time.Minute,
		JanitorInterval: 5 * time.Minute,
	}

	if path := os.Getenv("NEXUS_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if err := applyFileConfig(cfg, fc); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("NEXUS_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", v, err)
		}
		cfg.SessionTTL = d
	}

	cfg.DatabaseURL = resolveDatabaseURL(cfg.DatabaseURL)

	return cfg, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.JWTSecret != "" {
		cfg.JWTSecret = fc.JWTSecret
	}
	if fc.AnthropicAPIKey != "" {
		cfg.AnthropicAPIKey = fc.AnthropicAPIKey
	}
	if fc.OpenAIAPIKey != "" {
		cfg.OpenAIAPIKey = fc.OpenAIAPIKey
	}
	if fc.SessionTTL != "" {
		d, err := time.ParseDuration(fc.SessionTTL)
		if err != nil {
			return fmt.Errorf("session_ttl: %w", err)
		}
		cfg.SessionTTL = d
	}
	if fc.JanitorInterval != "" {
		d, err := time.ParseDuration(fc.JanitorInterval)
		if err != nil {
			return fmt.Errorf("janitor_interval: %w", err)
		}
		cfg.JanitorInterval = d
	}
	return nil
}

// resolveDatabaseURL builds the connection string. Separate DATABASE_*
// env vars take priority, then DATABASE_URL, then the config file
// value. The password is URL-encoded because the URI format breaks on
// special characters.
func resolveDatabaseURL(fromFile string) string {
	dbHost := os.Getenv("DATABASE_HOST")
	dbPassword := os.Getenv("DATABASE_PASSWORD")

	if dbHost != "" && dbPassword != "" {
		dbPort := os.Getenv("DATABASE_PORT")
		if dbPort == "" {
			dbPort = "5432"
		}
		dbName := os.Getenv("DATABASE_NAME")
		if dbName == "" {
			dbName = "nexus"
		}
		dbUser := os.Getenv("DATABASE_USER")
		if dbUser == "" {
			dbUser = "nexus_app"
		}
		dbSSLMode := os.Getenv("DATABASE_SSLMODE")
		if dbSSLMode == "" {
			dbSSLMode = "require"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			url.QueryEscape(dbUser), url.QueryEscape(dbPassword), dbHost, dbPort, dbName, dbSSLMode)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}

	return fromFile
}

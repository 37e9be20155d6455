// Package config holds all configuration for the application, loaded through
// viper from file, environment, and flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/incidentwire/incidentwire/pkg/nlp"
	"github.com/incidentwire/incidentwire/pkg/rank"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Pipeline concurrency and timeout configuration
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Ranker configuration
	Ranker RankerConfig `mapstructure:"ranker"`

	// NLP (extraction backend) configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// CircuitBreaker configuration for the extraction backend
	CircuitBreaker nlp.BreakerConfig `mapstructure:"circuit_breaker"`

	// Sources configuration
	Sources SourcesConfig `mapstructure:"sources"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Colored bool   `mapstructure:"colored"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// PipelineConfig holds the default concurrency profile for new sessions.
// Widths are explicit constructor inputs to the pipeline, never ambient
// process state; a request may override them per session.
type PipelineConfig struct {
	FetchWidth            int `mapstructure:"fetch_width"`
	ExtractWidth          int `mapstructure:"extract_width"`
	FetchTimeoutSeconds   int `mapstructure:"fetch_timeout_seconds"`
	ExtractTimeoutSeconds int `mapstructure:"extract_timeout_seconds"`
	SessionTimeoutSeconds int `mapstructure:"session_timeout_seconds"`
}

// FetchTimeout returns the per-fetch deadline.
func (c PipelineConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// ExtractTimeout returns the per-extraction deadline.
func (c PipelineConfig) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutSeconds) * time.Second
}

// SessionTimeout returns the aggregate session deadline; zero disables it.
func (c PipelineConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// RankerConfig holds the relevance weighting. The weights are deliberately
// tunable configuration, not constants.
type RankerConfig struct {
	Weights   rank.Weights `mapstructure:"weights"`
	Threshold float64      `mapstructure:"threshold"`
}

// NLPConfig holds configuration for the extraction model backend.
type NLPConfig struct {
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// SourcesConfig points at the yaml source registry.
type SourcesConfig struct {
	Registry string `mapstructure:"registry"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.colored", true)

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Pipeline defaults. The extraction width defaults to 1: the narrowest
	// profile is the only one that holds up when the inference backend is
	// co-located and memory-bound.
	viper.SetDefault("pipeline.fetch_width", 8)
	viper.SetDefault("pipeline.extract_width", 1)
	viper.SetDefault("pipeline.fetch_timeout_seconds", 20)
	viper.SetDefault("pipeline.extract_timeout_seconds", 90)
	viper.SetDefault("pipeline.session_timeout_seconds", 0)

	// Ranker defaults
	viper.SetDefault("ranker.threshold", rank.DefaultThreshold)
	viper.SetDefault("ranker.weights.text", 0.5)
	viper.SetDefault("ranker.weights.location", 0.2)
	viper.SetDefault("ranker.weights.category", 0.2)
	viper.SetDefault("ranker.weights.date", 0.1)

	// NLP defaults
	viper.SetDefault("nlp.model", "gpt-4o-mini")
	viper.SetDefault("nlp.temperature", 0.1)
	viper.SetDefault("nlp.max_tokens", 1024)
	viper.SetDefault("nlp.max_retries", 2)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Sources defaults
	viper.SetDefault("sources.registry", "sources.yaml")
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.NLP.APIKey == "" {
		config.NLP.APIKey = apiKey
	}
	if baseURL := os.Getenv("NLP_BASE_URL"); baseURL != "" {
		config.NLP.BaseURL = baseURL
	}
}

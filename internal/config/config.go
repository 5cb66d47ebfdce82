package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8090"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/amts.log"`
}

// PipelineConfig contains the slice-processing pipeline configuration
type PipelineConfig struct {
	// SettingsPath points at the Settings workbook (Settings + FileProfiles sheets)
	SettingsPath string `yaml:"settings_path" envconfig:"SETTINGS_PATH" default:"Settings.xlsx"`
	// OutputRoot is the base directory for slice exports when a row carries
	// no ExportFolder of its own
	OutputRoot string `yaml:"output_root" envconfig:"OUTPUT_ROOT" default:"output"`
	// PollInterval bounds how long the watcher sleeps between idle passes
	// when no filesystem event arrives
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL" default:"60s"`
	// Debounce collapses bursts of workbook-save events into one run
	Debounce time.Duration `yaml:"debounce" envconfig:"DEBOUNCE" default:"2s"`
	// ForceFull wipes the slice cache on every non-initial run
	ForceFull bool `yaml:"force_full" envconfig:"FORCE_FULL" default:"false"`
}

// SecurityConfig contains HTTP hardening configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// TelemetryConfig controls the OpenTelemetry trace exporter
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Service string `yaml:"service" envconfig:"SERVICE" default:"amts-pipeline"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables win over file values.
func Load() (*Config, error) {
	return LoadFromFile(getConfigFilePath())
}

// LoadFromFile loads configuration from the given YAML file merged with
// AMTS_* environment variables. Struct-tag defaults and environment fill
// the struct first; file values override where present.
func LoadFromFile(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("AMTS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs sanity checks on the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.SettingsPath == "" {
		return fmt.Errorf("pipeline settings_path must not be empty")
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline poll_interval must be positive: %s", c.Pipeline.PollInterval)
	}
	return nil
}

func getConfigFilePath() string {
	if path := os.Getenv("AMTS_CONFIG"); path != "" {
		return path
	}
	return "amts.yaml"
}

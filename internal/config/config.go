// Package config provides unified configuration loading for pdforever.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for pdforever.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Convert       ConvertConfig       `yaml:"convert"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
	CORS          CORSConfig          `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StorageConfig holds session workspace settings.
type StorageConfig struct {
	Root           string        `yaml:"root"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	CreateRetries  int           `yaml:"create_retries"`
	SweepOnStart   bool          `yaml:"sweep_on_start"`
	StaleAfter     time.Duration `yaml:"stale_after"`
}

// ConvertConfig holds conversion collaborator settings.
type ConvertConfig struct {
	Decoder       string `yaml:"decoder"` // fitz or poppler
	PopplerPath   string `yaml:"poppler_path"`
	DPI           int    `yaml:"dpi"`
	JPEGQuality   int    `yaml:"jpeg_quality"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// EventsConfig holds lifecycle event publishing settings.
type EventsConfig struct {
	Driver string      `yaml:"driver"` // log or redis
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// CORSConfig holds browser client settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		cfg.Storage.Root = ResolveRelativePath(path, cfg.Storage.Root)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   5 * time.Minute,
			GracefulShutdown: 10 * time.Second,
		},
		Storage: StorageConfig{
			Root:           "uploads",
			MaxUploadBytes: 32 * 1024 * 1024,
			CreateRetries:  5,
			SweepOnStart:   true,
			StaleAfter:     time.Hour,
		},
		Convert: ConvertConfig{
			Decoder:       "fitz",
			DPI:           200,
			JPEGQuality:   85,
			MaxConcurrent: runtime.NumCPU(),
		},
		Events: EventsConfig{
			Driver: "log",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Channel:  "sessions",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "pdforever",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		return fmt.Errorf("storage root is required")
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if c.Storage.CreateRetries < 1 {
		return fmt.Errorf("create_retries must be at least 1")
	}

	if c.Convert.Decoder != "fitz" && c.Convert.Decoder != "poppler" {
		return fmt.Errorf("invalid decoder: %s", c.Convert.Decoder)
	}

	if c.Convert.JPEGQuality < 1 || c.Convert.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.Convert.JPEGQuality)
	}

	if c.Convert.DPI < 36 || c.Convert.DPI > 1200 {
		return fmt.Errorf("dpi must be between 36 and 1200, got %d", c.Convert.DPI)
	}

	if c.Convert.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}

	if c.Events.Driver != "log" && c.Events.Driver != "redis" {
		return fmt.Errorf("invalid events driver: %s", c.Events.Driver)
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("UPLOAD_FOLDER"); v != "" {
		cfg.Storage.Root = v
	}

	if v := os.Getenv("MAX_CONTENT_LENGTH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.MaxUploadBytes = n
		}
	}

	if v := os.Getenv("POPPLER_PATH"); v != "" {
		cfg.Convert.PopplerPath = v
	}

	if v := os.Getenv("PDF_DECODER"); v != "" {
		cfg.Convert.Decoder = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Events.Driver = "redis"
		cfg.Events.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if targetPath == "" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}

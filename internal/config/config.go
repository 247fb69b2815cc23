package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the importer.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	RootServer RootServerConfig `yaml:"root_server"`
	Import     ImportConfig     `yaml:"import"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RootServerConfig holds BMLT root server API credentials.
type RootServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// ImportConfig holds submission pipeline tuning.
type ImportConfig struct {
	BatchSize        int     `yaml:"batch_size"`
	BatchDelayMs     int     `yaml:"batch_delay_ms"`
	MaxStoredResults int     `yaml:"max_stored_results"`
	MaxStoredErrors  int     `yaml:"max_stored_errors"`
	DefaultLatitude  float64 `yaml:"default_latitude"`
	DefaultLongitude float64 `yaml:"default_longitude"`
}

// RedisConfig holds the optional Redis progress store settings.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// DatabaseConfig holds the optional import-job audit database settings.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// StorageConfig holds the optional S3 file source settings.
type StorageConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AWSProfile string `yaml:"aws_profile"`
}

// BatchDelay returns the inter-batch pacing delay.
func (c ImportConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// Timeout returns the root server HTTP timeout.
func (c RootServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.RootServer.TimeoutSeconds == 0 {
		cfg.RootServer.TimeoutSeconds = 60
	}
	if cfg.RootServer.MaxRetries == 0 {
		cfg.RootServer.MaxRetries = 3
	}
	if cfg.Import.BatchSize == 0 {
		cfg.Import.BatchSize = 5
	}
	if cfg.Import.BatchDelayMs == 0 {
		cfg.Import.BatchDelayMs = 500
	}
	if cfg.Import.MaxStoredResults == 0 {
		cfg.Import.MaxStoredResults = 10
	}
	if cfg.Import.MaxStoredErrors == 0 {
		cfg.Import.MaxStoredErrors = 50
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BMLT_BASE_URL"); v != "" {
		cfg.RootServer.BaseURL = v
	}
	if v := os.Getenv("BMLT_USERNAME"); v != "" {
		cfg.RootServer.Username = v
	}
	if v := os.Getenv("BMLT_PASSWORD"); v != "" {
		cfg.RootServer.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("IMPORT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Import.BatchSize = n
		}
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
		cfg.Storage.Enabled = true
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Storage.Region = v
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	JWT       JWTConfig       `yaml:"jwt"`
	Auth      AuthConfig      `yaml:"auth"`
	Assistant AssistantConfig `yaml:"assistant"`
	Push      PushConfig      `yaml:"push"`
	NATS      NATSConfig      `yaml:"nats"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
}

// DatabaseConfig holds database configuration. Driver is "postgres" or "pebble".
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"dbname"`
	SSLMode    string `yaml:"sslmode"`
	URL        string `yaml:"url"`
	PebblePath string `yaml:"pebble_path"`
}

// StorageConfig selects where uploaded images go. Driver is "local" or "s3".
type StorageConfig struct {
	Driver   string    `yaml:"driver"`
	LocalDir string    `yaml:"local_dir"`
	AWS      AWSConfig `yaml:"aws"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region        string `yaml:"region"`
	S3Bucket      string `yaml:"s3_bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret  string `yaml:"secret"`
	TTLDays int    `yaml:"ttl_days"`
}

// AuthConfig holds the mock one-time-code settings and session cookie flags
type AuthConfig struct {
	OTPCode      string  `yaml:"otp_code"`
	OTPRate      float64 `yaml:"otp_rate"`
	OTPBurst     int     `yaml:"otp_burst"`
	CookieSecure bool    `yaml:"cookie_secure"`
	EnforceActor bool    `yaml:"enforce_actor"`
}

// AssistantConfig holds the text-generation API settings
type AssistantConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	APIVersion string        `yaml:"api_version"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// PushConfig holds APNs settings; push is off unless Enabled
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// NATSConfig holds the event bus settings; publishing is off when URL is empty
type NATSConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// RealtimeConfig holds websocket settings
type RealtimeConfig struct {
	AllowAnonymousJoin bool `yaml:"allow_anonymous_join"`
	SendBuffer         int  `yaml:"send_buffer"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file. A missing file is not an error:
// defaults and environment variables are enough to boot a development server.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.JWT.Secret = getEnv("JWT_SECRET", c.JWT.Secret)
	c.Assistant.APIKey = getEnv("GEMINI_API_KEY", c.Assistant.APIKey)
	c.Database.URL = getEnv("DATABASE_DSN", c.Database.URL)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pebble"
	}
	if c.Database.PebblePath == "" {
		c.Database.PebblePath = "data"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "uploads"
	}
	if c.JWT.TTLDays == 0 {
		c.JWT.TTLDays = 30
	}
	if c.Auth.OTPCode == "" {
		c.Auth.OTPCode = "1234"
	}
	if c.Auth.OTPRate == 0 {
		c.Auth.OTPRate = 0.2
	}
	if c.Auth.OTPBurst == 0 {
		c.Auth.OTPBurst = 3
	}
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = "https://generativelanguage.googleapis.com/"
	}
	if c.Assistant.APIVersion == "" {
		c.Assistant.APIVersion = "v1beta"
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = "gemini-2.5-flash"
	}
	if c.Assistant.Timeout == 0 {
		c.Assistant.Timeout = 15 * time.Second
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = "SOCIAL"
	}
	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 16
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required (jwt.secret or JWT_SECRET)")
	}
	switch c.Database.Driver {
	case "postgres", "pebble":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.AWS.S3Bucket == "" {
			return fmt.Errorf("storage.aws.s3_bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Push.Enabled && (c.Push.KeyPath == "" || c.Push.KeyID == "" || c.Push.TeamID == "" || c.Push.Topic == "") {
		return fmt.Errorf("push.key_path, push.key_id, push.team_id and push.topic are required when push is enabled")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

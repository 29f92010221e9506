// Package config provides configuration handling for flowstudio.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tcmartin/flowstudio/pkg/conductor"
	"github.com/tcmartin/flowstudio/pkg/logging"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Engine configuration
	Engine EngineConfig `json:"engine"`

	// Normalizer configuration
	Normalizer NormalizerConfig `json:"normalizer"`

	// Renderer configuration
	Renderer RendererConfig `json:"renderer"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host" validate:"required"`

	// Port to listen on
	Port int `json:"port" validate:"min=1,max=65535"`

	// TLS configuration
	TLS TLSConfig `json:"tls"`

	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// TrustedProxies are IPs or CIDR ranges whose X-Forwarded-For is honored
	TrustedProxies []string `json:"trusted_proxies,omitempty" validate:"omitempty,dive,ip|cidr"`
}

// TLSConfig contains TLS settings
type TLSConfig struct {
	// Enabled indicates whether TLS is enabled
	Enabled bool `json:"enabled"`

	// CertFile is the path to the certificate file
	CertFile string `json:"cert_file" validate:"required_if=Enabled true"`

	// KeyFile is the path to the key file
	KeyFile string `json:"key_file" validate:"required_if=Enabled true"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type" validate:"oneof=memory redis postgres postgresql"`

	// Redis configuration
	Redis RedisConfig `json:"redis"`

	// PostgreSQL configuration
	Postgres PostgresConfig `json:"postgres"`

	// CacheTTLSeconds is how long fetched engine definitions are cached; 0 keeps them
	CacheTTLSeconds int `json:"cache_ttl_seconds" validate:"gte=0"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	// Addr is host:port of the Redis server
	Addr string `json:"addr"`

	// Password for AUTH
	Password string `json:"password"`

	// DB number
	DB int `json:"db" validate:"gte=0"`

	// KeyPrefix namespaces all keys
	KeyPrefix string `json:"key_prefix"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	// Host is the database host
	Host string `json:"host"`

	// Port is the database port
	Port int `json:"port" validate:"gte=0,max=65535"`

	// Database is the database name
	Database string `json:"database"`

	// User is the database user
	User string `json:"user"`

	// Password is the database password
	Password string `json:"password"`

	// SSLMode is the SSL mode
	SSLMode string `json:"ssl_mode"`
}

// EngineConfig contains settings for the orchestration engine API
type EngineConfig struct {
	// BaseURL of the engine server
	BaseURL string `json:"base_url" validate:"omitempty,url"`

	// AccessKey sent as X-Authorization
	AccessKey string `json:"access_key,omitempty"`

	// TimeoutSeconds bounds each request
	TimeoutSeconds int `json:"timeout_seconds" validate:"gte=0"`

	// RetryCount is the number of retries after the first attempt
	RetryCount int `json:"retry_count" validate:"gte=0,lte=10"`
}

// NormalizerConfig contains normalizer settings
type NormalizerConfig struct {
	// ExtraFields are copied from editor configs in addition to the built-in catalog
	ExtraFields []string `json:"extra_fields,omitempty"`
}

// RendererConfig contains flowchart settings
type RendererConfig struct {
	// Direction is TD or LR
	Direction string `json:"direction" validate:"omitempty,oneof=TD LR"`

	// MaxDepth bounds nesting; 0 uses the renderer default
	MaxDepth int `json:"max_depth" validate:"gte=0"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level" validate:"omitempty,oneof=debug info warn error"`

	// Format is the log format
	Format string `json:"format" validate:"omitempty,oneof=json text"`

	// Output is the log output
	Output string `json:"output" validate:"omitempty,oneof=stdout stderr file"`

	// FilePath is the path to the log file
	FilePath string `json:"file_path" validate:"required_if=Output file"`
}

// LoadConfig loads the configuration from a file. Missing sections keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: storage.DefaultRedisKeyPrefix,
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "flowstudio",
				User:     "flowstudio",
				SSLMode:  "disable",
			},
			CacheTTLSeconds: 3600,
		},
		Engine: EngineConfig{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 30,
			RetryCount:     3,
		},
		Renderer: RendererConfig{
			Direction: "TD",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Create the directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field constraints on the whole configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			msgs := make([]string, 0, len(invalid))
			for _, fe := range invalid {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultSearchPaths lists where the server looks for a config file
func DefaultSearchPaths() []string {
	return []string{
		"./config.json",
		"./configs/config.json",
		filepath.Join(os.Getenv("HOME"), ".flowstudio", "config.json"),
		"/etc/flowstudio/config.json",
	}
}

// Discover loads the first readable config among paths
func Discover(paths []string) (*Config, string, error) {
	for _, path := range paths {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg, path, nil
		}
	}
	return nil, "", fmt.Errorf("no config file found in %s", strings.Join(paths, ", "))
}

// ProviderConfig translates the storage section for storage.NewProvider
func (s StorageConfig) ProviderConfig() storage.ProviderConfig {
	providerType, err := storage.ParseProviderType(s.Type)
	if err != nil {
		// Left for storage.NewProvider to reject
		providerType = storage.ProviderType(s.Type)
	}

	switch providerType {
	case storage.RedisProviderType:
		return storage.ProviderConfig{
			Type: storage.RedisProviderType,
			Redis: &storage.RedisProviderConfig{
				Addr:      s.Redis.Addr,
				Password:  s.Redis.Password,
				DB:        s.Redis.DB,
				KeyPrefix: s.Redis.KeyPrefix,
			},
		}
	case storage.PostgreSQLProviderType:
		return storage.ProviderConfig{
			Type: storage.PostgreSQLProviderType,
			PostgreSQL: &storage.PostgreSQLProviderConfig{
				Host:     s.Postgres.Host,
				Port:     s.Postgres.Port,
				User:     s.Postgres.User,
				Password: s.Postgres.Password,
				Database: s.Postgres.Database,
				SSLMode:  s.Postgres.SSLMode,
			},
		}
	default:
		return storage.ProviderConfig{Type: providerType}
	}
}

// CacheTTL returns the engine cache lifetime
func (s StorageConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// ClientConfig translates the engine section for conductor.NewClient
func (e EngineConfig) ClientConfig() conductor.Config {
	cfg := conductor.DefaultConfig()
	cfg.BaseURL = e.BaseURL
	cfg.AccessKey = e.AccessKey
	cfg.RetryCount = e.RetryCount
	if e.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(e.TimeoutSeconds) * time.Second
	}
	return cfg
}

// LogConfig translates the logging section for logging.NewLogger
func (l LoggingConfig) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:            l.Level,
		Format:           l.Format,
		Output:           l.Output,
		FilePath:         l.FilePath,
		IncludeTimestamp: true,
	}
}

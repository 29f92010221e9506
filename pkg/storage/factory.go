package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderType represents the type of storage provider
type ProviderType string

const (
	// MemoryProviderType keeps definitions and the engine cache in process
	MemoryProviderType ProviderType = "memory"

	// RedisProviderType stores definitions and the engine cache in Redis
	RedisProviderType ProviderType = "redis"

	// PostgreSQLProviderType stores definitions and the engine cache in PostgreSQL
	PostgreSQLProviderType ProviderType = "postgresql"
)

// ErrInvalidProviderConfig is returned when a backend is missing connection settings
var ErrInvalidProviderConfig = errors.New("invalid storage provider config")

// ParseProviderType resolves a configured backend name. Names are case
// insensitive, "postgres" is accepted for PostgreSQL and "" means memory.
func ParseProviderType(name string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(MemoryProviderType):
		return MemoryProviderType, nil
	case string(RedisProviderType):
		return RedisProviderType, nil
	case "postgres", string(PostgreSQLProviderType):
		return PostgreSQLProviderType, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", name)
	}
}

// ProviderConfig contains configuration for storage providers
type ProviderConfig struct {
	// Type is the type of storage provider to create
	Type ProviderType

	// Redis contains configuration for the Redis provider
	Redis *RedisProviderConfig

	// PostgreSQL contains configuration for the PostgreSQL provider
	PostgreSQL *PostgreSQLProviderConfig
}

// Validate checks that the selected backend has the settings it needs
// before any connection is attempted
func (c ProviderConfig) Validate() error {
	providerType, err := ParseProviderType(string(c.Type))
	if err != nil {
		return err
	}

	switch providerType {
	case RedisProviderType:
		if c.Redis == nil {
			return fmt.Errorf("%w: redis section is required", ErrInvalidProviderConfig)
		}
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("%w: redis address is required", ErrInvalidProviderConfig)
		}
		if strings.ContainsAny(c.Redis.KeyPrefix, " \t\r\n") {
			return fmt.Errorf("%w: redis key prefix %q contains whitespace", ErrInvalidProviderConfig, c.Redis.KeyPrefix)
		}

	case PostgreSQLProviderType:
		if c.PostgreSQL == nil {
			return fmt.Errorf("%w: postgres section is required", ErrInvalidProviderConfig)
		}
		if strings.TrimSpace(c.PostgreSQL.Host) == "" {
			return fmt.Errorf("%w: postgres host is required", ErrInvalidProviderConfig)
		}
		if strings.TrimSpace(c.PostgreSQL.Database) == "" {
			return fmt.Errorf("%w: postgres database is required", ErrInvalidProviderConfig)
		}
		if c.PostgreSQL.Port < 0 || c.PostgreSQL.Port > 65535 {
			return fmt.Errorf("%w: postgres port %d out of range", ErrInvalidProviderConfig, c.PostgreSQL.Port)
		}
	}
	return nil
}

// NewProvider validates the configuration and opens the selected backend.
// The returned provider still needs Initialize before use.
func NewProvider(config ProviderConfig) (StorageProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	providerType, _ := ParseProviderType(string(config.Type))
	switch providerType {
	case RedisProviderType:
		return NewRedisProvider(*config.Redis)
	case PostgreSQLProviderType:
		return NewPostgreSQLProvider(*config.PostgreSQL)
	default:
		return NewMemoryProvider(), nil
	}
}

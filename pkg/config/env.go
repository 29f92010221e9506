package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides configuration values from FLOWSTUDIO_* environment
// variables. Unparseable numbers are ignored.
func ApplyEnv(cfg *Config) {
	// Server configuration
	setString(&cfg.Server.Host, "FLOWSTUDIO_SERVER_HOST")
	setInt(&cfg.Server.Port, "FLOWSTUDIO_SERVER_PORT")
	if origins := os.Getenv("FLOWSTUDIO_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	if proxies := os.Getenv("FLOWSTUDIO_TRUSTED_PROXIES"); proxies != "" {
		cfg.Server.TrustedProxies = splitList(proxies)
	}

	// Storage configuration
	setString(&cfg.Storage.Type, "FLOWSTUDIO_STORAGE_TYPE")
	setInt(&cfg.Storage.CacheTTLSeconds, "FLOWSTUDIO_CACHE_TTL_SECONDS")

	// Redis configuration
	setString(&cfg.Storage.Redis.Addr, "FLOWSTUDIO_REDIS_ADDR")
	setString(&cfg.Storage.Redis.Password, "FLOWSTUDIO_REDIS_PASSWORD")
	setInt(&cfg.Storage.Redis.DB, "FLOWSTUDIO_REDIS_DB")

	// PostgreSQL configuration
	setString(&cfg.Storage.Postgres.Host, "FLOWSTUDIO_POSTGRES_HOST")
	setInt(&cfg.Storage.Postgres.Port, "FLOWSTUDIO_POSTGRES_PORT")
	setString(&cfg.Storage.Postgres.Database, "FLOWSTUDIO_POSTGRES_DATABASE")
	setString(&cfg.Storage.Postgres.User, "FLOWSTUDIO_POSTGRES_USER")
	setString(&cfg.Storage.Postgres.Password, "FLOWSTUDIO_POSTGRES_PASSWORD")
	setString(&cfg.Storage.Postgres.SSLMode, "FLOWSTUDIO_POSTGRES_SSL_MODE")

	// Engine configuration
	setString(&cfg.Engine.BaseURL, "FLOWSTUDIO_ENGINE_URL")
	setString(&cfg.Engine.AccessKey, "FLOWSTUDIO_ENGINE_ACCESS_KEY")
	setInt(&cfg.Engine.TimeoutSeconds, "FLOWSTUDIO_ENGINE_TIMEOUT_SECONDS")
	setInt(&cfg.Engine.RetryCount, "FLOWSTUDIO_ENGINE_RETRY_COUNT")

	// Normalizer and renderer configuration
	if fields := os.Getenv("FLOWSTUDIO_EXTRA_FIELDS"); fields != "" {
		cfg.Normalizer.ExtraFields = splitList(fields)
	}
	setString(&cfg.Renderer.Direction, "FLOWSTUDIO_RENDER_DIRECTION")
	setInt(&cfg.Renderer.MaxDepth, "FLOWSTUDIO_RENDER_MAX_DEPTH")

	// Logging configuration
	setString(&cfg.Logging.Level, "FLOWSTUDIO_LOG_LEVEL")
	setString(&cfg.Logging.Format, "FLOWSTUDIO_LOG_FORMAT")
	setString(&cfg.Logging.Output, "FLOWSTUDIO_LOG_OUTPUT")
	setString(&cfg.Logging.FilePath, "FLOWSTUDIO_LOG_FILE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

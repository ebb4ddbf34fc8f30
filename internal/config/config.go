package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "LESSONFORGE"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "lessonforge.db"
	defaultRedisAddress   = "redis://localhost:6379/0"
	defaultStorageBackend = "sqlite"
	defaultLogLevel       = "info"
	defaultDebounceMillis = 500
)

// StorageBackend selects the persistence implementation.
type StorageBackend string

const (
	// StorageBackendSQLite persists lessons in a local SQLite file.
	StorageBackendSQLite StorageBackend = "sqlite"
	// StorageBackendRedis persists lessons in a Redis instance.
	StorageBackendRedis StorageBackend = "redis"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	RedisAddress   string
	StorageBackend StorageBackend
	LogLevel       string
	SaveDebounce   time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("redis.address", defaultRedisAddress)
	configViper.SetDefault("storage.backend", defaultStorageBackend)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("save.debounce_ms", defaultDebounceMillis)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		RedisAddress:   configViper.GetString("redis.address"),
		StorageBackend: StorageBackend(configViper.GetString("storage.backend")),
		LogLevel:       configViper.GetString("log.level"),
		SaveDebounce:   time.Duration(configViper.GetInt("save.debounce_ms")) * time.Millisecond,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.StorageBackend {
	case StorageBackendSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case StorageBackendRedis:
		if strings.TrimSpace(c.RedisAddress) == "" {
			return fmt.Errorf("redis.address is required")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageBackendSQLite, StorageBackendRedis)
	}
	if c.SaveDebounce <= 0 {
		return fmt.Errorf("save.debounce_ms must be positive")
	}
	return nil
}

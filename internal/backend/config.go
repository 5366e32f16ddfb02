package backend

import (
	"fmt"

	"budgetbuddy/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Records RecordType
	Cache   CacheType
	Notify  NotifyType

	// Memory record store
	SeedFile string

	// Postgres record store
	DatabaseURL string

	// Cache stores
	CacheMaxEntries int
	SQLiteDBPath    string
	RedisURL        string

	// Sinks
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	NATSURL      string
	NATSSubject  string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Records:         RecordType(appConfig.RecordBackend),
		Cache:           CacheType(appConfig.CacheBackend),
		Notify:          NotifyType(appConfig.NotifyBackend),
		SeedFile:        appConfig.SeedFile,
		DatabaseURL:     appConfig.DatabaseURL,
		CacheMaxEntries: appConfig.CacheMaxEntries,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		RedisURL:        appConfig.RedisURL,
		AMQPURL:         appConfig.AMQPURL,
		AMQPExchange:    appConfig.AMQPExchange,
		AMQPQueue:       appConfig.AMQPQueue,
		NATSURL:         appConfig.NATSURL,
		NATSSubject:     appConfig.NATSSubject,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Records.IsValid() {
		return fmt.Errorf("invalid record backend: %s", c.Records)
	}
	if !c.Cache.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", c.Cache)
	}
	if !c.Notify.IsValid() {
		return fmt.Errorf("invalid notify backend: %s", c.Notify)
	}

	if c.Records == PostgresRecords && c.DatabaseURL == "" {
		return fmt.Errorf("database URL is required for postgres record backend")
	}

	switch c.Cache {
	case SQLiteCache:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite cache backend")
		}
	case RedisCache:
		if c.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for redis cache backend")
		}
	}

	switch c.Notify {
	case AMQPNotify:
		if c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP URL, exchange and queue are required for amqp notify backend")
		}
	case NATSNotify:
		if c.NATSURL == "" {
			return fmt.Errorf("NATS URL is required for nats notify backend")
		}
	}

	return nil
}

// GetRecordTypes returns all valid record store types
func GetRecordTypes() []RecordType {
	return []RecordType{MemoryRecords, PostgresRecords}
}

// GetCacheTypes returns all valid cache store types
func GetCacheTypes() []CacheType {
	return []CacheType{MemoryCache, SQLiteCache, RedisCache}
}

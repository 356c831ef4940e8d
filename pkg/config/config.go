// Package config binds command-line flags, GOCRM_ environment variables and
// an optional config file into a Config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, so --data-file is
// read from GOCRM_DATA_FILE.
const EnvPrefix = "GOCRM"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
)

// Flag names double as viper keys.
const (
	KeyConfig          = "config"
	KeyListen          = "listen"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyStore           = "store"
	KeyDataFile        = "data-file"
	KeySaveInterval    = "save-interval"
	KeyDynamoTable     = "dynamo-table"
	KeyDynamoRegion    = "dynamo-region"
	KeyDynamoEndpoint  = "dynamo-endpoint"
	KeySQLiteDSN       = "sqlite-dsn"
	KeyCacheSize       = "cache-size"
	KeySeed            = "seed"
	KeyMetrics         = "metrics"
	KeyShutdownTimeout = "shutdown-timeout"
)

// Config is the resolved process configuration.
type Config struct {
	Listen    string
	LogLevel  string
	LogFormat string

	Store string

	// Memory store
	DataFile     string
	SaveInterval time.Duration

	// DynamoDB store
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	// SQLite store
	SQLiteDSN string

	// CacheSize is the number of records cached in front of the DynamoDB
	// and SQLite stores. Zero disables the cache.
	CacheSize int

	Seed            bool
	Metrics         bool
	ShutdownTimeout time.Duration
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "path to a YAML, TOML or JSON config file")
	fs.String(KeyListen, ":8080", "HTTP listen address")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, "json", "log format (json, console)")
	fs.String(KeyStore, StoreMemory, "record store backend (memory, dynamodb, sqlite)")
	fs.String(KeyDataFile, "go-crm_data.gocrm", "snapshot file for the memory store; empty disables persistence")
	fs.Duration(KeySaveInterval, 0, "background snapshot interval for the memory store (e.g. 5m); 0 saves on shutdown only")
	fs.String(KeyDynamoTable, "users", "DynamoDB table name")
	fs.String(KeyDynamoRegion, "us-east-1", "DynamoDB region")
	fs.String(KeyDynamoEndpoint, "", "DynamoDB endpoint override (e.g. http://localhost:8000 for DynamoDB Local)")
	fs.String(KeySQLiteDSN, "file:go-crm.db", "SQLite data source name")
	fs.Int(KeyCacheSize, 0, "records cached by id in front of the dynamodb and sqlite stores; 0 disables")
	fs.Bool(KeySeed, false, "load the reference users on start")
	fs.Bool(KeyMetrics, true, "serve Prometheus metrics on /metrics")
	fs.Duration(KeyShutdownTimeout, 30*time.Second, "deadline for in-flight requests on shutdown")
}

// Bind connects v to the flags in fs and to the environment.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

// Load reads the config file named by the config key, if any, and resolves
// the settings. Precedence is flag, environment, file, default.
func Load(v *viper.Viper) (Config, error) {
	if path := strings.TrimSpace(v.GetString(KeyConfig)); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file %q: %w", path, err)
		}
		if info.IsDir() {
			return Config{}, fmt.Errorf("config file %q is a directory", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	cfg := Config{
		Listen:          v.GetString(KeyListen),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		Store:           strings.ToLower(strings.TrimSpace(v.GetString(KeyStore))),
		DataFile:        v.GetString(KeyDataFile),
		SaveInterval:    v.GetDuration(KeySaveInterval),
		DynamoTable:     v.GetString(KeyDynamoTable),
		DynamoRegion:    v.GetString(KeyDynamoRegion),
		DynamoEndpoint:  v.GetString(KeyDynamoEndpoint),
		SQLiteDSN:       v.GetString(KeySQLiteDSN),
		CacheSize:       v.GetInt(KeyCacheSize),
		Seed:            v.GetBool(KeySeed),
		Metrics:         v.GetBool(KeyMetrics),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%s must not be empty", KeyListen)
	}
	switch c.Store {
	case StoreMemory:
		if c.SaveInterval < 0 {
			return fmt.Errorf("%s must not be negative", KeySaveInterval)
		}
		if c.SaveInterval > 0 && c.DataFile == "" {
			return fmt.Errorf("%s requires %s", KeySaveInterval, KeyDataFile)
		}
	case StoreDynamoDB:
		if c.DynamoTable == "" {
			return fmt.Errorf("%s must not be empty", KeyDynamoTable)
		}
		if c.DynamoRegion == "" {
			return fmt.Errorf("%s must not be empty", KeyDynamoRegion)
		}
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("%s must not be empty", KeySQLiteDSN)
		}
	default:
		return fmt.Errorf("unknown store %q (want %s, %s or %s)", c.Store, StoreMemory, StoreDynamoDB, StoreSQLite)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%s must not be negative", KeyCacheSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyShutdownTimeout)
	}
	return nil
}

// Package store provides the external byte stores that memory snapshots are written to.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend persists a single opaque snapshot blob.
type Backend interface {
	// Load returns the latest blob. A backend with nothing stored yet
	// returns (nil, nil).
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored blob.
	Save(ctx context.Context, data []byte) error

	// Close releases the backend.
	Close() error
}

// Drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// ValidDrivers are the allowed backend drivers.
var ValidDrivers = map[string]bool{
	DriverFile:   true,
	DriverSQLite: true,
	DriverRedis:  true,
}

// Config selects and configures a backend.
type Config struct {
	Driver    string `yaml:"driver" env:"DRIVER"`
	Path      string `yaml:"path" env:"PATH"`
	RedisAddr string `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisKey  string `yaml:"redisKey" env:"REDIS_KEY"`
	History   int    `yaml:"history" env:"HISTORY"`
}

// DefaultConfig stores snapshots in a flat file under ~/.tiered-memory.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverFile,
		Path:     DefaultPath(DriverFile),
		RedisKey: DefaultRedisKey,
		History:  DefaultHistory,
	}
}

// DefaultPath returns the default on-disk location for a driver.
func DefaultPath(driver string) string {
	home, _ := os.UserHomeDir()
	name := "snapshot.json"
	if driver == DriverSQLite {
		name = "snapshots.db"
	}
	return filepath.Join(home, ".tiered-memory", name)
}

// Open constructs the backend described by cfg.
func Open(cfg Config) (Backend, error) {
	switch cfg.Driver {
	case DriverFile, "":
		path := cfg.Path
		if path == "" {
			path = DefaultPath(DriverFile)
		}
		return NewFileStore(path), nil
	case DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultPath(DriverSQLite)
		}
		return NewSQLiteStore(path, cfg.History)
	case DriverRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown persistence driver %q (valid: file, sqlite, redis)", cfg.Driver)
	}
}

// Validate reports an unusable backend configuration.
func (c Config) Validate() error {
	if c.Driver != "" && !ValidDrivers[c.Driver] {
		return fmt.Errorf("unknown persistence driver %q (valid: file, sqlite, redis)", c.Driver)
	}
	if c.Driver == DriverRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis driver needs redisAddr")
	}
	if c.History < 0 {
		return fmt.Errorf("history must not be negative, got %d", c.History)
	}
	return nil
}

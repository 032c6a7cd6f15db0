// Package config loads tiered-memory settings.
//
// Precedence: defaults, then the YAML file, then environment variables
// prefixed with TIERED_MEMORY_. A missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/tiered-memory/internal/logging"
	"github.com/rcliao/tiered-memory/internal/memory"
	"github.com/rcliao/tiered-memory/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TIERED_MEMORY"

// Config is the complete configuration.
type Config struct {
	// Memory keys sit directly under the prefix,
	// e.g. TIERED_MEMORY_WORKING_MEMORY_CAPACITY.
	Memory      memory.Config  `yaml:"memory" env:""`
	Persistence store.Config   `yaml:"persistence" env:"PERSISTENCE"`
	Log         logging.Config `yaml:"log" env:"LOG"`
	Metrics     MetricsConfig  `yaml:"metrics" env:"METRICS"`
}

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// Addr, when set, serves /metrics from long-running commands.
	Addr string `yaml:"addr" env:"ADDR"`
}

// Default returns the built-in configuration.
func Default() *Config {
	persistence := store.DefaultConfig()
	// Resolved per driver once the file and environment are applied.
	persistence.Path = ""
	return &Config{
		Memory:      memory.DefaultConfig(),
		Persistence: persistence,
		Log:         logging.DefaultConfig(),
		Metrics:     MetricsConfig{Namespace: "tiered_memory"},
	}
}

// DefaultPath is $TIERED_MEMORY_CONFIG, else ~/.tiered-memory/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tiered-memory", "config.yaml")
}

// Loader reads a Config.
type Loader struct {
	path   string
	prefix string
	getenv func(string) string
}

// NewLoader creates a loader for the file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path, prefix: EnvPrefix, getenv: os.Getenv}
}

// WithEnv replaces os.Getenv.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// Load applies defaults, the file and the environment, then validates.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, err
		}
	}
	if err := l.setFromEnv(reflect.ValueOf(cfg).Elem(), l.prefix); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	if cfg.Persistence.Path == "" {
		cfg.Persistence.Path = store.DefaultPath(cfg.Persistence.Driver)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", l.path, err)
	}
	return nil
}

// setFromEnv walks v and overrides every field whose env key is set. A
// struct with an empty env tag shares its parent's prefix.
func (l *Loader) setFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag, ok := t.Field(i).Tag.Lookup("env")
		if !ok || tag == "-" {
			continue
		}
		key := prefix
		if tag != "" {
			key = prefix + "_" + tag
		}

		if field.Kind() == reflect.Struct {
			if err := l.setFromEnv(field, key); err != nil {
				return err
			}
			continue
		}
		if tag == "" {
			continue
		}
		val := l.getenv(key)
		if val == "" {
			continue
		}
		if err := setField(field, val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Memory.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	if err := c.Persistence.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("persistence: %w", err))
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log: format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

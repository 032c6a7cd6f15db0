package memory

import (
	"fmt"
	"math"
	"time"

	"github.com/rcliao/tiered-memory/internal/tier"
)

// Defaults for the recognized memory options.
const (
	DefaultShortTermDuration     = 30 * time.Second
	DefaultLongTermThreshold     = 0.8
	DefaultForgettingCurveFactor = 0.1
	DefaultConsolidationInterval = 60 * time.Second

	DefaultRetrievalThreshold = 0.3
	DefaultRetrievalLimit     = 10
	DefaultSearchLimit        = 20
)

// Config holds the tier and sweep settings.
type Config struct {
	WorkingMemoryCapacity int           `yaml:"workingMemoryCapacity" env:"WORKING_MEMORY_CAPACITY"`
	ShortTermDuration     time.Duration `yaml:"shortTermDuration" env:"SHORT_TERM_DURATION"`
	LongTermThreshold     float64       `yaml:"longTermThreshold" env:"LONG_TERM_THRESHOLD"`
	EpisodicRetention     int           `yaml:"episodicRetention" env:"EPISODIC_RETENTION"`
	EnableForgetting      bool          `yaml:"enableForgetting" env:"ENABLE_FORGETTING"`
	ForgettingCurveFactor float64       `yaml:"forgettingCurveFactor" env:"FORGETTING_CURVE_FACTOR"`
	ConsolidationInterval time.Duration `yaml:"consolidationInterval" env:"CONSOLIDATION_INTERVAL"`
	// ForgettingInterval of zero means twice ConsolidationInterval.
	ForgettingInterval time.Duration `yaml:"forgettingInterval" env:"FORGETTING_INTERVAL"`
	PersistenceEnabled bool          `yaml:"persistenceEnabled" env:"PERSISTENCE_ENABLED"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		WorkingMemoryCapacity: tier.DefaultWorkingCapacity,
		ShortTermDuration:     DefaultShortTermDuration,
		LongTermThreshold:     DefaultLongTermThreshold,
		EpisodicRetention:     tier.DefaultEpisodicRetention,
		EnableForgetting:      true,
		ForgettingCurveFactor: DefaultForgettingCurveFactor,
		ConsolidationInterval: DefaultConsolidationInterval,
		PersistenceEnabled:    true,
	}
}

// EffectiveForgettingInterval resolves the zero default.
func (c Config) EffectiveForgettingInterval() time.Duration {
	if c.ForgettingInterval > 0 {
		return c.ForgettingInterval
	}
	return 2 * c.ConsolidationInterval
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.WorkingMemoryCapacity < 1:
		return fmt.Errorf("workingMemoryCapacity must be at least 1, got %d", c.WorkingMemoryCapacity)
	case c.ShortTermDuration <= 0:
		return fmt.Errorf("shortTermDuration must be positive, got %s", c.ShortTermDuration)
	case math.IsNaN(c.LongTermThreshold) || c.LongTermThreshold < 0 || c.LongTermThreshold > 1:
		return fmt.Errorf("longTermThreshold must be within [0,1], got %g", c.LongTermThreshold)
	case c.EpisodicRetention < 1:
		return fmt.Errorf("episodicRetention must be at least 1, got %d", c.EpisodicRetention)
	case math.IsNaN(c.ForgettingCurveFactor) || math.IsInf(c.ForgettingCurveFactor, 0) || c.ForgettingCurveFactor <= 0:
		return fmt.Errorf("forgettingCurveFactor must be positive, got %g", c.ForgettingCurveFactor)
	case c.ConsolidationInterval <= 0:
		return fmt.Errorf("consolidationInterval must be positive, got %s", c.ConsolidationInterval)
	case c.ForgettingInterval < 0:
		return fmt.Errorf("forgettingInterval must not be negative, got %s", c.ForgettingInterval)
	}
	return nil
}

// ABOUTME: Centralized configuration for the memory vault
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Config holds all configuration for the vault.
type Config struct {
	// Storage settings
	VaultPath   string
	BusyTimeout time.Duration

	// Boundary settings
	TokenBudgetCeiling int
	DefaultMaxPII      int
	RatePerOp          float64 // calls per second per operation
	RateBurst          int

	// Reinforcement settings
	ReinforceBatchCap int
	ReinforceWindow   time.Duration

	// Kill switch: serve from the legacy store instead of the vault
	Disabled   bool
	LegacyPath string
}

// DefaultDataDir returns the vault data directory following the XDG spec.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "memory-vault")
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		VaultPath:          getEnv("VAULT_DB_PATH", filepath.Join(DefaultDataDir(), "vault.db")),
		BusyTimeout:        getEnvDuration("VAULT_BUSY_TIMEOUT", 5*time.Second),
		TokenBudgetCeiling: getEnvInt("VAULT_TOKEN_CEILING", 4000),
		DefaultMaxPII:      getEnvInt("VAULT_DEFAULT_MAX_PII", 1),
		RatePerOp:          getEnvFloat("VAULT_RATE_PER_OP", 5),
		RateBurst:          getEnvInt("VAULT_RATE_BURST", 5),
		ReinforceBatchCap:  getEnvInt("VAULT_REINFORCE_CAP", 32),
		ReinforceWindow:    getEnvDuration("VAULT_REINFORCE_WINDOW", 30*time.Second),
		Disabled:           getEnvBool("VAULT_DISABLED", false),
		LegacyPath:         getEnv("VAULT_LEGACY_PATH", filepath.Join(DefaultDataDir(), "legacy")),
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration bounds.
func (c *Config) Validate() error {
	if c.TokenBudgetCeiling < 1 {
		return fmt.Errorf("VAULT_TOKEN_CEILING must be positive, got %d", c.TokenBudgetCeiling)
	}
	if c.DefaultMaxPII < 0 || c.DefaultMaxPII > 2 {
		return fmt.Errorf("VAULT_DEFAULT_MAX_PII must be 0-2, got %d", c.DefaultMaxPII)
	}
	if c.RatePerOp <= 0 {
		return fmt.Errorf("VAULT_RATE_PER_OP must be positive, got %f", c.RatePerOp)
	}
	if c.ReinforceBatchCap < 1 || c.ReinforceBatchCap > 256 {
		return fmt.Errorf("VAULT_REINFORCE_CAP must be 1-256, got %d", c.ReinforceBatchCap)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

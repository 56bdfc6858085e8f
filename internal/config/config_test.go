// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Verifies defaults, env overrides, and bound checks
package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenBudgetCeiling != 4000 {
		t.Errorf("TokenBudgetCeiling = %d, want 4000", cfg.TokenBudgetCeiling)
	}
	if cfg.DefaultMaxPII != 1 {
		t.Errorf("DefaultMaxPII = %d, want 1", cfg.DefaultMaxPII)
	}
	if cfg.ReinforceBatchCap != 32 {
		t.Errorf("ReinforceBatchCap = %d, want 32", cfg.ReinforceBatchCap)
	}
	if cfg.ReinforceWindow != 30*time.Second {
		t.Errorf("ReinforceWindow = %v, want 30s", cfg.ReinforceWindow)
	}
	if cfg.Disabled {
		t.Error("Disabled = true by default")
	}
	if cfg.VaultPath == "" {
		t.Error("VaultPath is empty")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VAULT_TOKEN_CEILING", "2000")
	t.Setenv("VAULT_DEFAULT_MAX_PII", "0")
	t.Setenv("VAULT_DISABLED", "1")
	t.Setenv("VAULT_REINFORCE_WINDOW", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenBudgetCeiling != 2000 {
		t.Errorf("TokenBudgetCeiling = %d, want 2000", cfg.TokenBudgetCeiling)
	}
	if cfg.DefaultMaxPII != 0 {
		t.Errorf("DefaultMaxPII = %d, want 0", cfg.DefaultMaxPII)
	}
	if !cfg.Disabled {
		t.Error("Disabled = false, want true")
	}
	if cfg.ReinforceWindow != 10*time.Second {
		t.Errorf("ReinforceWindow = %v, want 10s", cfg.ReinforceWindow)
	}
}

func TestValidateBounds(t *testing.T) {
	t.Setenv("VAULT_DEFAULT_MAX_PII", "7")
	if _, err := Load(); err == nil {
		t.Error("Load() accepted VAULT_DEFAULT_MAX_PII=7")
	}

	t.Setenv("VAULT_DEFAULT_MAX_PII", "1")
	t.Setenv("VAULT_REINFORCE_CAP", "0")
	if _, err := Load(); err == nil {
		t.Error("Load() accepted VAULT_REINFORCE_CAP=0")
	}
}

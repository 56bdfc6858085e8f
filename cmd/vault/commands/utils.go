// ABOUTME: Shared helpers for CLI commands: vault open and display formatting
// ABOUTME: Consolidates the identity/key/open dance used by every subcommand
package commands

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/vault-standalone/internal/config"
	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/identity"
	"github.com/harper/vault-standalone/internal/storage"
)

// openVault resolves the field key from the credential store and opens the
// vault. Every subcommand that touches data goes through here.
func openVault() (*storage.Engine, *config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	idm := identity.NewManager()
	key, err := idm.ResolveKey(func(k *crypto.Key) error {
		return storage.ProbeKey(cfg.VaultPath, k)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("resolving field key: %w", err)
	}

	eng, err := storage.Open(cfg.VaultPath, key, cfg.BusyTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("opening vault: %w", err)
	}
	return eng, cfg, nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display relative to now.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

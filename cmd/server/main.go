// ABOUTME: Main entry point for the memory vault MCP server on stdio
// ABOUTME: Wires identity, storage, migration, and the boundary together
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/vault-standalone/internal/boundary"
	"github.com/harper/vault-standalone/internal/config"
	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/identity"
	"github.com/harper/vault-standalone/internal/legacy"
	"github.com/harper/vault-standalone/internal/migration"
	"github.com/harper/vault-standalone/internal/reinforce"
	"github.com/harper/vault-standalone/internal/selector"
	"github.com/harper/vault-standalone/internal/storage"
)

const serverVersion = "0.1.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	b, cleanup, err := buildBoundary(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to start vault: %v", err)
	}
	defer cleanup()

	server := mcpserver.NewMCPServer("Memory Vault", serverVersion)
	boundary.Register(server, b)

	log.Println("Memory vault MCP server starting on stdio...")
	if err := mcpserver.ServeStdio(server); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// buildBoundary opens the vault and returns a live boundary, or a degraded
// read-only one over the legacy files when the kill switch is set or the
// vault cannot come up.
func buildBoundary(ctx context.Context, cfg *config.Config) (*boundary.Boundary, func(), error) {
	if cfg.Disabled {
		slog.Error("vault disabled by kill switch, serving read-only from legacy store")
		return fallbackBoundary(cfg)
	}

	idm := identity.NewManager()
	identityID, err := idm.GetOrCreateIdentity()
	if err != nil {
		return nil, nil, err
	}
	key, err := idm.ResolveKey(func(k *crypto.Key) error {
		return storage.ProbeKey(cfg.VaultPath, k)
	})
	if err != nil {
		slog.Error("cannot resolve field key, falling back to legacy store", "error", err)
		return fallbackBoundary(cfg)
	}

	eng, err := storage.Open(cfg.VaultPath, key, cfg.BusyTimeout)
	if err != nil {
		slog.Error("cannot open vault, falling back to legacy store", "error", err)
		return fallbackBoundary(cfg)
	}

	if _, err := migration.New().Run(ctx, cfg.LegacyPath, eng, identityID); err != nil {
		// The migrator already destroyed the partial vault; the legacy files
		// are still the source of truth, so serve from them this run.
		slog.Error("migration failed, falling back to legacy store", "error", err)
		return fallbackBoundary(cfg)
	}
	if err := eng.SetMeta(ctx, storage.MetaSelectorVersion, selector.Version); err != nil {
		_ = eng.Close()
		return nil, nil, err
	}

	r := reinforce.New(eng, reinforce.Options{
		BatchCap: cfg.ReinforceBatchCap,
		Window:   cfg.ReinforceWindow,
	})
	b := boundary.New(eng, r, boundary.Config{
		TokenBudgetCeiling: cfg.TokenBudgetCeiling,
		DefaultMaxPII:      cfg.DefaultMaxPII,
		RatePerOp:          cfg.RatePerOp,
		RateBurst:          cfg.RateBurst,
	})
	return b, func() { _ = eng.Close() }, nil
}

func fallbackBoundary(cfg *config.Config) (*boundary.Boundary, func(), error) {
	data, err := legacy.Load(cfg.LegacyPath)
	if err != nil {
		return nil, nil, err
	}
	b := boundary.New(boundary.NewFallback(data), nil, boundary.Config{
		TokenBudgetCeiling: cfg.TokenBudgetCeiling,
		DefaultMaxPII:      cfg.DefaultMaxPII,
		RatePerOp:          cfg.RatePerOp,
		RateBurst:          cfg.RateBurst,
		Degraded:           true,
	})
	return b, func() {}, nil
}

func init() {
	// Structured logs go to stderr; stdout belongs to the MCP transport.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

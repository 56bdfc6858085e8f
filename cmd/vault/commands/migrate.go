// ABOUTME: CLI command running the one-shot legacy migration
// ABOUTME: Backs up the legacy files first and rolls back on any failure
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/vault-standalone/internal/identity"
	"github.com/harper/vault-standalone/internal/migration"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [legacy-dir]",
		Short: "Migrate the legacy JSON files into the vault",
		Long: `Migrate the pre-vault JSON files into the encrypted vault.

The legacy files are backed up first and never modified. All migrated
rows commit in one transaction; if anything fails, the partial vault
is destroyed and the legacy files remain the source of truth.
Running migrate twice is a no-op.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	eng, cfg, err := openVault()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	legacyDir := cfg.LegacyPath
	if len(args) == 1 {
		legacyDir = args[0]
	}

	identityID, err := identity.NewManager().GetOrCreateIdentity()
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	report, err := migration.New().Run(context.Background(), legacyDir, eng, identityID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if report.Skipped {
		fmt.Fprintln(out, "Migration already complete; nothing to do.")
		return nil
	}
	fmt.Fprintf(out, "Migrated %d facts, %d sessions, %d messages, %d preferences.\n",
		report.Facts, report.Sessions, report.Messages, report.Preferences)
	if report.Orphaned > 0 {
		fmt.Fprintf(out, "Skipped %d orphaned messages.\n", report.Orphaned)
	}
	if report.BackupPath != "" {
		fmt.Fprintf(out, "Legacy files backed up to %s\n", report.BackupPath)
	}
	return nil
}

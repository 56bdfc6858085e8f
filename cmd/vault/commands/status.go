// ABOUTME: CLI command showing vault health, counts, and migration state
// ABOUTME: Reads only metadata and counts; no encrypted values are printed
package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/vault-standalone/internal/storage"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault health and statistics",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, cfg, err := openVault()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	ctx := context.Background()

	stats, err := eng.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	meta, err := eng.GetAllMeta(ctx)
	if err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Vault path:\t%s\n", cfg.VaultPath)
	fmt.Fprintf(w, "Integrity:\t%s\n", okOrFailed(stats.IntegrityOK))
	fmt.Fprintf(w, "Facts:\t%d\n", stats.Facts)
	fmt.Fprintf(w, "Sessions:\t%d\n", stats.Sessions)
	fmt.Fprintf(w, "Messages:\t%d\n", stats.Messages)
	fmt.Fprintf(w, "Preferences:\t%d\n", stats.Preferences)
	fmt.Fprintf(w, "Schema version:\t%s\n", meta[storage.MetaSchemaVersion])
	fmt.Fprintf(w, "Selector version:\t%s\n", metaOr(meta, storage.MetaSelectorVersion, "unset"))
	if meta[storage.MetaMigrationComplete] == "1" {
		fmt.Fprintf(w, "Migration:\tcomplete (%s)\n", metaOr(meta, storage.MetaMigratedAt, "unknown time"))
	} else {
		fmt.Fprintf(w, "Migration:\tpending\n")
	}
	return w.Flush()
}

func okOrFailed(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}

func metaOr(meta map[string]string, key, fallback string) string {
	if v := meta[key]; v != "" {
		return v
	}
	return fallback
}

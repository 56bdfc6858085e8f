// ABOUTME: CLI command for rotating the field encryption key
// ABOUTME: Stages the new key so an interruption is recoverable on next open
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/vault-standalone/internal/identity"
)

// NewRotateKeyCmd creates the rotate-key command.
func NewRotateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key",
		Short: "Rotate the field encryption key",
		Long: `Generate a new field key and re-encrypt every encrypted row under it.

The new key is staged in the OS credential store before any row is
rewritten, so a crash mid-rotation is recovered automatically the next
time the vault opens.`,
		RunE: runRotateKey,
	}
}

func runRotateKey(cmd *cobra.Command, args []string) error {
	eng, _, err := openVault()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if _, err := identity.NewManager().RotateKey(eng); err != nil {
		return fmt.Errorf("rotating key: %w", err)
	}
	if !flagQuiet {
		fmt.Fprintln(cmd.OutOrStdout(), "Field key rotated; all rows re-encrypted.")
	}
	return nil
}

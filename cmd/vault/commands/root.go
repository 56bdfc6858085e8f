// ABOUTME: Root CLI command wiring all vault subcommands together
// ABOUTME: Holds global flags shared by every subcommand
package commands

import (
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
	flagQuiet   bool
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Local memory vault for the desktop assistant",
		Long: `Memory Vault CLI

Manage the encrypted local personalization store: facts, sessions,
preferences, migration from the legacy JSON files, key rotation,
and decrypted exports.

All data stays on this machine. Encrypted fields are only readable
with the key held in the OS credential store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress non-essential output")

	cmd.AddCommand(NewFactCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewRotateKeyCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewClearCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// ABOUTME: CLI command deleting one conversation and all its messages
// ABOUTME: The only path that removes messages; immediate and irreversible
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewClearCmd creates the clear command.
func NewClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Delete one conversation and all its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openVault()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if err := eng.ClearSession(context.Background(), args[0]); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", args[0])
			}
			return nil
		},
	}
}

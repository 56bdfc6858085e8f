// ABOUTME: CLI command exporting a decrypted copy of the vault
// ABOUTME: YAML for machine use, Markdown for reading; stdout or a file
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a decrypted copy of the vault",
		Long: `Export all facts, sessions, messages, and preferences, decrypted.

The export is for user-owned backup; keep it somewhere safe, since it
is no longer protected by the vault's encryption.

Examples:
  vault export > vault.yaml
  vault export --format markdown --output vault.md`,
		RunE: runExport,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "yaml", "Export format: yaml or markdown")
	cmd.Flags().StringVar(&exportOutput, "output", "", "Write to a file instead of stdout")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "yaml" && exportFormat != "markdown" {
		return fmt.Errorf("unknown format %q, want yaml or markdown", exportFormat)
	}

	eng, _, err := openVault()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	data, err := eng.Export(context.Background())
	if err != nil {
		return fmt.Errorf("exporting vault: %w", err)
	}

	var out []byte
	if exportFormat == "yaml" {
		out, err = data.ToYAML()
		if err != nil {
			return fmt.Errorf("rendering export: %w", err)
		}
	} else {
		out = data.ToMarkdown()
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(exportOutput, out, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if !flagQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported vault to %s\n", exportOutput)
	}
	return nil
}

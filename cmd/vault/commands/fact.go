// ABOUTME: CLI commands for managing facts: set, list, delete
// ABOUTME: Values are encrypted on write and decrypted for display
package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/vault-standalone/internal/models"
	"github.com/harper/vault-standalone/internal/storage"
)

var (
	factConfidence  float64
	factPII         int
	factNeverUpload bool
	factCategory    string
)

// NewFactCmd creates the fact command group.
func NewFactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Manage stored facts",
	}
	cmd.AddCommand(newFactSetCmd())
	cmd.AddCommand(newFactListCmd())
	cmd.AddCommand(newFactDeleteCmd())
	return cmd
}

func newFactSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <category> <predicate> <value>",
		Short: "Store or update one fact",
		Long: `Store or update one fact, keyed by category and predicate.

Examples:
  vault fact set location city Philadelphia
  vault fact set health allergy peanuts --pii 2 --never-upload`,
		Args: cobra.ExactArgs(3),
		RunE: runFactSet,
	}
	cmd.Flags().Float64Var(&factConfidence, "confidence", 1.0, "Confidence in the fact (0-1)")
	cmd.Flags().IntVar(&factPII, "pii", models.PIIPersonal, "Sensitivity tier: 0 public, 1 personal, 2 sensitive")
	cmd.Flags().BoolVar(&factNeverUpload, "never-upload", false, "Exclude this fact from every context bundle")
	return cmd
}

func runFactSet(cmd *cobra.Command, args []string) error {
	if factConfidence < 0 || factConfidence > 1 {
		return fmt.Errorf("confidence must be 0-1, got %g", factConfidence)
	}
	if !models.ValidPIILevel(factPII) {
		return fmt.Errorf("pii must be 0-2, got %d", factPII)
	}

	eng, _, err := openVault()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	consent := models.ConsentDefault
	if factNeverUpload {
		consent = models.ConsentNeverUpload
	}
	id, err := eng.SetFact(context.Background(), &models.Fact{
		Category:   args[0],
		Predicate:  args[1],
		Object:     args[2],
		Confidence: factConfidence,
		PIILevel:   factPII,
		Consent:    consent,
	})
	if err != nil {
		return fmt.Errorf("setting fact: %w", err)
	}
	if !flagQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Stored fact %s\n", id)
	}
	return nil
}

func newFactListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored facts",
		RunE:  runFactList,
	}
	cmd.Flags().StringVar(&factCategory, "category", "", "Only facts in this category")
	return cmd
}

func runFactList(cmd *cobra.Command, args []string) error {
	eng, _, err := openVault()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	facts, err := eng.GetFacts(context.Background(), storage.FactFilter{
		Category: factCategory,
		MaxPII:   -1,
	})
	if err != nil {
		return fmt.Errorf("listing facts: %w", err)
	}
	if len(facts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No facts stored.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tPREDICATE\tVALUE\tPII\tCONSENT\tUPDATED")
	for _, f := range facts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncate(f.ID, 16), f.Category, f.Predicate,
			truncate(f.Object, 32), f.PIILevel, f.Consent, formatTime(f.UpdatedAt))
	}
	return w.Flush()
}

func newFactDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <fact-id>",
		Short: "Delete one fact immediately and irreversibly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openVault()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if err := eng.DeleteFact(context.Background(), args[0]); err != nil {
				return fmt.Errorf("deleting fact: %w", err)
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted fact %s\n", args[0])
			}
			return nil
		},
	}
}

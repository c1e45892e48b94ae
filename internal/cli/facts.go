package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/pipeline"
)

var factsJSON bool

// factsCmd represents the facts command
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Query the fact ledger",
	Long: `Read verified facts from the configured ledger. Use the sqlite driver
to query facts recorded by earlier runs:

  ALETHEIA_LEDGER_DRIVER=sqlite ALETHEIA_LEDGER_PATH=aletheia.db aletheia facts search eiffel`,
}

var factsGetCmd = &cobra.Command{
	Use:   "get <claim-id>",
	Short: "Show the latest fact for a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacts(func(store factledger.Store) error {
			rec, err := store.GetFact(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printFacts(cmd.OutOrStdout(), rec)
		})
	},
}

var factsHistoryCmd = &cobra.Command{
	Use:   "history <claim-id>",
	Short: "Show every recorded version of a claim's fact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacts(func(store factledger.Store) error {
			history, err := store.GetClaimHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printFacts(cmd.OutOrStdout(), history...)
		})
	},
}

var factsSearchCmd = &cobra.Command{
	Use:   "search <terms>...",
	Short: "Find facts whose claim text contains every term",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacts(func(store factledger.Store) error {
			found, err := store.SearchClaims(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(found) == 0 && !factsJSON {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching facts.")
				return nil
			}
			return printFacts(cmd.OutOrStdout(), found...)
		})
	},
}

func init() {
	rootCmd.AddCommand(factsCmd)
	factsCmd.AddCommand(factsGetCmd, factsHistoryCmd, factsSearchCmd)
	factsCmd.PersistentFlags().BoolVar(&factsJSON, "json", false, "print facts as JSON")
}

func withFacts(fn func(factledger.Store) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := pipeline.OpenFactStore(cfg.Ledger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close fact ledger: %w", closeErr)
		}
	}()
	return fn(store)
}

func printFacts(w io.Writer, recs ...model.FactRecord) error {
	if factsJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s v%d  %s\n", r.ClaimID, r.Version, r.Verdict)
		fmt.Fprintf(w, "  claim:        %s\n", r.ClaimText)
		if r.Explanation != "" {
			fmt.Fprintf(w, "  explanation:  %s\n", r.Explanation)
		}
		fmt.Fprintf(w, "  contributors: %s\n", strings.Join(r.Contributors, ", "))
		if r.EscalationID != "" {
			fmt.Fprintf(w, "  escalation:   %s\n", r.EscalationID)
		}
		for _, e := range r.Evidence {
			fmt.Fprintf(w, "  evidence:     %s (%s, credibility %d)\n", e.SourceURL, e.Tier, e.Credibility)
		}
		fmt.Fprintf(w, "  verified at:  %s\n\n", r.VerifiedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

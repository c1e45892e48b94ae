package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aletheia/internal/pipeline"
)

var (
	outJSON    string
	outMD      string
	outYAML    bool
	runTimeout time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Play a scripted scenario through the whole workflow",
	Long: `Run registers the scenario's reviewers, then plays each step against
a fresh workflow on a scenario clock:
- submit, assign or dispatch claims
- record verifications, senior findings and council votes
- challenge recorded facts
- advance the clock and run scheduler passes

Each step may name the error code it is expected to fail with. The
command fails when any step does not match its expectation.

Example:
  aletheia run scenarios/divergence.yaml
  aletheia run scenarios/divergence.yaml --json report.json --md report.md
  ALETHEIA_LEDGER_DRIVER=sqlite aletheia run scenarios/divergence.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	runCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	runCmd.Flags().BoolVar(&outYAML, "yaml", false, "print the full report as YAML to stdout")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall scenario timeout")
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := pipeline.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Scenario: %s (%d steps, %d reviewers)\n", sc.Name, len(sc.Steps), len(sc.Reviewers))
		fmt.Fprintf(os.Stderr, "Ledger:   %s\n\n", cfg.Ledger.Driver)
	}

	report, err := pipeline.RunScenario(ctx, cfg, sc)
	if err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}

	renderer := pipeline.NewRenderer()
	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}

	if outYAML {
		if err := renderer.RenderYAML(report, cmd.OutOrStdout()); err != nil {
			return err
		}
	} else {
		renderer.RenderSummary(report, cmd.OutOrStdout())
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d steps did not match their expectation", report.Failed, len(report.Steps))
	}
	return nil
}

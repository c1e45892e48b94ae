package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/pipeline"
)

var (
	rosterFile string
	claimsFile string
)

// rosterFileContents is the layout of --roster and --claims files
type rosterFileContents struct {
	Reviewers []model.ReviewerProfile `yaml:"reviewers"`
	Claims    []model.ClaimInput      `yaml:"claims"`
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch and escalation scheduler",
	Long: `Serve loads a reviewer roster, optionally submits a batch of claims,
and runs the scheduler until interrupted. Every pass assigns pending
claims, retries queued escalations and reports overdue reviews.

Example:
  aletheia serve --roster roster.yaml --claims claims.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&rosterFile, "roster", "", "YAML file with a reviewers list")
	serveCmd.Flags().StringVar(&claimsFile, "claims", "", "YAML file with a claims list to submit on start")
	_ = serveCmd.MarkFlagRequired("roster")
}

func readRosterFile(path string) (rosterFileContents, error) {
	var out rosterFileContents
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	roster, err := readRosterFile(rosterFile)
	if err != nil {
		return err
	}
	var claims []model.ClaimInput
	if claimsFile != "" {
		f, err := readRosterFile(claimsFile)
		if err != nil {
			return err
		}
		claims = f.Claims
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: closing pipeline: %v\n", err)
		}
	}()

	if err := p.Register(roster.Reviewers...); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, in := range claims {
		if _, err := p.Workflow.SubmitClaim(ctx, in); err != nil {
			fmt.Fprintf(os.Stderr, "✗ claim %q: %v\n", in.Content, err)
		}
	}

	fmt.Fprintf(os.Stderr, "Serving %d reviewers, %d claims submitted (interval %v). Press Ctrl+C to stop.\n",
		len(roster.Reviewers), len(claims), cfg.Scheduler.Interval)
	p.Run(ctx)

	return summarize(context.WithoutCancel(ctx), p)
}

func summarize(ctx context.Context, p *pipeline.Pipeline) error {
	out := os.Stdout
	for _, status := range []model.ClaimStatus{model.ClaimPending, model.ClaimProcessing, model.ClaimEscalated, model.ClaimCompleted} {
		fmt.Fprintf(out, "  %-11s %d\n", status, len(p.Workflow.ListClaims(status)))
	}
	for _, c := range p.Workflow.ListClaims(model.ClaimCompleted) {
		if f, err := p.Facts.GetFact(ctx, c.ID); err == nil {
			fmt.Fprintf(out, "  %s  %s v%d\n", c.ID, f.Verdict, f.Version)
		}
	}
	return nil
}

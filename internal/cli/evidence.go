package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aletheia/internal/cache"
	"github.com/ppiankov/aletheia/internal/evidence"
	"github.com/ppiankov/aletheia/internal/model"
)

var (
	evidenceJSON    bool
	evidenceTimeout time.Duration
	userAgent       string
	httpProxy       string
	httpsProxy      string
	noRobots        bool
	claimType       string
)

// evidenceCmd represents the evidence command
var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect evidence sources",
}

var evidenceCheckCmd = &cobra.Command{
	Use:   "check <url>...",
	Short: "Check that evidence links are reachable and current",
	Long: `Check fetches each URL (HEAD, falling back to GET) and reports:
- reachability and status code
- redirects and robots.txt blocks
- staleness from Last-Modified
- the source's authority tier

Example:
  aletheia evidence check https://www.who.int/news https://example.com/blog`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvidenceCheck,
}

var evidenceSuggestCmd = &cobra.Command{
	Use:   "suggest <claim text>",
	Short: "Ask the retrieval service for candidate sources",
	Long: `Suggest asks the configured retrieval provider for sources a reviewer
could consult. Suggestions are advisory and never decide a verdict.

Example:
  OPENAI_API_KEY=sk-... ALETHEIA_RETRIEVAL_PROVIDER=openai aletheia evidence suggest "The Eiffel Tower is 330 m tall"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvidenceSuggest,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceCheckCmd, evidenceSuggestCmd)

	evidenceCmd.PersistentFlags().BoolVar(&evidenceJSON, "json", false, "print results as JSON")
	evidenceCmd.PersistentFlags().DurationVar(&evidenceTimeout, "timeout", 2*time.Minute, "overall timeout")

	evidenceCheckCmd.Flags().StringVar(&userAgent, "ua", "", "HTTP User-Agent (overrides evidence.user_agent)")
	evidenceCheckCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	evidenceCheckCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	evidenceCheckCmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt")

	evidenceSuggestCmd.Flags().StringVar(&claimType, "type", string(model.ClaimTypeText), "claim type")
}

func runEvidenceCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if userAgent != "" {
		cfg.Evidence.UserAgent = userAgent
	}
	if httpProxy != "" {
		cfg.Evidence.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.Evidence.HTTPSProxy = httpsProxy
	}
	if noRobots {
		cfg.Evidence.RespectRobots = false
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), evidenceTimeout)
	defer cancel()

	checker := evidence.NewLinkChecker(cfg.Evidence, evidence.NewAuthorityClassifier(&cfg.Authority), nil)
	statuses := checker.Check(ctx, args)

	if evidenceJSON {
		return writeJSON(cmd.OutOrStdout(), statuses)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tSTATUS\tAUTHORITY\tNOTES")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.URL, linkState(s), s.Authority, linkNotes(s))
	}
	return tw.Flush()
}

func linkState(s model.LinkStatus) string {
	switch {
	case s.Blocked:
		return "blocked"
	case s.IsDead:
		return "dead"
	case s.IsStale:
		return "stale"
	case s.IsAccessible:
		return "ok"
	default:
		return "unknown"
	}
}

func linkNotes(s model.LinkStatus) string {
	var notes []string
	if s.StatusCode != 0 {
		notes = append(notes, fmt.Sprintf("HTTP %d", s.StatusCode))
	}
	if s.RedirectURL != "" {
		notes = append(notes, "→ "+s.RedirectURL)
	}
	if s.LastModified != nil {
		notes = append(notes, "modified "+s.LastModified.Format("2006-01-02"))
	}
	if s.Error != "" {
		notes = append(notes, s.Error)
	}
	return strings.Join(notes, ", ")
}

func runEvidenceSuggest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	retriever, err := evidence.NewRetriever(cfg.Retrieval, store, cfg.Cache.DiskTTL, nil)
	if err != nil {
		return err
	}
	if retriever == nil {
		return fmt.Errorf("no retrieval provider configured (set retrieval.provider or ALETHEIA_RETRIEVAL_PROVIDER)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), evidenceTimeout)
	defer cancel()

	claim := model.Claim{
		ID:      "cli",
		Content: strings.Join(args, " "),
		Type:    model.ClaimType(claimType),
	}
	suggestions, err := retriever.Suggest(ctx, claim)
	if err != nil {
		return err
	}

	if evidenceJSON {
		return writeJSON(cmd.OutOrStdout(), suggestions)
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(os.Stderr, "No suggestions.")
		return nil
	}
	for i, s := range suggestions {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (credibility %d)\n   %s\n", i+1, s.Source, s.CredibilityScore, s.URL)
		if s.Summary != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", s.Summary)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Renderer writes scenario reports
type Renderer struct{}

// NewRenderer creates a report renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes the report as indented JSON to path
func (r *Renderer) RenderJSON(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// RenderYAML writes the report as YAML to w
func (r *Renderer) RenderYAML(report *Report, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return enc.Close()
}

// RenderMarkdown writes a readable report to path
func (r *Renderer) RenderMarkdown(report *Report, path string) error {
	return os.WriteFile(path, []byte(r.Markdown(report)), 0o644)
}

// Markdown formats the report as Markdown
func (r *Renderer) Markdown(report *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", orDash(report.Name))
	fmt.Fprintf(&b, "Run at %s. %d of %d steps matched their expectation.\n\n",
		report.RunAt.Format("2006-01-02 15:04:05 MST"), len(report.Steps)-report.Failed, len(report.Steps))

	b.WriteString("## Claims\n\n")
	b.WriteString("| Claim | Status | Verdict | Version | Escalation | Contributors |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, c := range report.Claims {
		esc := "-"
		if c.EscalationID != "" {
			esc = string(c.EscalationStatus)
			if c.Outcome != "" {
				esc += " (" + string(c.Outcome) + ")"
			}
		}
		version := "-"
		if c.FactVersion > 0 {
			version = fmt.Sprintf("v%d", c.FactVersion)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			c.Alias, c.Status, orDash(string(c.Verdict)), version, esc, orDash(strings.Join(c.Contributors, ", ")))
	}

	b.WriteString("\n## Reviewers\n\n")
	b.WriteString("| Reviewer | Rank | XP | Warnings | Verified | Accuracy |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, s := range report.Standings {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %.2f |\n",
			s.ID, s.Rank, s.XP, s.Warnings, s.Performance.ClaimsVerified, s.Performance.Accuracy)
	}

	if len(report.Shares) > 0 {
		b.WriteString("\n## Payout\n\n")
		b.WriteString("| Reviewer | Weight | Amount |\n")
		b.WriteString("|---|---|---|\n")
		for _, s := range report.Shares {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", s.ReviewerID, s.Weight, s.Amount)
		}
	}

	if report.Failed > 0 {
		b.WriteString("\n## Unexpected steps\n\n")
		for _, s := range report.Steps {
			if s.OK {
				continue
			}
			fmt.Fprintf(&b, "- step %d `%s` %s: %s\n", s.Index, s.Action, s.Claim, orDash(s.Error))
		}
	}
	return b.String()
}

// RenderSummary prints a short overview to w
func (r *Renderer) RenderSummary(report *Report, w io.Writer) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s\n", orDash(report.Name))
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Steps:     %d (%d unexpected)\n", len(report.Steps), report.Failed)
	for _, c := range report.Claims {
		line := fmt.Sprintf("  %-10s %-10s", c.Alias, c.Status)
		if c.Verdict != "" {
			line += fmt.Sprintf(" %s v%d", c.Verdict, c.FactVersion)
		}
		if c.EscalationID != "" {
			line += fmt.Sprintf(" [escalation %s]", c.EscalationStatus)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/pipeline"
	"github.com/ppiankov/aletheia/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <scenario.yaml|dir>...",
	Short: "Run many scenarios in parallel",
	Long: `Batch plays several scenario files concurrently:
- Each argument is a scenario file or a directory of *.yaml files
- Every scenario runs against its own in-memory fact ledger
- A JSON and a Markdown report is written per scenario

Example:
  aletheia batch scenarios/
  aletheia batch a.yaml b.yaml --concurrency 4 --output-dir ./reports`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./aletheia-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := scenarioFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no scenario files found")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Aletheia Batch Run\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Scenarios:    %d\n", len(files))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tasks := make([]worker.Task[*pipeline.Report], len(files))
	for i, file := range files {
		tasks[i] = func(ctx context.Context) (*pipeline.Report, error) {
			sc, err := pipeline.LoadScenario(file)
			if err != nil {
				return nil, err
			}
			return pipeline.RunScenario(ctx, cfg, sc, pipeline.WithFactStore(factledger.NewMemoryStore()))
		}
	}
	results := worker.Run(ctx, concurrency, tasks)

	renderer := pipeline.NewRenderer()
	successCount, failureCount := 0, 0
	for _, result := range results {
		file := files[result.Index]
		if result.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", file, result.Err)
			continue
		}

		report := result.Value
		slug := sanitizeFilename(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		if err := renderer.RenderJSON(report, filepath.Join(outputDir, slug+".json")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", file, err)
			continue
		}
		if err := renderer.RenderMarkdown(report, filepath.Join(outputDir, slug+".md")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", file, err)
			continue
		}

		if report.Failed > 0 {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %d unexpected steps\n", file, report.Failed)
			continue
		}
		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d steps, %d claims)\n", file, len(report.Steps), len(report.Claims))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d scenarios\n", len(files))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failureCount, len(files))
	}
	return nil
}

// scenarioFiles expands directories into their *.yaml and *.yml files
func scenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	return files, nil
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	s = replacer.Replace(s)
	if s == "" || s == "." {
		return "scenario"
	}
	return s
}

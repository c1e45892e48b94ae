package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/aletheia/internal/model"
)

func TestLoadConfigLayers(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})

	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	content := "ledger:\n  driver: sqlite\n  path: facts.db\nescalation:\n  council_rank: expert\n  tie_break: expand\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALETHEIA_DISPATCH_MAX_WORKLOAD", "9")
	t.Setenv("ALETHEIA_SCHEDULER_INTERVAL", "1m")
	t.Setenv("ALETHEIA_RETRIEVAL_API_KEY", "sk-from-env")

	initConfig()
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Ledger.Driver != "sqlite" || cfg.Ledger.Path != "facts.db" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Escalation.CouncilRank != model.RankExpert || cfg.Escalation.TieBreak != model.TieBreakExpand {
		t.Errorf("escalation = %+v", cfg.Escalation)
	}
	if cfg.Dispatch.MaxWorkload != 9 {
		t.Errorf("max workload = %d, want env override", cfg.Dispatch.MaxWorkload)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Errorf("interval = %v", cfg.Scheduler.Interval)
	}
	if cfg.Retrieval.APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Retrieval.APIKey)
	}

	defaults := model.DefaultConfig()
	if cfg.Dispatch.DeadlineHigh != defaults.Dispatch.DeadlineHigh {
		t.Errorf("deadline default lost: %v", cfg.Dispatch.DeadlineHigh)
	}
	if cfg.Dispatch.MinRankHigh != defaults.Dispatch.MinRankHigh {
		t.Errorf("rank default lost: %v", cfg.Dispatch.MinRankHigh)
	}
	if len(cfg.Authority.PrimaryDomains) != len(defaults.Authority.PrimaryDomains) {
		t.Errorf("primary domains = %v", cfg.Authority.PrimaryDomains)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})

	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("ledger:\n  driver: mongo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	initConfig()
	if _, err := loadConfig(); err == nil {
		t.Error("expected invalid driver to be rejected")
	}
}

func TestScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(dir, "notes.txt")

	files, err := scenarioFiles([]string{dir, single})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Errorf("files = %v", files)
	}

	if _, err := scenarioFiles([]string{filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for a missing path")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"divergence case": "divergence_case",
		"a/b:c":           "a_b_c",
		"":                "scenario",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := redact("sk-1234567890abcd"); got != "sk-1****abcd" {
		t.Errorf("redact = %q", got)
	}
	if got := redact("short"); got != "****" {
		t.Errorf("redact short = %q", got)
	}
	if redact("") != "" {
		t.Error("empty secret should stay empty")
	}
}

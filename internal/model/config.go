package model

import (
	"fmt"
	"time"
)

// Config is the complete runtime configuration
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Dispatch   DispatchConfig   `yaml:"dispatch" mapstructure:"dispatch"`
	Consensus  ConsensusConfig  `yaml:"consensus" mapstructure:"consensus"`
	Escalation EscalationConfig `yaml:"escalation" mapstructure:"escalation"`
	Reputation ReputationConfig `yaml:"reputation" mapstructure:"reputation"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Evidence   EvidenceConfig   `yaml:"evidence" mapstructure:"evidence"`
	Authority  AuthorityConfig  `yaml:"authority" mapstructure:"authority"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
}

// DispatchConfig controls claim assignment
type DispatchConfig struct {
	ReviewersPerClaim int           `yaml:"reviewers_per_claim" mapstructure:"reviewers_per_claim"`
	MaxWorkload       int           `yaml:"max_workload" mapstructure:"max_workload"`
	MinRankLow        Rank          `yaml:"min_rank_low" mapstructure:"min_rank_low"`
	MinRankMedium     Rank          `yaml:"min_rank_medium" mapstructure:"min_rank_medium"`
	MinRankHigh       Rank          `yaml:"min_rank_high" mapstructure:"min_rank_high"`
	DeadlineLow       time.Duration `yaml:"deadline_low" mapstructure:"deadline_low"`
	DeadlineMedium    time.Duration `yaml:"deadline_medium" mapstructure:"deadline_medium"`
	DeadlineHigh      time.Duration `yaml:"deadline_high" mapstructure:"deadline_high"`
}

// MinRank returns the lowest rank allowed to review a claim of complexity c
func (d DispatchConfig) MinRank(c Complexity) Rank {
	switch c {
	case ComplexityMedium:
		return d.MinRankMedium
	case ComplexityHigh:
		return d.MinRankHigh
	default:
		return d.MinRankLow
	}
}

// Deadline returns the review window for a claim of complexity c
func (d DispatchConfig) Deadline(c Complexity) time.Duration {
	switch c {
	case ComplexityMedium:
		return d.DeadlineMedium
	case ComplexityHigh:
		return d.DeadlineHigh
	default:
		return d.DeadlineLow
	}
}

// Non-factual verdict policies
const (
	NonFactualExact    = "exact"    // Outdated/satire/opinion only agree with themselves
	NonFactualExcluded = "excluded" // Ignored when factual findings exist
)

// ConsensusConfig controls first-tier agreement and its rewards
type ConsensusConfig struct {
	QuorumThreshold       float64       `yaml:"quorum_threshold" mapstructure:"quorum_threshold"` // Support share that must be exceeded
	AdjacentAgreement     bool          `yaml:"adjacent_agreement" mapstructure:"adjacent_agreement"`
	NonFactualPolicy      string        `yaml:"non_factual_policy" mapstructure:"non_factual_policy"`
	SpeedBonusWindow      time.Duration `yaml:"speed_bonus_window" mapstructure:"speed_bonus_window"` // 0 disables
	ComplexityBonusMedium int           `yaml:"complexity_bonus_medium" mapstructure:"complexity_bonus_medium"`
	ComplexityBonusHigh   int           `yaml:"complexity_bonus_high" mapstructure:"complexity_bonus_high"`
}

// ComplexityBonus returns the extra XP for verifying a claim of complexity c
func (c ConsensusConfig) ComplexityBonus(cx Complexity) int {
	switch cx {
	case ComplexityMedium:
		return c.ComplexityBonusMedium
	case ComplexityHigh:
		return c.ComplexityBonusHigh
	default:
		return 0
	}
}

// Council tie-break rules, applied once every member has voted without a majority
const (
	TieBreakNone   = "none"   // Stay in council review
	TieBreakExpand = "expand" // Seat one more member
	TieBreakUphold = "uphold" // Side with the senior reviewer
)

// EscalationConfig controls the senior and council tiers
type EscalationConfig struct {
	SeniorMinRank  Rank   `yaml:"senior_min_rank" mapstructure:"senior_min_rank"`
	CouncilRank    Rank   `yaml:"council_rank" mapstructure:"council_rank"`
	CouncilSize    int    `yaml:"council_size" mapstructure:"council_size"`
	CouncilMaxSize int    `yaml:"council_max_size" mapstructure:"council_max_size"`
	TieBreak       string `yaml:"tie_break" mapstructure:"tie_break"`
}

// ReputationConfig controls rank demotion
type ReputationConfig struct {
	WarningsPerDemotion int `yaml:"warnings_per_demotion" mapstructure:"warnings_per_demotion"`
}

// LedgerConfig selects the fact ledger backend
type LedgerConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory or sqlite
	Path   string `yaml:"path" mapstructure:"path"`
}

// SchedulerConfig controls the dispatch and retry loop
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// EvidenceConfig controls evidence link checks
type EvidenceConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxWorkers        int           `yaml:"max_workers" mapstructure:"max_workers"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	StaleAfter        time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
	HTTPProxy         string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// AuthorityConfig maps source domains to authority tiers
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // domain -> primary|secondary|tertiary
}

// RetrievalConfig configures the advisory evidence retrieval service
type RetrievalConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // "", openai
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxSuggestions int    `yaml:"max_suggestions" mapstructure:"max_suggestions"`
	Workers        int    `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig configures the retrieval cache
type CacheConfig struct {
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Dispatch: DispatchConfig{
			ReviewersPerClaim: 3,
			MaxWorkload:       5,
			MinRankLow:        RankTrainee,
			MinRankMedium:     RankJunior,
			MinRankHigh:       RankAssociate,
			DeadlineLow:       24 * time.Hour,
			DeadlineMedium:    48 * time.Hour,
			DeadlineHigh:      72 * time.Hour,
		},
		Consensus: ConsensusConfig{
			QuorumThreshold:       0.5,
			AdjacentAgreement:     true,
			NonFactualPolicy:      NonFactualExact,
			SpeedBonusWindow:      2 * time.Hour,
			ComplexityBonusMedium: 5,
			ComplexityBonusHigh:   10,
		},
		Escalation: EscalationConfig{
			SeniorMinRank:  RankSenior,
			CouncilRank:    RankMaster,
			CouncilSize:    3,
			CouncilMaxSize: 5,
			TieBreak:       TieBreakNone,
		},
		Reputation: ReputationConfig{
			WarningsPerDemotion: 3,
		},
		Ledger: LedgerConfig{
			Driver: "memory",
			Path:   "aletheia.db",
		},
		Scheduler: SchedulerConfig{
			Interval: 30 * time.Second,
		},
		Evidence: EvidenceConfig{
			Timeout:           10 * time.Second,
			MaxWorkers:        20,
			UserAgent:         "Aletheia/0.1 (+https://github.com/ppiankov/aletheia)",
			RespectRobots:     true,
			RequestsPerSecond: 2,
			Burst:             5,
			StaleAfter:        365 * 24 * time.Hour,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "who.int", "un.org",
				"nih.gov", "nature.com", "science.org", "arxiv.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "reuters.com", "apnews.com", "bbc.co.uk",
				"snopes.com", "politifact.com", "factcheck.org", "fullfact.org",
			},
		},
		Retrieval: RetrievalConfig{
			Provider:       "",
			Model:          "gpt-4o-mini",
			Timeout:        30,
			MaxSuggestions: 5,
			Workers:        4,
		},
		Cache: CacheConfig{
			Dir:       ".aletheia/cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
	}
}

// Validate rejects settings the workflow cannot run with
func (c Config) Validate() error {
	if c.Dispatch.ReviewersPerClaim < 1 {
		return fmt.Errorf("dispatch.reviewers_per_claim must be at least 1")
	}
	if c.Dispatch.MaxWorkload < 1 {
		return fmt.Errorf("dispatch.max_workload must be at least 1")
	}
	for _, r := range []Rank{c.Dispatch.MinRankLow, c.Dispatch.MinRankMedium, c.Dispatch.MinRankHigh, c.Escalation.SeniorMinRank, c.Escalation.CouncilRank} {
		if !r.Valid() {
			return fmt.Errorf("invalid rank %d", int(r))
		}
	}
	if c.Consensus.QuorumThreshold < 0 || c.Consensus.QuorumThreshold >= 1 {
		return fmt.Errorf("consensus.quorum_threshold must be in [0, 1)")
	}
	switch c.Consensus.NonFactualPolicy {
	case NonFactualExact, NonFactualExcluded:
	default:
		return fmt.Errorf("consensus.non_factual_policy must be %q or %q", NonFactualExact, NonFactualExcluded)
	}
	if c.Escalation.CouncilSize < 1 {
		return fmt.Errorf("escalation.council_size must be at least 1")
	}
	if c.Escalation.CouncilMaxSize < c.Escalation.CouncilSize {
		return fmt.Errorf("escalation.council_max_size must be at least council_size")
	}
	switch c.Escalation.TieBreak {
	case TieBreakNone, TieBreakExpand, TieBreakUphold:
	default:
		return fmt.Errorf("escalation.tie_break must be one of none, expand, uphold")
	}
	if c.Reputation.WarningsPerDemotion < 1 {
		return fmt.Errorf("reputation.warnings_per_demotion must be at least 1")
	}
	switch c.Ledger.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("ledger.driver must be memory or sqlite")
	}
	return nil
}

package model

import "time"

const (
	CredibilityMin = 0
	CredibilityMax = 100
)

// Evidence is a source attached to a verification or a fact record
type Evidence struct {
	SourceURL   string        `json:"source_url" yaml:"source_url"`
	ContentHash string        `json:"content_hash" yaml:"content_hash"` // sha256, dedup key
	Credibility int           `json:"credibility" yaml:"credibility"`   // 0-100
	Tier        AuthorityTier `json:"tier,omitempty" yaml:"tier,omitempty"`
	Summary     string        `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// EvidenceInput is evidence as submitted by a reviewer, before normalization
type EvidenceInput struct {
	URL         string `json:"url" yaml:"url"`
	Content     string `json:"content,omitempty" yaml:"content,omitempty"`         // Hashed when present, URL otherwise
	Credibility *int   `json:"credibility,omitempty" yaml:"credibility,omitempty"` // Derived from the source tier when nil
	Summary     string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// ClampCredibility bounds a credibility score to the 0-100 scale
func ClampCredibility(score int) int {
	if score < CredibilityMin {
		return CredibilityMin
	}
	if score > CredibilityMax {
		return CredibilityMax
	}
	return score
}

// Suggestion is advisory evidence returned by the retrieval service
type Suggestion struct {
	Source           string `json:"source" yaml:"source"`
	URL              string `json:"url" yaml:"url"`
	Summary          string `json:"summary" yaml:"summary"`
	CredibilityScore int    `json:"credibilityScore" yaml:"credibility_score"`
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Statutes, official statistics, academic papers
	TierSecondary AuthorityTier = 2 // Encyclopedias, wire services, established fact-checkers
	TierTertiary  AuthorityTier = 3 // Blogs, social media, personal sites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// BaseCredibility is the default credibility for evidence of this tier
func (t AuthorityTier) BaseCredibility() int {
	switch t {
	case TierPrimary:
		return 90
	case TierSecondary:
		return 70
	case TierTertiary:
		return 40
	default:
		return 50
	}
}

// LinkStatus is the result of checking that an evidence URL is still reachable
type LinkStatus struct {
	URL          string        `json:"url"`
	IsAccessible bool          `json:"is_accessible"`
	StatusCode   int           `json:"status_code,omitempty"`
	LastModified *time.Time    `json:"last_modified,omitempty"`
	IsStale      bool          `json:"is_stale"` // > 1 year old
	IsDead       bool          `json:"is_dead"`  // 404, 410, or unreachable
	Blocked      bool          `json:"blocked"`  // Disallowed by robots.txt
	RedirectURL  string        `json:"redirect_url,omitempty"`
	Authority    AuthorityTier `json:"authority"`
	Error        string        `json:"error,omitempty"`
}

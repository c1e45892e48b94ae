package model

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the closed set of findings a reviewer can reach
type Verdict string

const (
	VerdictTrue              Verdict = "true"
	VerdictMostlyTrue        Verdict = "mostly_true"
	VerdictHalfTruth         Verdict = "half_truth"
	VerdictMisleadingContext Verdict = "misleading_context"
	VerdictUnsubstantiated   Verdict = "unsubstantiated"
	VerdictMostlyFalse       Verdict = "mostly_false"
	VerdictFalse             Verdict = "false"
	VerdictOutdated          Verdict = "outdated"
	VerdictSatire            Verdict = "satire"
	VerdictOpinion           Verdict = "opinion"
)

// severityScale orders the factual verdicts from true to false
var severityScale = []Verdict{
	VerdictTrue,
	VerdictMostlyTrue,
	VerdictHalfTruth,
	VerdictMisleadingContext,
	VerdictUnsubstantiated,
	VerdictMostlyFalse,
	VerdictFalse,
}

// AllVerdicts lists every verdict in declaration order
func AllVerdicts() []Verdict {
	return append(append([]Verdict{}, severityScale...), VerdictOutdated, VerdictSatire, VerdictOpinion)
}

// Valid reports whether v is one of the ten verdicts
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTrue, VerdictMostlyTrue, VerdictHalfTruth, VerdictMisleadingContext,
		VerdictUnsubstantiated, VerdictMostlyFalse, VerdictFalse,
		VerdictOutdated, VerdictSatire, VerdictOpinion:
		return true
	}
	return false
}

// Severity returns the position of v on the true..false scale.
// Non-factual verdicts (outdated, satire, opinion) have no severity.
func (v Verdict) Severity() (int, bool) {
	for i, s := range severityScale {
		if s == v {
			return i, true
		}
	}
	return 0, false
}

// IsFactual reports whether v sits on the severity scale
func (v Verdict) IsFactual() bool {
	_, ok := v.Severity()
	return ok
}

// Adjacent reports whether v and other are neighbours on the severity scale
func (v Verdict) Adjacent(other Verdict) bool {
	a, ok1 := v.Severity()
	b, ok2 := other.Severity()
	if !ok1 || !ok2 {
		return false
	}
	d := a - b
	return d == 1 || d == -1
}

// ParseVerdict accepts the snake_case name or the CamelCase name of a verdict
func ParseVerdict(s string) (Verdict, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	for _, v := range AllVerdicts() {
		if string(v) == norm || strings.ReplaceAll(string(v), "_", "") == norm {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown verdict %q", s)
}

// Verification is one reviewer's immutable finding on a claim
type Verification struct {
	ReviewerID  string     `json:"reviewer_id" yaml:"reviewer_id"`
	Verdict     Verdict    `json:"verdict" yaml:"verdict"`
	Explanation string     `json:"explanation" yaml:"explanation"`
	Evidence    []Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at" yaml:"submitted_at"`
}

// VerificationInput is what a reviewer submits
type VerificationInput struct {
	ReviewerID  string          `json:"reviewer_id" yaml:"reviewer_id"`
	Verdict     Verdict         `json:"verdict" yaml:"verdict"`
	Explanation string          `json:"explanation" yaml:"explanation"`
	Evidence    []EvidenceInput `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

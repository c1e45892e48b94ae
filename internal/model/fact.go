package model

import (
	"slices"
	"time"
)

// FactRecord is an immutable, versioned verdict for a claim.
// Versions start at 1; PreviousVersion is 0 for the first record.
type FactRecord struct {
	ClaimID         string     `json:"claim_id" yaml:"claim_id"`
	ClaimText       string     `json:"claim_text" yaml:"claim_text"`
	Verdict         Verdict    `json:"verdict" yaml:"verdict"`
	Explanation     string     `json:"explanation" yaml:"explanation"`
	Evidence        []Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Contributors    []string   `json:"contributors" yaml:"contributors"`
	Version         int        `json:"version" yaml:"version"`
	PreviousVersion int        `json:"previous_version,omitempty" yaml:"previous_version,omitempty"`
	EscalationID    string     `json:"escalation_id,omitempty" yaml:"escalation_id,omitempty"`
	VerifiedAt      time.Time  `json:"verified_at" yaml:"verified_at"`
}

// SameOutcome reports whether two records describe the same resolution,
// ignoring version and timestamps. Used to recognise a replayed write.
func (f FactRecord) SameOutcome(other FactRecord) bool {
	return f.ClaimID == other.ClaimID &&
		f.Verdict == other.Verdict &&
		f.EscalationID == other.EscalationID &&
		slices.Equal(f.Contributors, other.Contributors)
}

// Clone returns a deep copy of the record
func (f FactRecord) Clone() FactRecord {
	out := f
	out.Evidence = slices.Clone(f.Evidence)
	out.Contributors = slices.Clone(f.Contributors)
	return out
}

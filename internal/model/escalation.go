package model

import (
	"slices"
	"time"
)

// EscalationOrigin records why a case was opened
type EscalationOrigin string

const (
	OriginDivergence EscalationOrigin = "divergence" // Initial reviewers disagreed
	OriginChallenge  EscalationOrigin = "challenge"  // A recorded fact was appealed
)

// EscalationStatus is the phase of an escalation case. Phases only move forward.
type EscalationStatus string

const (
	EscalationQueued        EscalationStatus = "queued" // Waiting for an eligible senior
	EscalationSeniorReview  EscalationStatus = "senior_review"
	EscalationCouncilReview EscalationStatus = "council_review"
	EscalationResolved      EscalationStatus = "resolved"
)

func (s EscalationStatus) String() string {
	return string(s)
}

var escalationOrder = map[EscalationStatus]int{
	EscalationQueued:        0,
	EscalationSeniorReview:  1,
	EscalationCouncilReview: 2,
	EscalationResolved:      3,
}

// Before reports whether s comes strictly before other in the escalation lifecycle
func (s EscalationStatus) Before(other EscalationStatus) bool {
	return escalationOrder[s] < escalationOrder[other]
}

// Outcome is the result of a resolved escalation
type Outcome string

const (
	OutcomeUphold   Outcome = "uphold"
	OutcomeOverturn Outcome = "overturn"
)

// Ballot is a council member's vote
type Ballot string

const (
	BallotUphold   Ballot = "uphold"
	BallotOverturn Ballot = "overturn"
	BallotAbstain  Ballot = "abstain"
)

// Valid reports whether b is a known ballot
func (b Ballot) Valid() bool {
	switch b {
	case BallotUphold, BallotOverturn, BallotAbstain:
		return true
	}
	return false
}

// Finding is a verdict contributed to an escalation
type Finding struct {
	ReviewerID  string     `json:"reviewer_id" yaml:"reviewer_id"`
	Verdict     Verdict    `json:"verdict" yaml:"verdict"`
	Explanation string     `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Evidence    []Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at" yaml:"submitted_at"`
}

// Vote is one council member's ballot, with an optional substituted verdict
type Vote struct {
	MemberID    string    `json:"member_id" yaml:"member_id"`
	Ballot      Ballot    `json:"ballot" yaml:"ballot"`
	Verdict     Verdict   `json:"verdict,omitempty" yaml:"verdict,omitempty"` // Only meaningful for overturn
	Explanation string    `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	CastAt      time.Time `json:"cast_at" yaml:"cast_at"`
}

// EscalationCase tracks the senior and council tiers for one claim
type EscalationCase struct {
	ID                string           `json:"id" yaml:"id"`
	ClaimID           string           `json:"claim_id" yaml:"claim_id"`
	Origin            EscalationOrigin `json:"origin" yaml:"origin"`
	InitialReviewers  []string         `json:"initial_reviewers" yaml:"initial_reviewers"`
	InitialFindings   []Finding        `json:"initial_findings" yaml:"initial_findings"`
	ExcludedReviewers []string         `json:"excluded_reviewers,omitempty" yaml:"excluded_reviewers,omitempty"`
	CandidateSeniors  []string         `json:"candidate_seniors,omitempty" yaml:"candidate_seniors,omitempty"`
	Senior            string           `json:"senior,omitempty" yaml:"senior,omitempty"`
	SeniorFinding     *Finding         `json:"senior_finding,omitempty" yaml:"senior_finding,omitempty"`
	Council           []string         `json:"council,omitempty" yaml:"council,omitempty"`
	CouncilSize       int              `json:"council_size,omitempty" yaml:"council_size,omitempty"`
	Votes             []Vote           `json:"votes,omitempty" yaml:"votes,omitempty"`
	Status            EscalationStatus `json:"status" yaml:"status"`
	Outcome           Outcome          `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	FinalVerdict      Verdict          `json:"final_verdict,omitempty" yaml:"final_verdict,omitempty"`
	Finalized         bool             `json:"finalized" yaml:"finalized"`
	CreatedAt         time.Time        `json:"created_at" yaml:"created_at"`
	ResolvedAt        time.Time        `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// IsCouncilMember reports whether id sits on the case's council
func (c *EscalationCase) IsCouncilMember(id string) bool {
	return slices.Contains(c.Council, id)
}

// VoteBy returns the vote cast by memberID, if any
func (c *EscalationCase) VoteBy(memberID string) (Vote, bool) {
	for _, v := range c.Votes {
		if v.MemberID == memberID {
			return v, true
		}
	}
	return Vote{}, false
}

// Involved lists everyone who may not sit in judgement on the case again
func (c *EscalationCase) Involved() []string {
	out := slices.Clone(c.InitialReviewers)
	out = append(out, c.ExcludedReviewers...)
	if c.Senior != "" {
		out = append(out, c.Senior)
	}
	return append(out, c.Council...)
}

// Clone returns a deep copy of the case
func (c EscalationCase) Clone() EscalationCase {
	out := c
	out.InitialReviewers = slices.Clone(c.InitialReviewers)
	out.InitialFindings = slices.Clone(c.InitialFindings)
	out.ExcludedReviewers = slices.Clone(c.ExcludedReviewers)
	out.CandidateSeniors = slices.Clone(c.CandidateSeniors)
	out.Council = slices.Clone(c.Council)
	out.Votes = slices.Clone(c.Votes)
	if c.SeniorFinding != nil {
		f := *c.SeniorFinding
		out.SeniorFinding = &f
	}
	return out
}

// EscalationRequest opens a new case
type EscalationRequest struct {
	ClaimID          string
	Origin           EscalationOrigin
	InitialFindings  []Finding
	CandidateSeniors []string
	Excluded         []string // Submitter, challenger, anyone else who may not judge
}

// EscalationResolution is handed back to the claim workflow when a case resolves
type EscalationResolution struct {
	CaseID       string
	ClaimID      string
	Origin       EscalationOrigin
	Outcome      Outcome
	FinalVerdict Verdict
	Explanation  string
	Evidence     []Evidence
	Contributors []string
	ResolvedAt   time.Time
}

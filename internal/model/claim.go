package model

import (
	"slices"
	"strings"
	"time"
)

// ClaimType categorizes the submitted content
type ClaimType string

const (
	ClaimTypeText  ClaimType = "text"
	ClaimTypeImage ClaimType = "image"
	ClaimTypeVideo ClaimType = "video"
	ClaimTypeAudio ClaimType = "audio"
	ClaimTypeURL   ClaimType = "url"
	ClaimTypeLink  ClaimType = "link"
)

// Valid reports whether t is a known claim type
func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTypeText, ClaimTypeImage, ClaimTypeVideo, ClaimTypeAudio, ClaimTypeURL, ClaimTypeLink:
		return true
	}
	return false
}

// Complexity drives the deadline and the minimum reviewer rank of a claim
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Valid reports whether c is a known complexity tier
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// ClaimStatus is the lifecycle state of a claim
type ClaimStatus string

const (
	ClaimPending    ClaimStatus = "pending"
	ClaimProcessing ClaimStatus = "processing"
	ClaimCompleted  ClaimStatus = "completed"
	ClaimEscalated  ClaimStatus = "escalated"
)

func (s ClaimStatus) String() string {
	return string(s)
}

// Claim is a unit of content submitted for verification
type Claim struct {
	ID                string         `json:"id" yaml:"id"`
	Content           string         `json:"content" yaml:"content"`
	Type              ClaimType      `json:"type" yaml:"type"`
	Source            string         `json:"source,omitempty" yaml:"source,omitempty"`
	Context           string         `json:"context,omitempty" yaml:"context,omitempty"`
	Submitter         string         `json:"submitter,omitempty" yaml:"submitter,omitempty"`
	Complexity        Complexity     `json:"complexity" yaml:"complexity"`
	Topics            []string       `json:"topics,omitempty" yaml:"topics,omitempty"` // Expertise hints for dispatch
	Status            ClaimStatus    `json:"status" yaml:"status"`
	SubmittedAt       time.Time      `json:"submitted_at" yaml:"submitted_at"`
	AssignedAt        time.Time      `json:"assigned_at,omitempty" yaml:"assigned_at,omitempty"`
	Deadline          time.Time      `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	AssignedReviewers []string       `json:"assigned_reviewers,omitempty" yaml:"assigned_reviewers,omitempty"`
	Verifications     []Verification `json:"verifications,omitempty" yaml:"verifications,omitempty"`
	Suggestions       []Suggestion   `json:"suggestions,omitempty" yaml:"suggestions,omitempty"` // Advisory only
}

// ClaimInput is the caller-provided part of a new claim
type ClaimInput struct {
	Content    string     `json:"content" yaml:"content"`
	Type       ClaimType  `json:"type" yaml:"type"`
	Source     string     `json:"source,omitempty" yaml:"source,omitempty"`
	Context    string     `json:"context,omitempty" yaml:"context,omitempty"`
	Submitter  string     `json:"submitter,omitempty" yaml:"submitter,omitempty"`
	Complexity Complexity `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Topics     []string   `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// Normalize trims the input and fills the default type and complexity
func (in ClaimInput) Normalize() ClaimInput {
	in.Content = strings.TrimSpace(in.Content)
	in.Source = strings.TrimSpace(in.Source)
	in.Context = strings.TrimSpace(in.Context)
	in.Submitter = strings.TrimSpace(in.Submitter)
	if in.Type == "" {
		in.Type = ClaimTypeText
	}
	if in.Complexity == "" {
		in.Complexity = ComplexityLow
	}
	return in
}

// IsAssigned reports whether reviewerID is one of the claim's assigned reviewers
func (c *Claim) IsAssigned(reviewerID string) bool {
	return slices.Contains(c.AssignedReviewers, reviewerID)
}

// VerificationBy returns the verification submitted by reviewerID, if any
func (c *Claim) VerificationBy(reviewerID string) (Verification, bool) {
	for _, v := range c.Verifications {
		if v.ReviewerID == reviewerID {
			return v, true
		}
	}
	return Verification{}, false
}

// Clone returns a deep copy so callers never share slices with the owner
func (c Claim) Clone() Claim {
	out := c
	out.Topics = slices.Clone(c.Topics)
	out.AssignedReviewers = slices.Clone(c.AssignedReviewers)
	out.Suggestions = slices.Clone(c.Suggestions)
	if c.Verifications != nil {
		out.Verifications = make([]Verification, len(c.Verifications))
		for i, v := range c.Verifications {
			v.Evidence = slices.Clone(v.Evidence)
			out.Verifications[i] = v
		}
	}
	return out
}

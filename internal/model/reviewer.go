package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Rank is a reviewer's seniority tier. Ranks are ordered.
type Rank int

const (
	RankTrainee Rank = iota
	RankJunior
	RankAssociate
	RankSenior
	RankExpert
	RankMaster
)

var rankNames = []string{"trainee", "junior", "associate", "senior", "expert", "master"}

func (r Rank) String() string {
	if r < RankTrainee || r > RankMaster {
		return fmt.Sprintf("rank(%d)", int(r))
	}
	return rankNames[r]
}

// Valid reports whether r is a known rank
func (r Rank) Valid() bool {
	return r >= RankTrainee && r <= RankMaster
}

// AtLeast reports whether r meets or exceeds min
func (r Rank) AtLeast(min Rank) bool {
	return r >= min
}

// ParseRank parses a rank name, case-insensitively
func ParseRank(s string) (Rank, error) {
	i := slices.Index(rankNames, strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return RankTrainee, fmt.Errorf("unknown rank %q", s)
	}
	return Rank(i), nil
}

// MarshalText encodes the rank by name
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rank name
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Availability is whether a reviewer can take work
type Availability string

const (
	AvailabilityActive    Availability = "active"
	AvailabilityInactive  Availability = "inactive"
	AvailabilitySuspended Availability = "suspended"
)

// Valid reports whether a is a known availability status
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityActive, AvailabilityInactive, AvailabilitySuspended:
		return true
	}
	return false
}

// Performance holds a reviewer's running metrics
type Performance struct {
	ClaimsVerified          int           `json:"claims_verified" yaml:"claims_verified"`
	AverageVerificationTime time.Duration `json:"average_verification_time" yaml:"average_verification_time"`
	EscalationsResolved     int           `json:"escalations_resolved" yaml:"escalations_resolved"`
	Accuracy                float64       `json:"accuracy" yaml:"accuracy"` // 0..1 running average

	TimeSamples     int `json:"time_samples" yaml:"time_samples"`
	AccuracySamples int `json:"accuracy_samples" yaml:"accuracy_samples"`
}

// ReviewerProfile is an Aletheian as seen by the rest of the system
type ReviewerProfile struct {
	ID          string       `json:"id" yaml:"id"`
	Rank        Rank         `json:"rank" yaml:"rank"`
	XP          int          `json:"xp" yaml:"xp"`
	Warnings    int          `json:"warnings" yaml:"warnings"`
	Performance Performance  `json:"performance" yaml:"performance"`
	Status      Availability `json:"status" yaml:"status"`
	LastActive  time.Time    `json:"last_active" yaml:"last_active"`
	Expertise   []string     `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Workload    int          `json:"workload" yaml:"workload"`
}

// HasExpertise reports whether the reviewer lists any of the topics
func (p ReviewerProfile) HasExpertise(topics []string) bool {
	for _, t := range topics {
		for _, e := range p.Expertise {
			if strings.EqualFold(t, e) {
				return true
			}
		}
	}
	return false
}

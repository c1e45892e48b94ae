package reputation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
)

// ActionKind names a reputation event
type ActionKind string

const (
	ActionSuccessfulVerification  ActionKind = "successful_verification"
	ActionMentoring               ActionKind = "mentoring"
	ActionTrainingComplete        ActionKind = "training_complete"
	ActionAccuracyBonus           ActionKind = "accuracy_bonus"
	ActionDuplicateIdentification ActionKind = "duplicate_identification"
	ActionCouncilResolution       ActionKind = "council_resolution"
	ActionEscalationReview        ActionKind = "escalation_review"
	ActionSpeedBonus              ActionKind = "speed_bonus"
	ActionComplexityBonus         ActionKind = "complexity_bonus" // +Amount
	ActionPenalty                 ActionKind = "penalty"          // -Amount
)

// fixedCredits are the XP awarded by actions without a magnitude
var fixedCredits = map[ActionKind]int{
	ActionSuccessfulVerification:  10,
	ActionMentoring:               15,
	ActionTrainingComplete:        20,
	ActionAccuracyBonus:           5,
	ActionDuplicateIdentification: 5,
	ActionCouncilResolution:       25,
	ActionEscalationReview:        15,
	ActionSpeedBonus:              3,
}

// Action is one XP adjustment
type Action struct {
	Kind   ActionKind `json:"kind" yaml:"kind"`
	Amount int        `json:"amount,omitempty" yaml:"amount,omitempty"` // Only for complexity bonus and penalty
}

// Credit returns a fixed-value action
func Credit(kind ActionKind) Action {
	return Action{Kind: kind}
}

// ComplexityBonus returns an action crediting n XP
func ComplexityBonus(n int) Action {
	return Action{Kind: ActionComplexityBonus, Amount: n}
}

// Penalty returns an action removing n XP
func Penalty(n int) Action {
	return Action{Kind: ActionPenalty, Amount: n}
}

// Delta returns the signed XP change the action requests
func (a Action) Delta() (int, error) {
	if credit, ok := fixedCredits[a.Kind]; ok {
		return credit, nil
	}
	switch a.Kind {
	case ActionComplexityBonus, ActionPenalty:
		if a.Amount < 0 {
			return 0, apperrors.Newf(apperrors.CodeInvalidProfile, "%s amount must not be negative", a.Kind)
		}
		if a.Kind == ActionPenalty {
			return -a.Amount, nil
		}
		return a.Amount, nil
	}
	return 0, apperrors.Newf(apperrors.CodeInvalidProfile, "unknown action %q", a.Kind)
}

func (a Action) String() string {
	if a.Kind == ActionComplexityBonus || a.Kind == ActionPenalty {
		return fmt.Sprintf("%s(%d)", a.Kind, a.Amount)
	}
	return string(a.Kind)
}

// ParseAction accepts names like "successful_verification" or "SpeedBonus"
func ParseAction(name string, amount int) (Action, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.ReplaceAll(norm, "-", "_")
	for _, kind := range []ActionKind{
		ActionSuccessfulVerification, ActionMentoring, ActionTrainingComplete,
		ActionAccuracyBonus, ActionDuplicateIdentification, ActionCouncilResolution,
		ActionEscalationReview, ActionSpeedBonus, ActionComplexityBonus, ActionPenalty,
	} {
		if norm == string(kind) || norm == strings.ReplaceAll(string(kind), "_", "") {
			a := Action{Kind: kind, Amount: amount}
			if _, err := a.Delta(); err != nil {
				return Action{}, err
			}
			return a, nil
		}
	}
	return Action{}, apperrors.Newf(apperrors.CodeInvalidProfile, "unknown action %q", name)
}

// MetricKind names a performance metric
type MetricKind string

const (
	MetricEscalationsResolved MetricKind = "escalations_resolved"
	MetricClaimsVerified      MetricKind = "claims_verified"
	MetricVerificationTime    MetricKind = "verification_time"
	MetricAccuracy            MetricKind = "accuracy"
)

// Metric is a single performance update
type Metric struct {
	Kind     MetricKind
	Duration time.Duration // verification_time sample
	Value    float64       // accuracy sample, 0..1
}

// EscalationResolved increments the escalations counter
func EscalationResolved() Metric {
	return Metric{Kind: MetricEscalationsResolved}
}

// ClaimVerified increments the verified-claims counter
func ClaimVerified() Metric {
	return Metric{Kind: MetricClaimsVerified}
}

// VerificationTime adds a verification duration sample
func VerificationTime(d time.Duration) Metric {
	return Metric{Kind: MetricVerificationTime, Duration: d}
}

// Accuracy adds an accuracy sample: 1 for agreeing with the outcome, 0 otherwise
func Accuracy(sample float64) Metric {
	return Metric{Kind: MetricAccuracy, Value: sample}
}

package model

import "time"

// Topic names an event stream listeners can subscribe to
type Topic string

const (
	TopicClaimSubmitted     Topic = "claim_submitted"
	TopicClaimStatusUpdated Topic = "claim_status_updated"
	TopicEscalationOpened   Topic = "escalation_opened"
	TopicEscalationResolved Topic = "escalation_resolved"
	TopicAll                Topic = "*" // Receives every topic
)

// Event is a notification emitted on a real state change
type Event struct {
	ID           string    `json:"id"`
	Topic        Topic     `json:"topic"`
	ClaimID      string    `json:"claim_id"`
	EscalationID string    `json:"escalation_id,omitempty"`
	Old          string    `json:"old,omitempty"`
	New          string    `json:"new,omitempty"`
	Verdict      Verdict   `json:"verdict,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

package workflow

import (
	"slices"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/model"
)

// allowedTransitions is the claim lifecycle. Completed is terminal.
var allowedTransitions = map[model.ClaimStatus][]model.ClaimStatus{
	model.ClaimPending:    {model.ClaimProcessing},
	model.ClaimProcessing: {model.ClaimCompleted, model.ClaimEscalated},
	model.ClaimEscalated:  {model.ClaimCompleted},
}

// CanTransition reports whether a claim may move from one status to another
func CanTransition(from, to model.ClaimStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// transition moves c to status to, or fails without touching c
func transition(c *model.Claim, to model.ClaimStatus) error {
	if !CanTransition(c.Status, to) {
		return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"invalid claim transition from "+c.Status.String()+" to "+to.String(),
			map[string]string{"claim_id": c.ID})
	}
	c.Status = to
	return nil
}

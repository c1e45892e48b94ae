package workflow

import (
	"slices"

	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
)

// reward is the reputation change owed to one reviewer, applied after the
// claim lock is released
type reward struct {
	id      string
	actions []reputation.Action
	metrics []reputation.Metric
}

// consensusRewards credits the supporters of a consensus verdict. Every
// participant gets an accuracy sample.
func (w *Workflow) consensusRewards(c model.Claim, result Consensus) []reward {
	bonus := w.cfg.Consensus.ComplexityBonus(c.Complexity)
	window := w.cfg.Consensus.SpeedBonusWindow

	out := make([]reward, 0, len(c.Verifications))
	for _, v := range c.Verifications {
		took := v.SubmittedAt.Sub(c.AssignedAt)
		r := reward{
			id:      v.ReviewerID,
			metrics: []reputation.Metric{reputation.ClaimVerified(), reputation.VerificationTime(took)},
		}
		if slices.Contains(result.Supporters, v.ReviewerID) {
			r.actions = append(r.actions, reputation.Credit(reputation.ActionSuccessfulVerification))
			if window > 0 && took <= window {
				r.actions = append(r.actions, reputation.Credit(reputation.ActionSpeedBonus))
			}
			if bonus > 0 {
				r.actions = append(r.actions, reputation.ComplexityBonus(bonus))
			}
			r.metrics = append(r.metrics, reputation.Accuracy(1))
		} else {
			r.metrics = append(r.metrics, reputation.Accuracy(0))
		}
		out = append(out, r)
	}
	return out
}

// participationRewards records the work of reviewers on a divergent claim.
// Accuracy waits for the escalation outcome.
func participationRewards(c model.Claim) []reward {
	out := make([]reward, 0, len(c.Verifications))
	for _, v := range c.Verifications {
		out = append(out, reward{
			id:      v.ReviewerID,
			metrics: []reputation.Metric{reputation.ClaimVerified(), reputation.VerificationTime(v.SubmittedAt.Sub(c.AssignedAt))},
		})
	}
	return out
}

// escalationRewards credits initial reviewers whose finding agrees with
// the escalation's final verdict
func (w *Workflow) escalationRewards(c model.Claim, final model.Verdict) []reward {
	bonus := w.cfg.Consensus.ComplexityBonus(c.Complexity)

	out := make([]reward, 0, len(c.Verifications))
	for _, v := range c.Verifications {
		r := reward{id: v.ReviewerID}
		if Agrees(v.Verdict, final, w.cfg.Consensus) {
			r.actions = append(r.actions, reputation.Credit(reputation.ActionSuccessfulVerification))
			if bonus > 0 {
				r.actions = append(r.actions, reputation.ComplexityBonus(bonus))
			}
			r.metrics = append(r.metrics, reputation.Accuracy(1))
		} else {
			r.metrics = append(r.metrics, reputation.Accuracy(0))
		}
		out = append(out, r)
	}
	return out
}

func (w *Workflow) apply(rewards []reward) {
	for _, r := range rewards {
		for _, a := range r.actions {
			if _, err := w.rep.UpdateXP(r.id, a); err != nil {
				w.log.Warn("xp update failed", "reviewer_id", r.id, "action", a.String(), "error", err)
			}
		}
		for _, m := range r.metrics {
			if err := w.rep.UpdatePerformance(r.id, m); err != nil {
				w.log.Warn("performance update failed", "reviewer_id", r.id, "metric", string(m.Kind), "error", err)
			}
		}
	}
}

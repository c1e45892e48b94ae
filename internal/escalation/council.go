package escalation

import (
	"context"
	"slices"

	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
)

// fillCouncil seats council-rank reviewers until the council reaches its
// size. Reports whether it is full.
func (c *Coordinator) fillCouncil(cs *model.EscalationCase) bool {
	for _, id := range c.roster.Candidates(c.cfg.CouncilRank, cs.Involved()) {
		if len(cs.Council) >= cs.CouncilSize {
			break
		}
		if err := c.roster.Acquire(id); err != nil {
			continue
		}
		cs.Council = append(cs.Council, id)
	}
	return len(cs.Council) >= cs.CouncilSize
}

// tally resolves the case on a strict majority of the council size.
// Abstentions count toward quorum only. A full set of ballots without a
// majority goes to the configured tie-break.
func (c *Coordinator) tally(cs *model.EscalationCase) {
	upholds, overturns := 0, 0
	for _, v := range cs.Votes {
		switch v.Ballot {
		case model.BallotUphold:
			upholds++
		case model.BallotOverturn:
			overturns++
		}
	}

	majority := cs.CouncilSize/2 + 1
	switch {
	case upholds >= majority:
		c.resolve(cs, model.OutcomeUphold, cs.SeniorFinding.Verdict)
	case overturns >= majority:
		c.resolve(cs, model.OutcomeOverturn, overturnVerdict(cs))
	case len(cs.Votes) >= cs.CouncilSize:
		c.breakTie(cs, upholds, overturns)
	}
}

func (c *Coordinator) breakTie(cs *model.EscalationCase, upholds, overturns int) {
	switch c.cfg.TieBreak {
	case model.TieBreakUphold:
		c.resolve(cs, model.OutcomeUphold, cs.SeniorFinding.Verdict)
	case model.TieBreakExpand:
		if cs.CouncilSize >= c.cfg.CouncilMaxSize {
			c.log.Warn("council deadlocked at maximum size", "case_id", cs.ID,
				"uphold", upholds, "overturn", overturns)
			return
		}
		cs.CouncilSize++
		c.fillCouncil(cs)
		c.log.Info("council expanded", "case_id", cs.ID, "size", cs.CouncilSize)
	default:
		c.log.Info("council deadlocked", "case_id", cs.ID, "uphold", upholds, "overturn", overturns)
	}
}

// topVerdicts returns the most common verdicts, in first-seen order
func topVerdicts(findings []model.Finding) []model.Verdict {
	counts := make(map[model.Verdict]int)
	var order []model.Verdict
	for _, f := range findings {
		if counts[f.Verdict] == 0 {
			order = append(order, f.Verdict)
		}
		counts[f.Verdict]++
	}

	best := 0
	for _, v := range order {
		best = max(best, counts[v])
	}
	var out []model.Verdict
	for _, v := range order {
		if counts[v] == best {
			out = append(out, v)
		}
	}
	return out
}

// overturnVerdict is the most common substitute verdict among overturn
// ballots, earliest first on ties, else the majority initial verdict
func overturnVerdict(cs *model.EscalationCase) model.Verdict {
	var substitutes []model.Finding
	for _, v := range cs.Votes {
		if v.Ballot == model.BallotOverturn && v.Verdict != "" {
			substitutes = append(substitutes, model.Finding{Verdict: v.Verdict})
		}
	}
	if top := topVerdicts(substitutes); len(top) > 0 {
		return top[0]
	}
	if top := topVerdicts(cs.InitialFindings); len(top) > 0 {
		return top[0]
	}
	return cs.SeniorFinding.Verdict
}

// resolution describes a resolved case to the claim workflow. Contributors
// are everyone whose finding or ballot backs the final verdict.
func resolution(cs model.EscalationCase) model.EscalationResolution {
	final := cs.FinalVerdict
	var (
		contributors []string
		evidence     []model.Evidence
		explanation  string
	)
	add := func(id string) {
		if id != "" && !slices.Contains(contributors, id) {
			contributors = append(contributors, id)
		}
	}

	if f := cs.SeniorFinding; f != nil && f.Verdict == final {
		add(f.ReviewerID)
		explanation = f.Explanation
	}
	for _, v := range cs.Votes {
		backs := (cs.Outcome == model.OutcomeUphold && v.Ballot == model.BallotUphold) ||
			(cs.Outcome == model.OutcomeOverturn && v.Ballot == model.BallotOverturn)
		if !backs {
			continue
		}
		add(v.MemberID)
		if explanation == "" && v.Explanation != "" && (v.Verdict == "" || v.Verdict == final) {
			explanation = v.Explanation
		}
	}
	for _, f := range cs.InitialFindings {
		if f.Verdict != final {
			continue
		}
		add(f.ReviewerID)
		evidence = append(evidence, f.Evidence...)
		if explanation == "" {
			explanation = f.Explanation
		}
	}

	return model.EscalationResolution{
		CaseID:       cs.ID,
		ClaimID:      cs.ClaimID,
		Origin:       cs.Origin,
		Outcome:      cs.Outcome,
		FinalVerdict: final,
		Explanation:  explanation,
		Evidence:     evidence,
		Contributors: contributors,
		ResolvedAt:   cs.ResolvedAt,
	}
}

// finish hands a resolved case to the resolver, then credits the senior and
// the voters exactly once. Reports whether the case is finalized.
func (c *Coordinator) finish(ctx context.Context, caseID string) bool {
	cs, err := c.GetCase(caseID)
	if err != nil || cs.Status != model.EscalationResolved {
		return false
	}
	if cs.Finalized {
		return true
	}

	c.mu.RLock()
	resolver := c.resolver
	c.mu.RUnlock()
	if resolver == nil {
		c.log.Warn("no resolver, finalization deferred", "case_id", cs.ID)
		return false
	}
	if err := resolver.FinalizeEscalation(ctx, resolution(cs)); err != nil {
		c.log.Error("finalizing escalation failed", "case_id", cs.ID, "claim_id", cs.ClaimID, "error", err)
		return false
	}

	unlock := c.locks.Lock(cs.ClaimID)
	cur, err := c.GetCase(caseID)
	if err != nil || cur.Finalized {
		unlock()
		return true
	}
	cur.Finalized = true
	c.put(cur)
	unlock()

	c.reward(cur)
	if cur.Senior != "" {
		c.roster.Release(cur.Senior)
	}
	for _, id := range cur.Council {
		c.roster.Release(id)
	}

	evt := c.bus.NewEvent(model.TopicEscalationResolved, cur.ClaimID)
	evt.EscalationID = cur.ID
	evt.New = string(cur.Outcome)
	evt.Verdict = cur.FinalVerdict
	c.bus.Publish(evt)
	return true
}

func (c *Coordinator) reward(cs model.EscalationCase) {
	credit := func(id string, kind reputation.ActionKind) {
		if _, err := c.rep.UpdateXP(id, reputation.Credit(kind)); err != nil {
			c.log.Warn("xp update failed", "reviewer_id", id, "action", string(kind), "error", err)
		}
		if err := c.rep.UpdatePerformance(id, reputation.EscalationResolved()); err != nil {
			c.log.Warn("performance update failed", "reviewer_id", id, "error", err)
		}
	}

	if cs.SeniorFinding != nil {
		credit(cs.Senior, reputation.ActionEscalationReview)
	}
	for _, v := range cs.Votes {
		credit(v.MemberID, reputation.ActionCouncilResolution)
	}
}

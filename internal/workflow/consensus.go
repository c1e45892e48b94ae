package workflow

import (
	"github.com/ppiankov/aletheia/internal/model"
)

// Consensus is the outcome of comparing the initial reviewers' findings
type Consensus struct {
	Verdict    model.Verdict // Best-supported verdict, set even without consensus
	Support    int           // Findings that agree with Verdict
	Exact      int           // Findings equal to Verdict
	Considered int           // Findings taken into account
	Reached    bool
	Supporters []string // Reviewer ids agreeing with Verdict, in submission order
}

// Agrees reports whether finding counts as support for verdict under cfg
func Agrees(finding, verdict model.Verdict, cfg model.ConsensusConfig) bool {
	if finding == verdict {
		return true
	}
	return cfg.AdjacentAgreement && finding.Adjacent(verdict)
}

// Decide picks the best-supported verdict and whether it clears the quorum.
// Ties go to the verdict with more exact matches, then to the earliest
// submitted. Non-factual verdicts only ever agree with themselves; under
// the excluded policy they are ignored while any factual finding exists.
func Decide(findings []model.Verification, cfg model.ConsensusConfig) Consensus {
	considered := findings
	if cfg.NonFactualPolicy == model.NonFactualExcluded {
		var factual []model.Verification
		for _, f := range findings {
			if f.Verdict.IsFactual() {
				factual = append(factual, f)
			}
		}
		if len(factual) > 0 {
			considered = factual
		}
	}

	var best Consensus
	seen := make(map[model.Verdict]bool)
	for _, candidate := range considered {
		if seen[candidate.Verdict] {
			continue
		}
		seen[candidate.Verdict] = true

		support, exact := 0, 0
		for _, f := range considered {
			if f.Verdict == candidate.Verdict {
				exact++
			}
			if Agrees(f.Verdict, candidate.Verdict, cfg) {
				support++
			}
		}
		// Candidates arrive in submission order, so strict comparison keeps the earliest
		if best.Verdict == "" || support > best.Support || (support == best.Support && exact > best.Exact) {
			best = Consensus{Verdict: candidate.Verdict, Support: support, Exact: exact}
		}
	}

	best.Considered = len(considered)
	if best.Considered == 0 {
		return best
	}
	best.Reached = float64(best.Support)/float64(best.Considered) > cfg.QuorumThreshold
	for _, f := range considered {
		if Agrees(f.Verdict, best.Verdict, cfg) {
			best.Supporters = append(best.Supporters, f.ReviewerID)
		}
	}
	return best
}

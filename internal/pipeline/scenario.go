package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/finance"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
)

// Action names a scenario step
type Action string

const (
	ActionSubmit    Action = "submit"    // Submit claim Input under alias Claim
	ActionAssign    Action = "assign"    // Assign Reviewers to Claim
	ActionDispatch  Action = "dispatch"  // Run one roster assignment pass
	ActionVerify    Action = "verify"    // Reviewer submits a verification
	ActionSenior    Action = "senior"    // Senior reviewer submits a finding
	ActionVote      Action = "vote"      // Council member casts Ballot
	ActionChallenge Action = "challenge" // Reviewer appeals a recorded fact
	ActionStatus    Action = "status"    // Change Reviewer availability
	ActionWarn      Action = "warn"      // Issue Reviewer a warning
	ActionAdvance   Action = "advance"   // Move the scenario clock forward
	ActionTick      Action = "tick"      // Run one scheduler pass
)

func (a Action) valid() bool {
	switch a {
	case ActionSubmit, ActionAssign, ActionDispatch, ActionVerify, ActionSenior, ActionVote,
		ActionChallenge, ActionStatus, ActionWarn, ActionAdvance, ActionTick:
		return true
	}
	return false
}

// Scenario is a scripted run over a fresh roster
type Scenario struct {
	Name      string                  `yaml:"name"`
	Start     time.Time               `yaml:"start,omitempty"`
	Reviewers []model.ReviewerProfile `yaml:"reviewers"`
	Steps     []Step                  `yaml:"steps"`
	Payout    int64                   `yaml:"payout,omitempty"` // Minor units split over XP weights at the end
}

// Step is one scripted operation. Expect names the error code the step must
// fail with; empty means it must succeed.
type Step struct {
	Action      Action                `yaml:"action"`
	Claim       string                `yaml:"claim,omitempty"`
	Input       *model.ClaimInput     `yaml:"input,omitempty"`
	Reviewer    string                `yaml:"reviewer,omitempty"`
	Reviewers   []string              `yaml:"reviewers,omitempty"`
	Verdict     model.Verdict         `yaml:"verdict,omitempty"`
	Explanation string                `yaml:"explanation,omitempty"`
	Evidence    []model.EvidenceInput `yaml:"evidence,omitempty"`
	Ballot      model.Ballot          `yaml:"ballot,omitempty"`
	Status      model.Availability    `yaml:"status,omitempty"`
	Advance     time.Duration         `yaml:"advance,omitempty"`
	Expect      apperrors.Code        `yaml:"expect,omitempty"`
}

// StepResult records how a step went
type StepResult struct {
	Index  int            `json:"index" yaml:"index"`
	Action Action         `json:"action" yaml:"action"`
	Claim  string         `json:"claim,omitempty" yaml:"claim,omitempty"`
	Code   apperrors.Code `json:"code,omitempty" yaml:"code,omitempty"`
	Error  string         `json:"error,omitempty" yaml:"error,omitempty"`
	OK     bool           `json:"ok" yaml:"ok"`
}

// ClaimSummary is the final state of one scripted claim
type ClaimSummary struct {
	Alias            string                 `json:"alias" yaml:"alias"`
	ID               string                 `json:"id" yaml:"id"`
	Content          string                 `json:"content" yaml:"content"`
	Status           model.ClaimStatus      `json:"status" yaml:"status"`
	Verdict          model.Verdict          `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	FactVersion      int                    `json:"fact_version,omitempty" yaml:"fact_version,omitempty"`
	Contributors     []string               `json:"contributors,omitempty" yaml:"contributors,omitempty"`
	EscalationID     string                 `json:"escalation_id,omitempty" yaml:"escalation_id,omitempty"`
	EscalationStatus model.EscalationStatus `json:"escalation_status,omitempty" yaml:"escalation_status,omitempty"`
	Outcome          model.Outcome          `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// Report is the result of a scenario run
type Report struct {
	Name      string                `json:"name" yaml:"name"`
	RunAt     time.Time             `json:"run_at" yaml:"run_at"`
	Steps     []StepResult          `json:"steps" yaml:"steps"`
	Claims    []ClaimSummary        `json:"claims" yaml:"claims"`
	Standings []reputation.Standing `json:"standings" yaml:"standings"`
	Shares    []finance.Share       `json:"shares,omitempty" yaml:"shares,omitempty"`
	Failed    int                   `json:"failed" yaml:"failed"`
}

// LoadScenario reads a scenario file
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return Scenario{}, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		if st.Action == "" {
			return Scenario{}, fmt.Errorf("step %d: missing action", i+1)
		}
		if !st.Action.valid() {
			return Scenario{}, fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
	}
	return sc, nil
}

// Clock is a manually advanced time source
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts a clock at t
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the current scenario time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// RunScenario builds a pipeline on a scenario clock, plays every step and
// reports the final state. Steps that do not match their expectation are
// counted in Report.Failed; the run continues past them.
func RunScenario(ctx context.Context, cfg model.Config, sc Scenario, opts ...Option) (*Report, error) {
	start := sc.Start
	if start.IsZero() {
		start = time.Now().UTC().Truncate(time.Second)
	}
	clock := NewClock(start)

	p, err := New(cfg, append(opts, WithClock(clock.Now))...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.Close(); err != nil {
			p.log.Warn("closing pipeline failed", "error", err)
		}
	}()

	if err := p.Register(sc.Reviewers...); err != nil {
		return nil, err
	}

	r := &runner{p: p, clock: clock, aliases: make(map[string]string)}
	report := &Report{Name: sc.Name, RunAt: start}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := StepResult{Index: i + 1, Action: st.Action, Claim: st.Claim}
		err := r.step(ctx, st)
		if err != nil {
			res.Code = apperrors.CodeOf(err)
			res.Error = err.Error()
		}
		switch {
		case st.Expect == "":
			res.OK = err == nil
		default:
			res.OK = err != nil && res.Code == st.Expect
		}
		if !res.OK {
			report.Failed++
			p.log.Warn("scenario step did not match expectation",
				"step", res.Index, "action", string(st.Action), "expect", string(st.Expect), "error", err)
		}
		report.Steps = append(report.Steps, res)
	}

	report.Claims = r.summaries(ctx)
	report.Standings = p.Reputation.Standings()
	if sc.Payout > 0 {
		shares, err := p.Pool.Distribute(sc.Payout)
		if err != nil {
			return nil, err
		}
		report.Shares = shares
	}
	return report, nil
}

type runner struct {
	p       *Pipeline
	clock   *Clock
	aliases map[string]string
	order   []string
}

func (r *runner) claimID(alias string) (string, error) {
	id, ok := r.aliases[alias]
	if !ok {
		return "", apperrors.WithMetadata(apperrors.CodeClaimNotFound, "unknown claim alias", map[string]string{"alias": alias})
	}
	return id, nil
}

func (r *runner) step(ctx context.Context, st Step) error {
	p := r.p
	switch st.Action {
	case ActionSubmit:
		if st.Input == nil {
			return apperrors.New(apperrors.CodeInvalidClaim, "submit step needs an input")
		}
		if _, dup := r.aliases[st.Claim]; dup || st.Claim == "" {
			return apperrors.Newf(apperrors.CodeInvalidClaim, "claim alias %q is empty or reused", st.Claim)
		}
		c, err := p.Workflow.SubmitClaim(ctx, *st.Input)
		if err != nil {
			return err
		}
		r.aliases[st.Claim] = c.ID
		r.order = append(r.order, st.Claim)
		return nil

	case ActionDispatch:
		_, err := p.Roster.AssignClaims(ctx)
		return err

	case ActionAdvance:
		r.clock.Advance(st.Advance)
		return nil

	case ActionTick:
		p.Scheduler.Tick(ctx)
		return nil

	case ActionStatus:
		return p.Roster.UpdateAletheianStatus(st.Reviewer, st.Status)

	case ActionWarn:
		_, err := p.Reputation.AddWarning(st.Reviewer)
		return err
	}

	id, err := r.claimID(st.Claim)
	if err != nil {
		return err
	}
	finding := model.VerificationInput{
		ReviewerID:  st.Reviewer,
		Verdict:     st.Verdict,
		Explanation: st.Explanation,
		Evidence:    st.Evidence,
	}

	switch st.Action {
	case ActionAssign:
		return r.assign(ctx, id, st.Reviewers)
	case ActionVerify:
		_, err := p.Workflow.SubmitVerification(ctx, id, finding)
		return err
	case ActionSenior:
		_, err := p.Escalations.SubmitSeniorVerification(ctx, id, st.Reviewer, st.Verdict, st.Explanation)
		return err
	case ActionVote:
		_, err := p.Escalations.CastVote(ctx, id, model.Vote{
			MemberID:    st.Reviewer,
			Ballot:      st.Ballot,
			Verdict:     st.Verdict,
			Explanation: st.Explanation,
		})
		return err
	case ActionChallenge:
		_, err := p.Workflow.ChallengeFact(ctx, id, finding)
		return err
	}
	return fmt.Errorf("unknown action %q", st.Action)
}

// assign reserves roster workload for a manual assignment and gives it back
// when the workflow refuses it
func (r *runner) assign(ctx context.Context, claimID string, reviewers []string) error {
	var acquired []string
	release := func() {
		for _, id := range acquired {
			r.p.Roster.Release(id)
		}
	}
	for _, id := range reviewers {
		if err := r.p.Roster.Acquire(id); err != nil {
			release()
			return err
		}
		acquired = append(acquired, id)
	}
	if err := r.p.Workflow.AssignReviewers(ctx, claimID, reviewers); err != nil {
		release()
		return err
	}
	return nil
}

func (r *runner) summaries(ctx context.Context) []ClaimSummary {
	out := make([]ClaimSummary, 0, len(r.order))
	for _, alias := range r.order {
		id := r.aliases[alias]
		s := ClaimSummary{Alias: alias, ID: id}
		if c, err := r.p.Workflow.GetClaim(id); err == nil {
			s.Content = c.Content
			s.Status = c.Status
		}
		if f, err := r.p.Facts.GetFact(ctx, id); err == nil {
			s.Verdict = f.Verdict
			s.FactVersion = f.Version
			s.Contributors = f.Contributors
		}
		if cs, err := r.p.Escalations.CaseForClaim(id); err == nil {
			s.EscalationID = cs.ID
			s.EscalationStatus = cs.Status
			s.Outcome = cs.Outcome
		}
		out = append(out, s)
	}
	return out
}

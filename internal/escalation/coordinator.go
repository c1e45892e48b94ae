// Package escalation runs the senior-review and council tiers for claims
// whose initial reviewers diverged or whose recorded fact was challenged.
package escalation

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/events"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
	"github.com/ppiankov/aletheia/internal/worker"
)

// Roster is the part of the dispatcher the coordinator needs
type Roster interface {
	Rank(id string) (model.Rank, error)
	IsActive(id string) bool
	Candidates(minRank model.Rank, exclude []string) []string
	Acquire(id string) error
	Release(id string)
}

// Reputation records XP and performance
type Reputation interface {
	UpdateXP(id string, action reputation.Action) (reputation.Standing, error)
	UpdatePerformance(id string, m reputation.Metric) error
}

// Resolver records a resolved case against its claim
type Resolver interface {
	FinalizeEscalation(ctx context.Context, res model.EscalationResolution) error
}

// Coordinator owns escalation cases. Only the coordinator moves a case
// between phases; reviewer calls are validated appends.
type Coordinator struct {
	cfg      model.EscalationConfig
	roster   Roster
	rep      Reputation
	resolver Resolver
	bus      *events.Bus
	log      *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	cases   map[string]model.EscalationCase
	byClaim map[string][]string // Case ids per claim, oldest first
	locks   *worker.KeyedMutex  // Per claim id
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithBus sets the event bus
func WithBus(b *events.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

// WithLogger sets the coordinator logger
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithClock overrides the coordinator clock
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator
func New(cfg model.EscalationConfig, roster Roster, rep Reputation, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		roster:  roster,
		rep:     rep,
		now:     time.Now,
		cases:   make(map[string]model.EscalationCase),
		byClaim: make(map[string][]string),
		locks:   worker.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log)
	if c.bus == nil {
		c.bus = events.NewBus(c.log)
	}
	if c.cfg.CouncilSize < 1 {
		c.cfg.CouncilSize = 1
	}
	if c.cfg.CouncilMaxSize < c.cfg.CouncilSize {
		c.cfg.CouncilMaxSize = c.cfg.CouncilSize
	}
	return c
}

// SetResolver sets the callback that records resolved cases
func (c *Coordinator) SetResolver(r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolver = r
}

// CreateEscalation opens a case for a claim. When no senior can take it the
// case is stored queued and an Unavailable error is returned with it.
func (c *Coordinator) CreateEscalation(ctx context.Context, req model.EscalationRequest) (model.EscalationCase, error) {
	if err := ctx.Err(); err != nil {
		return model.EscalationCase{}, err
	}
	if strings.TrimSpace(req.ClaimID) == "" {
		return model.EscalationCase{}, apperrors.New(apperrors.CodeInvalidClaim, "claim id is required")
	}
	distinct := make(map[model.Verdict]bool)
	for _, f := range req.InitialFindings {
		if !f.Verdict.Valid() {
			return model.EscalationCase{}, apperrors.Newf(apperrors.CodeInvalidVerdict, "unknown verdict %q", f.Verdict)
		}
		distinct[f.Verdict] = true
	}
	if len(distinct) < 2 {
		return model.EscalationCase{}, apperrors.New(apperrors.CodeNoDivergence, "escalation needs at least two distinct verdicts")
	}
	origin := req.Origin
	if origin == "" {
		origin = model.OriginDivergence
	}

	unlock := c.locks.Lock(req.ClaimID)
	if open, ok := c.active(req.ClaimID); ok {
		unlock()
		return open.Clone(), apperrors.WithMetadata(apperrors.CodeEscalationOpen, "claim already has an open escalation",
			map[string]string{"claim_id": req.ClaimID, "case_id": open.ID})
	}

	var reviewers []string
	for _, f := range req.InitialFindings {
		if f.ReviewerID != "" && !slices.Contains(reviewers, f.ReviewerID) {
			reviewers = append(reviewers, f.ReviewerID)
		}
	}
	cs := model.EscalationCase{
		ID:                "esc_" + uuid.NewString(),
		ClaimID:           req.ClaimID,
		Origin:            origin,
		InitialReviewers:  reviewers,
		InitialFindings:   slices.Clone(req.InitialFindings),
		ExcludedReviewers: slices.Clone(req.Excluded),
		CandidateSeniors:  slices.Clone(req.CandidateSeniors),
		Status:            model.EscalationQueued,
		CreatedAt:         c.now().UTC(),
	}
	assigned := c.assignSenior(&cs)

	c.mu.Lock()
	c.cases[cs.ID] = cs
	c.byClaim[cs.ClaimID] = append(c.byClaim[cs.ClaimID], cs.ID)
	c.mu.Unlock()
	unlock()

	evt := c.bus.NewEvent(model.TopicEscalationOpened, cs.ClaimID)
	evt.EscalationID = cs.ID
	evt.New = cs.Status.String()
	c.bus.Publish(evt)

	if !assigned {
		c.log.Warn("no eligible senior, escalation queued", "claim_id", cs.ClaimID, "case_id", cs.ID)
		return cs.Clone(), apperrors.WithMetadata(apperrors.CodeNoEligibleSenior, "no eligible senior reviewer",
			map[string]string{"claim_id": cs.ClaimID, "case_id": cs.ID})
	}
	c.log.Info("escalation opened", "claim_id", cs.ClaimID, "case_id", cs.ID,
		"origin", string(cs.Origin), "senior", cs.Senior)
	return cs.Clone(), nil
}

// SubmitSeniorVerification records the assigned senior's finding. A verdict
// matching a most common initial verdict upholds it at once; anything else
// goes to the council.
func (c *Coordinator) SubmitSeniorVerification(ctx context.Context, claimID, reviewerID string, verdict model.Verdict, explanation string) (model.EscalationCase, error) {
	if err := ctx.Err(); err != nil {
		return model.EscalationCase{}, err
	}
	if !verdict.Valid() {
		return model.EscalationCase{}, apperrors.Newf(apperrors.CodeInvalidVerdict, "unknown verdict %q", verdict)
	}
	if strings.TrimSpace(explanation) == "" {
		return model.EscalationCase{}, apperrors.New(apperrors.CodeInvalidVerdict, "explanation is required")
	}

	unlock := c.locks.Lock(claimID)
	cs, ok := c.active(claimID)
	if !ok {
		unlock()
		return model.EscalationCase{}, caseNotFound(claimID)
	}
	if cs.Status != model.EscalationSeniorReview {
		unlock()
		return model.EscalationCase{}, wrongPhase(cs)
	}
	if reviewerID != cs.Senior {
		unlock()
		return model.EscalationCase{}, apperrors.WithMetadata(apperrors.CodeNotSenior, "reviewer is not the assigned senior",
			map[string]string{"case_id": cs.ID, "reviewer_id": reviewerID})
	}

	now := c.now().UTC()
	cs.SeniorFinding = &model.Finding{
		ReviewerID:  reviewerID,
		Verdict:     verdict,
		Explanation: strings.TrimSpace(explanation),
		SubmittedAt: now,
	}

	if slices.Contains(topVerdicts(cs.InitialFindings), verdict) {
		c.resolve(&cs, model.OutcomeUphold, verdict)
	} else {
		cs.Status = model.EscalationCouncilReview
		cs.CouncilSize = c.cfg.CouncilSize
		if !c.fillCouncil(&cs) {
			c.log.Warn("council short of members", "case_id", cs.ID,
				"seated", len(cs.Council), "size", cs.CouncilSize)
		}
	}
	c.put(cs)
	unlock()

	if cs.Status == model.EscalationResolved {
		c.finish(ctx, cs.ID)
		cs, _ = c.GetCase(cs.ID)
	}
	return cs.Clone(), nil
}

// CastVote records one council ballot and resolves the case once a strict
// majority of the council size agrees
func (c *Coordinator) CastVote(ctx context.Context, claimID string, vote model.Vote) (model.EscalationCase, error) {
	if err := ctx.Err(); err != nil {
		return model.EscalationCase{}, err
	}
	if !vote.Ballot.Valid() {
		return model.EscalationCase{}, apperrors.Newf(apperrors.CodeInvalidBallot, "unknown ballot %q", vote.Ballot)
	}
	if vote.Verdict != "" {
		if vote.Ballot != model.BallotOverturn {
			return model.EscalationCase{}, apperrors.New(apperrors.CodeInvalidBallot, "only an overturn ballot may substitute a verdict")
		}
		if !vote.Verdict.Valid() {
			return model.EscalationCase{}, apperrors.Newf(apperrors.CodeInvalidBallot, "unknown verdict %q", vote.Verdict)
		}
	}

	unlock := c.locks.Lock(claimID)
	cs, ok := c.active(claimID)
	if !ok {
		unlock()
		return model.EscalationCase{}, caseNotFound(claimID)
	}
	if cs.Status != model.EscalationCouncilReview {
		unlock()
		return model.EscalationCase{}, wrongPhase(cs)
	}
	if !cs.IsCouncilMember(vote.MemberID) {
		unlock()
		return model.EscalationCase{}, apperrors.WithMetadata(apperrors.CodeNotCouncilMember, "voter does not sit on the council",
			map[string]string{"case_id": cs.ID, "member_id": vote.MemberID})
	}
	if rank, err := c.roster.Rank(vote.MemberID); err != nil || !rank.AtLeast(c.cfg.CouncilRank) {
		unlock()
		return model.EscalationCase{}, apperrors.WithMetadata(apperrors.CodeInsufficientRank, "council member no longer holds council rank",
			map[string]string{"case_id": cs.ID, "member_id": vote.MemberID})
	}
	if _, voted := cs.VoteBy(vote.MemberID); voted {
		unlock()
		return model.EscalationCase{}, apperrors.WithMetadata(apperrors.CodeAlreadyVoted, "member already voted",
			map[string]string{"case_id": cs.ID, "member_id": vote.MemberID})
	}

	vote.Explanation = strings.TrimSpace(vote.Explanation)
	vote.CastAt = c.now().UTC()
	cs.Votes = append(cs.Votes, vote)
	c.tally(&cs)
	c.put(cs)
	unlock()

	if cs.Status == model.EscalationResolved {
		c.finish(ctx, cs.ID)
		cs, _ = c.GetCase(cs.ID)
	}
	return cs.Clone(), nil
}

// RetryPending assigns seniors to queued cases, fills short councils and
// re-runs failed finalizations. Returns the number of cases still waiting.
func (c *Coordinator) RetryPending(ctx context.Context) int {
	waiting := 0
	for _, id := range c.pendingIDs() {
		if ctx.Err() != nil {
			return waiting
		}

		cs, err := c.GetCase(id)
		if err != nil {
			continue
		}
		unlock := c.locks.Lock(cs.ClaimID)
		cs, err = c.GetCase(id)
		if err != nil {
			unlock()
			continue
		}

		switch {
		case cs.Status == model.EscalationQueued:
			if c.assignSenior(&cs) {
				c.log.Info("queued escalation assigned", "case_id", cs.ID, "senior", cs.Senior)
			} else {
				waiting++
			}
		case cs.Status == model.EscalationCouncilReview && len(cs.Council) < cs.CouncilSize:
			if !c.fillCouncil(&cs) {
				waiting++
			}
		}
		c.put(cs)
		unlock()

		if cs.Status == model.EscalationResolved && !cs.Finalized {
			if !c.finish(ctx, cs.ID) {
				waiting++
			}
		}
	}
	return waiting
}

// GetCase returns a copy of a case by id
func (c *Coordinator) GetCase(id string) (model.EscalationCase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cs, ok := c.cases[id]
	if !ok {
		return model.EscalationCase{}, apperrors.WithMetadata(apperrors.CodeEscalationNotFound, "escalation not found",
			map[string]string{"case_id": id})
	}
	return cs.Clone(), nil
}

// CaseForClaim returns the most recent case opened for a claim
func (c *Coordinator) CaseForClaim(claimID string) (model.EscalationCase, error) {
	c.mu.RLock()
	ids := c.byClaim[claimID]
	c.mu.RUnlock()
	if len(ids) == 0 {
		return model.EscalationCase{}, caseNotFound(claimID)
	}
	return c.GetCase(ids[len(ids)-1])
}

// ListCases returns cases with the given status, or all for "", oldest first
func (c *Coordinator) ListCases(status model.EscalationStatus) []model.EscalationCase {
	c.mu.RLock()
	var out []model.EscalationCase
	for _, cs := range c.cases {
		if status == "" || cs.Status == status {
			out = append(out, cs.Clone())
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// active returns the claim's case that is unresolved or not yet finalized
func (c *Coordinator) active(claimID string) (model.EscalationCase, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.byClaim[claimID]
	for i := len(ids) - 1; i >= 0; i-- {
		cs := c.cases[ids[i]]
		if cs.Status != model.EscalationResolved || !cs.Finalized {
			return cs.Clone(), true
		}
	}
	return model.EscalationCase{}, false
}

func (c *Coordinator) put(cs model.EscalationCase) {
	c.mu.Lock()
	c.cases[cs.ID] = cs
	c.mu.Unlock()
}

func (c *Coordinator) pendingIDs() []string {
	var ids []string
	for _, cs := range c.ListCases("") {
		if cs.Status != model.EscalationResolved || !cs.Finalized {
			ids = append(ids, cs.ID)
		}
	}
	return ids
}

// assignSenior seats the first eligible senior, trying the requested
// candidates before the wider roster
func (c *Coordinator) assignSenior(cs *model.EscalationCase) bool {
	involved := cs.Involved()
	pool := append(slices.Clone(cs.CandidateSeniors), c.roster.Candidates(c.cfg.SeniorMinRank, involved)...)
	for _, id := range pool {
		if slices.Contains(involved, id) || !c.roster.IsActive(id) {
			continue
		}
		rank, err := c.roster.Rank(id)
		if err != nil || !rank.AtLeast(c.cfg.SeniorMinRank) {
			continue
		}
		if err := c.roster.Acquire(id); err != nil {
			continue
		}
		cs.Senior = id
		cs.Status = model.EscalationSeniorReview
		return true
	}
	return false
}

func (c *Coordinator) resolve(cs *model.EscalationCase, outcome model.Outcome, verdict model.Verdict) {
	cs.Status = model.EscalationResolved
	cs.Outcome = outcome
	cs.FinalVerdict = verdict
	cs.ResolvedAt = c.now().UTC()
	c.log.Info("escalation resolved", "case_id", cs.ID, "claim_id", cs.ClaimID,
		"outcome", string(outcome), "verdict", string(verdict))
}

func caseNotFound(claimID string) error {
	return apperrors.WithMetadata(apperrors.CodeEscalationNotFound, "no open escalation for claim",
		map[string]string{"claim_id": claimID})
}

func wrongPhase(cs model.EscalationCase) error {
	return apperrors.WithMetadata(apperrors.CodeWrongPhase, "escalation is in "+cs.Status.String(),
		map[string]string{"case_id": cs.ID, "status": cs.Status.String()})
}

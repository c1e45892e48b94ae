// Package workflow owns claims and drives them through their lifecycle:
// pending, processing, then completed directly on consensus or via an
// escalation when the initial reviewers diverge.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/events"
	"github.com/ppiankov/aletheia/internal/evidence"
	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
	"github.com/ppiankov/aletheia/internal/worker"
)

const maxFactAttempts = 3

// Roster is the part of the dispatcher the workflow needs
type Roster interface {
	Release(reviewerID string)
	Touch(reviewerID string, at time.Time) error
	Candidates(minRank model.Rank, exclude []string) []string
}

// Reputation records XP and performance
type Reputation interface {
	UpdateXP(id string, action reputation.Action) (reputation.Standing, error)
	UpdatePerformance(id string, m reputation.Metric) error
}

// Escalator opens escalation cases
type Escalator interface {
	CreateEscalation(ctx context.Context, req model.EscalationRequest) (model.EscalationCase, error)
}

// Workflow is the claim state machine
type Workflow struct {
	cfg        model.Config
	facts      factledger.Store
	rep        Reputation
	roster     Roster
	escalator  Escalator
	bus        *events.Bus
	normalizer *evidence.Normalizer
	log        *slog.Logger
	now        func() time.Time

	mu          sync.RWMutex
	claims      map[string]model.Claim
	unescalated map[string]bool // Escalated claims still waiting for a case
	locks       *worker.KeyedMutex
}

// Option configures a Workflow
type Option func(*Workflow)

// WithEscalator sets the escalation coordinator
func WithEscalator(e Escalator) Option {
	return func(w *Workflow) { w.escalator = e }
}

// WithBus sets the event bus listeners register on
func WithBus(b *events.Bus) Option {
	return func(w *Workflow) { w.bus = b }
}

// WithNormalizer sets the evidence normalizer
func WithNormalizer(n *evidence.Normalizer) Option {
	return func(w *Workflow) { w.normalizer = n }
}

// WithLogger sets the workflow logger
func WithLogger(log *slog.Logger) Option {
	return func(w *Workflow) { w.log = log }
}

// WithClock overrides the workflow clock
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New creates a workflow over the given fact ledger, reputation ledger and roster
func New(cfg model.Config, facts factledger.Store, rep Reputation, roster Roster, opts ...Option) *Workflow {
	w := &Workflow{
		cfg:         cfg,
		facts:       facts,
		rep:         rep,
		roster:      roster,
		now:         time.Now,
		claims:      make(map[string]model.Claim),
		unescalated: make(map[string]bool),
		locks:       worker.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logger.OrDefault(w.log)
	if w.bus == nil {
		w.bus = events.NewBus(w.log)
	}
	if w.normalizer == nil {
		w.normalizer = evidence.NewNormalizer(evidence.NewAuthorityClassifier(&cfg.Authority))
	}
	return w
}

// AddEventListener registers a listener for a topic
func (w *Workflow) AddEventListener(subscriber string, topic model.Topic, fn events.Handler) error {
	return w.bus.AddEventListener(subscriber, topic, fn)
}

// RemoveEventListener unregisters a listener; reports whether one was removed
func (w *Workflow) RemoveEventListener(subscriber string, topic model.Topic) bool {
	return w.bus.RemoveEventListener(subscriber, topic)
}

// SubmitClaim accepts a new claim in the pending state
func (w *Workflow) SubmitClaim(ctx context.Context, in model.ClaimInput) (model.Claim, error) {
	if err := ctx.Err(); err != nil {
		return model.Claim{}, err
	}

	in = in.Normalize()
	if in.Content == "" {
		return model.Claim{}, apperrors.New(apperrors.CodeInvalidClaim, "claim content is required")
	}
	if !in.Type.Valid() {
		return model.Claim{}, apperrors.Newf(apperrors.CodeInvalidClaim, "unknown claim type %q", in.Type)
	}
	if !in.Complexity.Valid() {
		return model.Claim{}, apperrors.Newf(apperrors.CodeInvalidClaim, "unknown complexity %q", in.Complexity)
	}

	c := model.Claim{
		ID:          "claim_" + uuid.NewString(),
		Content:     in.Content,
		Type:        in.Type,
		Source:      in.Source,
		Context:     in.Context,
		Submitter:   in.Submitter,
		Complexity:  in.Complexity,
		Topics:      slices.Clone(in.Topics),
		Status:      model.ClaimPending,
		SubmittedAt: w.now().UTC(),
	}

	w.mu.Lock()
	w.claims[c.ID] = c
	w.mu.Unlock()

	evt := w.bus.NewEvent(model.TopicClaimSubmitted, c.ID)
	evt.New = string(model.ClaimPending)
	w.bus.Publish(evt)

	w.log.Info("claim submitted", "claim_id", c.ID, "type", string(c.Type), "complexity", string(c.Complexity))
	return c.Clone(), nil
}

// AssignReviewers moves a pending claim to processing. Fails with a
// Conflict when the claim was assigned in the meantime.
func (w *Workflow) AssignReviewers(ctx context.Context, claimID string, reviewers []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(reviewers) == 0 {
		return apperrors.New(apperrors.CodeInvalidClaim, "at least one reviewer is required")
	}
	seen := make(map[string]bool, len(reviewers))
	for _, id := range reviewers {
		if strings.TrimSpace(id) == "" || seen[id] {
			return apperrors.New(apperrors.CodeInvalidClaim, "reviewer ids must be unique and non-empty")
		}
		seen[id] = true
	}

	c, unlock, err := w.lockClaim(claimID)
	if err != nil {
		return err
	}

	if c.Status != model.ClaimPending {
		unlock()
		return apperrors.WithMetadata(apperrors.CodeStaleClaim, "claim is no longer pending",
			map[string]string{"claim_id": claimID, "status": c.Status.String()})
	}
	if c.Submitter != "" && seen[c.Submitter] {
		unlock()
		return apperrors.New(apperrors.CodeInvalidClaim, "submitter cannot review their own claim")
	}

	now := w.now().UTC()
	if err := transition(&c, model.ClaimProcessing); err != nil {
		unlock()
		return err
	}
	c.AssignedReviewers = slices.Clone(reviewers)
	c.AssignedAt = now
	c.Deadline = now.Add(w.cfg.Dispatch.Deadline(c.Complexity))
	w.put(c)
	unlock()

	w.bus.Publish(w.statusEvent(claimID, model.ClaimPending, model.ClaimProcessing, ""))
	return nil
}

// SubmitVerification records one reviewer's finding. The last finding
// settles the claim: consensus completes it and records a fact, divergence
// escalates it.
func (w *Workflow) SubmitVerification(ctx context.Context, claimID string, in model.VerificationInput) (model.Claim, error) {
	if err := ctx.Err(); err != nil {
		return model.Claim{}, err
	}
	if err := validateFinding(in); err != nil {
		return model.Claim{}, err
	}

	c, unlock, err := w.lockClaim(claimID)
	if err != nil {
		return model.Claim{}, err
	}

	if c.Status != model.ClaimProcessing {
		unlock()
		return model.Claim{}, apperrors.WithMetadata(apperrors.CodeWrongPhase, "claim is not accepting verifications",
			map[string]string{"claim_id": claimID, "status": c.Status.String()})
	}
	if !c.IsAssigned(in.ReviewerID) {
		unlock()
		return model.Claim{}, apperrors.WithMetadata(apperrors.CodeNotAssigned, "reviewer is not assigned to this claim",
			map[string]string{"claim_id": claimID, "reviewer_id": in.ReviewerID})
	}
	if _, done := c.VerificationBy(in.ReviewerID); done {
		unlock()
		return model.Claim{}, apperrors.WithMetadata(apperrors.CodeAlreadySubmitted, "reviewer already submitted a verification",
			map[string]string{"claim_id": claimID, "reviewer_id": in.ReviewerID})
	}

	now := w.now().UTC()
	c.Verifications = append(c.Verifications, model.Verification{
		ReviewerID:  in.ReviewerID,
		Verdict:     in.Verdict,
		Explanation: strings.TrimSpace(in.Explanation),
		Evidence:    w.normalizer.Normalize(in.Evidence, in.Explanation),
		SubmittedAt: now,
	})

	var (
		evts     []model.Event
		rewards  []reward
		released []string
		escalate bool
	)
	if len(c.Verifications) == len(c.AssignedReviewers) {
		result := Decide(c.Verifications, w.cfg.Consensus)
		released = c.AssignedReviewers
		if result.Reached {
			if _, err := w.appendFact(ctx, w.consensusRecord(c, result, now)); err != nil {
				unlock()
				return model.Claim{}, fmt.Errorf("record consensus: %w", err)
			}
			if err := transition(&c, model.ClaimCompleted); err != nil {
				unlock()
				return model.Claim{}, err
			}
			evts = append(evts, w.statusEvent(claimID, model.ClaimProcessing, model.ClaimCompleted, result.Verdict))
			rewards = w.consensusRewards(c, result)
			w.log.Info("consensus reached", "claim_id", claimID, "verdict", string(result.Verdict),
				"support", result.Support, "considered", result.Considered)
		} else {
			if err := transition(&c, model.ClaimEscalated); err != nil {
				unlock()
				return model.Claim{}, err
			}
			evts = append(evts, w.statusEvent(claimID, model.ClaimProcessing, model.ClaimEscalated, ""))
			rewards = participationRewards(c)
			escalate = true
			w.log.Info("reviewers diverged", "claim_id", claimID, "best", string(result.Verdict),
				"support", result.Support, "considered", result.Considered)
		}
	}
	w.put(c)
	out := c.Clone()
	unlock()

	if err := w.roster.Touch(in.ReviewerID, now); err != nil {
		w.log.Debug("touch failed", "reviewer_id", in.ReviewerID, "error", err)
	}
	for _, id := range released {
		w.roster.Release(id)
	}
	w.apply(rewards)
	w.bus.Publish(evts...)
	if escalate {
		w.openEscalation(ctx, w.divergenceRequest(out))
	}
	return out, nil
}

// FinalizeEscalation records an escalation's final verdict as the next
// fact version. A challenge whose final verdict matches the recorded fact
// writes nothing. Safe to call again for the same case.
func (w *Workflow) FinalizeEscalation(ctx context.Context, res model.EscalationResolution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.CaseID == "" || !res.FinalVerdict.Valid() {
		return apperrors.New(apperrors.CodeInvalidFact, "resolution needs a case id and a valid verdict")
	}

	c, unlock, err := w.lockClaim(res.ClaimID)
	if err != nil {
		return err
	}

	if res.Origin == model.OriginChallenge || c.Status == model.ClaimCompleted {
		if c.Status != model.ClaimCompleted {
			unlock()
			return w.invalidTransition(c, model.ClaimCompleted)
		}
		if res.Origin != model.OriginChallenge {
			// A divergence case for a completed claim is only valid as a replay
			latest, err := w.facts.GetFact(ctx, c.ID)
			unlock()
			if err == nil && latest.EscalationID == res.CaseID {
				return nil
			}
			return w.invalidTransition(c, model.ClaimCompleted)
		}
		// A rejected appeal leaves the recorded fact standing
		latest, err := w.facts.GetFact(ctx, c.ID)
		if err != nil {
			unlock()
			return fmt.Errorf("record challenge: %w", err)
		}
		if latest.Verdict == res.FinalVerdict {
			unlock()
			w.log.Info("challenge rejected, fact stands", "claim_id", c.ID, "case_id", res.CaseID,
				"version", latest.Version, "verdict", string(latest.Verdict))
			return nil
		}
	} else if c.Status != model.ClaimEscalated {
		unlock()
		return w.invalidTransition(c, model.ClaimCompleted)
	}

	verifiedAt := res.ResolvedAt
	if verifiedAt.IsZero() {
		verifiedAt = w.now()
	}
	rec := model.FactRecord{
		ClaimID:      c.ID,
		ClaimText:    c.Content,
		Verdict:      res.FinalVerdict,
		Explanation:  res.Explanation,
		Evidence:     evidence.Dedupe(res.Evidence),
		Contributors: slices.Clone(res.Contributors),
		EscalationID: res.CaseID,
		VerifiedAt:   verifiedAt.UTC(),
	}
	written, err := w.appendFact(ctx, rec)
	if err != nil {
		unlock()
		return fmt.Errorf("record escalation: %w", err)
	}

	var (
		evts    []model.Event
		rewards []reward
	)
	if c.Status == model.ClaimEscalated {
		if err := transition(&c, model.ClaimCompleted); err != nil {
			unlock()
			return err
		}
		evts = append(evts, w.statusEvent(c.ID, model.ClaimEscalated, model.ClaimCompleted, res.FinalVerdict))
		w.put(c)
	}
	if written && res.Origin != model.OriginChallenge {
		rewards = w.escalationRewards(c, res.FinalVerdict)
	}
	w.mu.Lock()
	delete(w.unescalated, c.ID)
	w.mu.Unlock()
	unlock()

	w.apply(rewards)
	w.bus.Publish(evts...)
	if written {
		w.log.Info("escalation recorded", "claim_id", c.ID, "case_id", res.CaseID,
			"outcome", string(res.Outcome), "verdict", string(res.FinalVerdict))
	}
	return nil
}

// ChallengeFact appeals the recorded verdict of a completed claim. The
// resulting escalation either upholds the fact or records a superseding
// version when it resolves.
func (w *Workflow) ChallengeFact(ctx context.Context, claimID string, in model.VerificationInput) (model.EscalationCase, error) {
	if err := ctx.Err(); err != nil {
		return model.EscalationCase{}, err
	}
	if err := validateFinding(in); err != nil {
		return model.EscalationCase{}, err
	}

	c, err := w.GetClaim(claimID)
	if err != nil {
		return model.EscalationCase{}, err
	}
	if c.Status != model.ClaimCompleted {
		return model.EscalationCase{}, apperrors.WithMetadata(apperrors.CodeWrongPhase, "only completed claims can be challenged",
			map[string]string{"claim_id": claimID, "status": c.Status.String()})
	}
	if w.escalator == nil {
		return model.EscalationCase{}, fmt.Errorf("no escalation coordinator configured")
	}

	fact, err := w.facts.GetFact(ctx, claimID)
	if err != nil {
		return model.EscalationCase{}, err
	}
	if in.Verdict == fact.Verdict {
		return model.EscalationCase{}, apperrors.New(apperrors.CodeNoDivergence, "challenge must propose a different verdict")
	}

	var findings []model.Finding
	for _, id := range fact.Contributors {
		findings = append(findings, model.Finding{
			ReviewerID:  id,
			Verdict:     fact.Verdict,
			Explanation: fact.Explanation,
			Evidence:    fact.Evidence,
			SubmittedAt: fact.VerifiedAt,
		})
	}
	if len(findings) == 0 {
		findings = append(findings, model.Finding{Verdict: fact.Verdict, Explanation: fact.Explanation, SubmittedAt: fact.VerifiedAt})
	}
	findings = append(findings, model.Finding{
		ReviewerID:  in.ReviewerID,
		Verdict:     in.Verdict,
		Explanation: strings.TrimSpace(in.Explanation),
		Evidence:    w.normalizer.Normalize(in.Evidence, in.Explanation),
		SubmittedAt: w.now().UTC(),
	})

	excluded := []string{in.ReviewerID}
	if c.Submitter != "" {
		excluded = append(excluded, c.Submitter)
	}
	req := model.EscalationRequest{
		ClaimID:          claimID,
		Origin:           model.OriginChallenge,
		InitialFindings:  findings,
		CandidateSeniors: w.roster.Candidates(w.cfg.Escalation.SeniorMinRank, append(slices.Clone(fact.Contributors), excluded...)),
		Excluded:         excluded,
	}

	cs, err := w.escalator.CreateEscalation(ctx, req)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindUnavailable) {
			w.log.Warn("challenge queued without a senior", "claim_id", claimID, "case_id", cs.ID)
			return cs, nil
		}
		return model.EscalationCase{}, err
	}
	w.log.Info("fact challenged", "claim_id", claimID, "case_id", cs.ID, "reviewer_id", in.ReviewerID)
	return cs, nil
}

// AttachSuggestions stores advisory evidence on a claim
func (w *Workflow) AttachSuggestions(ctx context.Context, claimID string, suggestions []model.Suggestion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, unlock, err := w.lockClaim(claimID)
	if err != nil {
		return err
	}
	defer unlock()

	c.Suggestions = slices.Clone(suggestions)
	w.put(c)
	return nil
}

// RetryEscalations re-opens cases for escalated claims whose first
// attempt failed. Returns the number of claims still waiting.
func (w *Workflow) RetryEscalations(ctx context.Context) int {
	w.mu.RLock()
	ids := make([]string, 0, len(w.unescalated))
	for id := range w.unescalated {
		ids = append(ids, id)
	}
	w.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		c, err := w.GetClaim(id)
		if err != nil || c.Status != model.ClaimEscalated {
			w.mu.Lock()
			delete(w.unescalated, id)
			w.mu.Unlock()
			continue
		}
		w.openEscalation(ctx, w.divergenceRequest(c))
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.unescalated)
}

// GetClaim returns a copy of a claim
func (w *Workflow) GetClaim(claimID string) (model.Claim, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.claims[claimID]
	if !ok {
		return model.Claim{}, claimNotFound(claimID)
	}
	return c.Clone(), nil
}

// PendingClaims returns pending claims, oldest first
func (w *Workflow) PendingClaims() []model.Claim {
	return w.ListClaims(model.ClaimPending)
}

// ListClaims returns claims with the given status, or every claim for "",
// oldest first
func (w *Workflow) ListClaims(status model.ClaimStatus) []model.Claim {
	w.mu.RLock()
	var out []model.Claim
	for _, c := range w.claims {
		if status == "" || c.Status == status {
			out = append(out, c.Clone())
		}
	}
	w.mu.RUnlock()

	sortClaims(out)
	return out
}

// Overdue returns processing claims whose deadline passed before at
func (w *Workflow) Overdue(at time.Time) []model.Claim {
	var out []model.Claim
	for _, c := range w.ListClaims(model.ClaimProcessing) {
		if !c.Deadline.IsZero() && at.After(c.Deadline) {
			out = append(out, c)
		}
	}
	return out
}

func sortClaims(cs []model.Claim) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].SubmittedAt.Equal(cs[j].SubmittedAt) {
			return cs[i].SubmittedAt.Before(cs[j].SubmittedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

// lockClaim takes the claim's lock and returns a private copy to mutate
func (w *Workflow) lockClaim(claimID string) (model.Claim, func(), error) {
	unlock := w.locks.Lock(claimID)

	w.mu.RLock()
	c, ok := w.claims[claimID]
	w.mu.RUnlock()
	if !ok {
		unlock()
		return model.Claim{}, nil, claimNotFound(claimID)
	}
	return c.Clone(), unlock, nil
}

func (w *Workflow) put(c model.Claim) {
	w.mu.Lock()
	w.claims[c.ID] = c
	w.mu.Unlock()
}

// appendFact writes rec as the claim's next version and reports whether it
// wrote anything. A chain that already ends with the same outcome counts as
// success without a write.
func (w *Workflow) appendFact(ctx context.Context, rec model.FactRecord) (bool, error) {
	for attempt := 0; attempt < maxFactAttempts; attempt++ {
		latest, err := w.facts.GetFact(ctx, rec.ClaimID)
		switch {
		case err == nil:
			if latest.SameOutcome(rec) {
				return false, nil
			}
			rec.Version = latest.Version + 1
		case apperrors.IsKind(err, apperrors.KindNotFound):
			rec.Version = 1
		default:
			return false, err
		}
		rec.PreviousVersion = rec.Version - 1

		err = w.facts.StoreFact(ctx, rec)
		if err == nil {
			return true, nil
		}
		if !apperrors.IsKind(err, apperrors.KindConflict) {
			return false, err
		}
		w.log.Debug("fact version conflict, retrying", "claim_id", rec.ClaimID, "version", rec.Version)
	}
	return false, apperrors.WithMetadata(apperrors.CodeDuplicateVersion, "could not append fact after repeated conflicts",
		map[string]string{"claim_id": rec.ClaimID})
}

func (w *Workflow) consensusRecord(c model.Claim, result Consensus, at time.Time) model.FactRecord {
	var explanation string
	var ev []model.Evidence
	for _, v := range c.Verifications {
		if !slices.Contains(result.Supporters, v.ReviewerID) {
			continue
		}
		if explanation == "" && v.Verdict == result.Verdict {
			explanation = v.Explanation
		}
		ev = append(ev, v.Evidence...)
	}
	return model.FactRecord{
		ClaimID:      c.ID,
		ClaimText:    c.Content,
		Verdict:      result.Verdict,
		Explanation:  explanation,
		Evidence:     evidence.Dedupe(ev),
		Contributors: slices.Clone(result.Supporters),
		VerifiedAt:   at,
	}
}

func (w *Workflow) divergenceRequest(c model.Claim) model.EscalationRequest {
	findings := make([]model.Finding, 0, len(c.Verifications))
	for _, v := range c.Verifications {
		findings = append(findings, model.Finding{
			ReviewerID:  v.ReviewerID,
			Verdict:     v.Verdict,
			Explanation: v.Explanation,
			Evidence:    v.Evidence,
			SubmittedAt: v.SubmittedAt,
		})
	}

	var excluded []string
	if c.Submitter != "" {
		excluded = append(excluded, c.Submitter)
	}
	return model.EscalationRequest{
		ClaimID:          c.ID,
		Origin:           model.OriginDivergence,
		InitialFindings:  findings,
		CandidateSeniors: w.roster.Candidates(w.cfg.Escalation.SeniorMinRank, append(slices.Clone(c.AssignedReviewers), excluded...)),
		Excluded:         excluded,
	}
}

// openEscalation hands a divergent claim to the coordinator. A queued case
// (no senior yet) or an already open case is not an error here.
func (w *Workflow) openEscalation(ctx context.Context, req model.EscalationRequest) {
	mark := func(pending bool) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if pending {
			w.unescalated[req.ClaimID] = true
		} else {
			delete(w.unescalated, req.ClaimID)
		}
	}

	if w.escalator == nil {
		mark(true)
		w.log.Warn("no escalation coordinator, claim waits", "claim_id", req.ClaimID)
		return
	}

	cs, err := w.escalator.CreateEscalation(ctx, req)
	switch {
	case err == nil:
		mark(false)
	case apperrors.IsKind(err, apperrors.KindUnavailable):
		mark(false)
		w.log.Warn("escalation queued without a senior", "claim_id", req.ClaimID, "case_id", cs.ID)
	case apperrors.IsKind(err, apperrors.KindConflict):
		mark(false)
		w.log.Debug("escalation already open", "claim_id", req.ClaimID)
	default:
		mark(true)
		w.log.Error("opening escalation failed", "claim_id", req.ClaimID, "error", err)
	}
}

func (w *Workflow) statusEvent(claimID string, from, to model.ClaimStatus, verdict model.Verdict) model.Event {
	evt := w.bus.NewEvent(model.TopicClaimStatusUpdated, claimID)
	evt.Old = string(from)
	evt.New = string(to)
	evt.Verdict = verdict
	return evt
}

func (w *Workflow) invalidTransition(c model.Claim, to model.ClaimStatus) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
		"invalid claim transition from "+c.Status.String()+" to "+to.String(),
		map[string]string{"claim_id": c.ID})
}

func validateFinding(in model.VerificationInput) error {
	if strings.TrimSpace(in.ReviewerID) == "" {
		return apperrors.New(apperrors.CodeInvalidVerdict, "reviewer id is required")
	}
	if !in.Verdict.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidVerdict, "unknown verdict %q", in.Verdict)
	}
	if strings.TrimSpace(in.Explanation) == "" {
		return apperrors.New(apperrors.CodeInvalidVerdict, "explanation is required")
	}
	return nil
}

func claimNotFound(claimID string) error {
	return apperrors.WithMetadata(apperrors.CodeClaimNotFound, "claim not found",
		map[string]string{"claim_id": claimID})
}

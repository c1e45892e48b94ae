package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/events"
	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
)

var base = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeRoster struct {
	mu       sync.Mutex
	released []string
	touched  []string
	seniors  []string
}

func (f *fakeRoster) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
}

func (f *fakeRoster) Touch(id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeRoster) Candidates(_ model.Rank, exclude []string) []string {
	var out []string
	for _, id := range f.seniors {
		if !slices.Contains(exclude, id) {
			out = append(out, id)
		}
	}
	return out
}

type fakeEscalator struct {
	mu   sync.Mutex
	reqs []model.EscalationRequest
	err  error
}

func (f *fakeEscalator) CreateEscalation(_ context.Context, req model.EscalationRequest) (model.EscalationCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return model.EscalationCase{ID: "esc_test", ClaimID: req.ClaimID, Origin: req.Origin}, f.err
}

type harness struct {
	wf     *Workflow
	facts  *factledger.MemoryStore
	rep    *reputation.Ledger
	roster *fakeRoster
	esc    *fakeEscalator
	clock  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		facts:  factledger.NewMemoryStore(),
		rep:    reputation.NewLedger(model.ReputationConfig{WarningsPerDemotion: 3}, reputation.WithLogger(logger.Discard())),
		roster: &fakeRoster{seniors: []string{"senior1"}},
		esc:    &fakeEscalator{},
		clock:  base,
	}
	for _, id := range []string{"r1", "r2", "r3", "senior1", "challenger"} {
		if err := h.rep.Initialize(id, 0, 0); err != nil {
			t.Fatalf("initialize %s: %v", id, err)
		}
	}
	h.wf = New(model.DefaultConfig(), h.facts, h.rep, h.roster,
		WithEscalator(h.esc),
		WithLogger(logger.Discard()),
		WithClock(func() time.Time { return h.clock }),
	)
	return h
}

// assigned submits a claim and assigns it to r1..r3
func (h *harness) assigned(t *testing.T, complexity model.Complexity) model.Claim {
	t.Helper()
	ctx := context.Background()
	c, err := h.wf.SubmitClaim(ctx, model.ClaimInput{
		Content:    "The Eiffel Tower was completed in 1889",
		Submitter:  "author",
		Complexity: complexity,
	})
	if err != nil {
		t.Fatalf("submit claim: %v", err)
	}
	if err := h.wf.AssignReviewers(ctx, c.ID, []string{"r1", "r2", "r3"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	return c
}

func (h *harness) verify(t *testing.T, claimID, reviewer string, v model.Verdict) model.Claim {
	t.Helper()
	c, err := h.wf.SubmitVerification(context.Background(), claimID, model.VerificationInput{
		ReviewerID:  reviewer,
		Verdict:     v,
		Explanation: "checked against the archive",
		Evidence:    []model.EvidenceInput{{URL: "https://www.toureiffel.paris/en/history"}},
	})
	if err != nil {
		t.Fatalf("verify %s: %v", reviewer, err)
	}
	return c
}

func TestSubmitClaimValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.wf.SubmitClaim(ctx, model.ClaimInput{Content: "   "}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty content: expected invalid input, got %v", err)
	}
	if _, err := h.wf.SubmitClaim(ctx, model.ClaimInput{Content: "x", Type: "hologram"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("bad type: expected invalid input, got %v", err)
	}

	c, err := h.wf.SubmitClaim(ctx, model.ClaimInput{Content: "  Water boils at 100C  "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if c.Status != model.ClaimPending || c.Type != model.ClaimTypeText || c.Complexity != model.ComplexityLow {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.Content != "Water boils at 100C" {
		t.Errorf("content not trimmed: %q", c.Content)
	}
	if len(h.wf.PendingClaims()) != 1 {
		t.Errorf("expected one pending claim")
	}
}

func TestAssignReviewersSetsDeadline(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityMedium)

	got, _ := h.wf.GetClaim(c.ID)
	if got.Status != model.ClaimProcessing {
		t.Fatalf("status = %s", got.Status)
	}
	if !got.Deadline.Equal(base.Add(48 * time.Hour)) {
		t.Errorf("deadline = %v", got.Deadline)
	}

	err := h.wf.AssignReviewers(context.Background(), c.ID, []string{"r1"})
	if !errors.Is(err, apperrors.New(apperrors.CodeStaleClaim, "")) {
		t.Errorf("expected stale claim conflict, got %v", err)
	}
}

func TestAssignReviewersRejectsSubmitter(t *testing.T) {
	h := newHarness(t)
	c, _ := h.wf.SubmitClaim(context.Background(), model.ClaimInput{Content: "x", Submitter: "r1"})

	err := h.wf.AssignReviewers(context.Background(), c.ID, []string{"r1", "r2"})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestConsensusRecordsFactAndRewards(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityHigh)

	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictTrue)
	got := h.verify(t, c.ID, "r3", model.VerdictFalse)

	if got.Status != model.ClaimCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}

	fact, err := h.facts.GetFact(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get fact: %v", err)
	}
	if fact.Version != 1 || fact.Verdict != model.VerdictTrue {
		t.Errorf("fact = v%d %s", fact.Version, fact.Verdict)
	}
	if !slices.Equal(fact.Contributors, []string{"r1", "r2"}) {
		t.Errorf("contributors = %v", fact.Contributors)
	}
	if len(fact.Evidence) != 1 {
		t.Errorf("evidence not deduplicated: %d", len(fact.Evidence))
	}

	// 10 verification + 3 speed + 10 high complexity
	if xp, _ := h.rep.GetXP("r1"); xp != 23 {
		t.Errorf("r1 xp = %d, want 23", xp)
	}
	if xp, _ := h.rep.GetXP("r3"); xp != 0 {
		t.Errorf("dissenter xp = %d, want 0", xp)
	}
	perf, _ := h.rep.GetPerformance("r3")
	if perf.ClaimsVerified != 1 || perf.Accuracy != 0 || perf.AccuracySamples != 1 {
		t.Errorf("dissenter performance = %+v", perf)
	}
	if len(h.roster.released) != 3 {
		t.Errorf("released = %v", h.roster.released)
	}
	if len(h.esc.reqs) != 0 {
		t.Errorf("consensus should not escalate")
	}
}

func TestSpeedBonusOutsideWindow(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityLow)

	h.clock = base.Add(3 * time.Hour)
	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictTrue)
	h.verify(t, c.ID, "r3", model.VerdictTrue)

	if xp, _ := h.rep.GetXP("r1"); xp != 10 {
		t.Errorf("xp = %d, want 10 without speed bonus", xp)
	}
	perf, _ := h.rep.GetPerformance("r1")
	if perf.AverageVerificationTime != 3*time.Hour {
		t.Errorf("verification time = %v", perf.AverageVerificationTime)
	}
}

func TestSubmitVerificationGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending, _ := h.wf.SubmitClaim(ctx, model.ClaimInput{Content: "x"})
	in := model.VerificationInput{ReviewerID: "r1", Verdict: model.VerdictTrue, Explanation: "ok"}

	if _, err := h.wf.SubmitVerification(ctx, pending.ID, in); !errors.Is(err, apperrors.New(apperrors.CodeWrongPhase, "")) {
		t.Errorf("pending claim: expected wrong phase, got %v", err)
	}

	c := h.assigned(t, model.ComplexityLow)
	outsider := in
	outsider.ReviewerID = "mallory"
	if _, err := h.wf.SubmitVerification(ctx, c.ID, outsider); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("unassigned reviewer: expected unauthorized, got %v", err)
	}

	if _, err := h.wf.SubmitVerification(ctx, c.ID, in); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if _, err := h.wf.SubmitVerification(ctx, c.ID, in); !errors.Is(err, apperrors.New(apperrors.CodeAlreadySubmitted, "")) {
		t.Errorf("double submission: expected already submitted, got %v", err)
	}

	bad := in
	bad.ReviewerID = "r2"
	bad.Verdict = "probably"
	if _, err := h.wf.SubmitVerification(ctx, c.ID, bad); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("bad verdict: expected invalid input, got %v", err)
	}

	if _, err := h.wf.SubmitVerification(ctx, "claim_missing", in); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing claim: expected not found, got %v", err)
	}
}

func TestDivergenceEscalates(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityLow)

	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictFalse)
	got := h.verify(t, c.ID, "r3", model.VerdictOpinion)

	if got.Status != model.ClaimEscalated {
		t.Fatalf("status = %s, want escalated", got.Status)
	}
	if len(h.esc.reqs) != 1 {
		t.Fatalf("expected one escalation request, got %d", len(h.esc.reqs))
	}
	req := h.esc.reqs[0]
	if req.Origin != model.OriginDivergence || len(req.InitialFindings) != 3 {
		t.Errorf("request = %+v", req)
	}
	if !slices.Equal(req.CandidateSeniors, []string{"senior1"}) {
		t.Errorf("candidate seniors = %v", req.CandidateSeniors)
	}
	if !slices.Equal(req.Excluded, []string{"author"}) {
		t.Errorf("excluded = %v", req.Excluded)
	}
	if _, err := h.facts.GetFact(context.Background(), c.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("divergent claim must not record a fact yet")
	}
	if xp, _ := h.rep.GetXP("r1"); xp != 0 {
		t.Errorf("xp credited before escalation resolved: %d", xp)
	}
}

func TestEscalationFailureIsRetried(t *testing.T) {
	h := newHarness(t)
	h.esc.err = errors.New("coordinator offline")
	c := h.assigned(t, model.ComplexityLow)

	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictFalse)
	h.verify(t, c.ID, "r3", model.VerdictSatire)

	if n := h.wf.RetryEscalations(context.Background()); n != 1 {
		t.Fatalf("waiting = %d, want 1", n)
	}

	h.esc.err = nil
	if n := h.wf.RetryEscalations(context.Background()); n != 0 {
		t.Errorf("waiting = %d after recovery, want 0", n)
	}
	if len(h.esc.reqs) != 3 {
		t.Errorf("requests = %d, want 3", len(h.esc.reqs))
	}
}

func TestQueuedEscalationIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.esc.err = apperrors.New(apperrors.CodeNoEligibleSenior, "no eligible senior")
	c := h.assigned(t, model.ComplexityLow)

	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictFalse)
	h.verify(t, c.ID, "r3", model.VerdictSatire)

	if n := h.wf.RetryEscalations(context.Background()); n != 0 {
		t.Errorf("queued case counted as waiting: %d", n)
	}
}

func escalate(t *testing.T, h *harness) model.Claim {
	t.Helper()
	c := h.assigned(t, model.ComplexityLow)
	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictFalse)
	h.verify(t, c.ID, "r3", model.VerdictSatire)
	return c
}

func TestFinalizeEscalation(t *testing.T) {
	h := newHarness(t)
	c := escalate(t, h)
	ctx := context.Background()

	res := model.EscalationResolution{
		CaseID:       "esc_1",
		ClaimID:      c.ID,
		Origin:       model.OriginDivergence,
		Outcome:      model.OutcomeUphold,
		FinalVerdict: model.VerdictFalse,
		Explanation:  "Senior review sided with the archive",
		Contributors: []string{"senior1", "r2"},
		ResolvedAt:   base.Add(time.Hour),
	}
	if err := h.wf.FinalizeEscalation(ctx, res); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, _ := h.wf.GetClaim(c.ID)
	if got.Status != model.ClaimCompleted {
		t.Errorf("status = %s", got.Status)
	}
	fact, _ := h.facts.GetFact(ctx, c.ID)
	if fact.Verdict != model.VerdictFalse || fact.EscalationID != "esc_1" || fact.Version != 1 {
		t.Errorf("fact = %+v", fact)
	}

	for id, want := range map[string]int{"r1": 0, "r2": 10, "r3": 0} {
		if xp, _ := h.rep.GetXP(id); xp != want {
			t.Errorf("%s xp = %d, want %d", id, xp, want)
		}
	}

	if err := h.wf.FinalizeEscalation(ctx, res); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if xp, _ := h.rep.GetXP("r2"); xp != 10 {
		t.Errorf("replay credited again: %d", xp)
	}
	history, _ := h.facts.GetClaimHistory(ctx, c.ID)
	if len(history) != 1 {
		t.Errorf("replay appended a version: %d", len(history))
	}

	other := res
	other.CaseID = "esc_2"
	if err := h.wf.FinalizeEscalation(ctx, other); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("second divergence case: expected conflict, got %v", err)
	}
}

func TestFinalizeRequiresEscalatedClaim(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityLow)

	err := h.wf.FinalizeEscalation(context.Background(), model.EscalationResolution{
		CaseID: "esc_1", ClaimID: c.ID, Origin: model.OriginDivergence, FinalVerdict: model.VerdictTrue,
	})
	if !errors.Is(err, apperrors.New(apperrors.CodeInvalidTransition, "")) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestChallengeFact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.assigned(t, model.ComplexityLow)
	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictTrue)
	h.verify(t, c.ID, "r3", model.VerdictTrue)

	same := model.VerificationInput{ReviewerID: "challenger", Verdict: model.VerdictTrue, Explanation: "agree"}
	if _, err := h.wf.ChallengeFact(ctx, c.ID, same); !errors.Is(err, apperrors.New(apperrors.CodeNoDivergence, "")) {
		t.Errorf("expected no divergence, got %v", err)
	}

	cs, err := h.wf.ChallengeFact(ctx, c.ID, model.VerificationInput{
		ReviewerID:  "challenger",
		Verdict:     model.VerdictOutdated,
		Explanation: "Renovations changed the structure",
	})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if cs.Origin != model.OriginChallenge {
		t.Errorf("origin = %s", cs.Origin)
	}
	req := h.esc.reqs[0]
	if len(req.InitialFindings) != 4 {
		t.Errorf("findings = %d, want contributors plus challenger", len(req.InitialFindings))
	}
	if !slices.Equal(req.Excluded, []string{"challenger", "author"}) {
		t.Errorf("excluded = %v", req.Excluded)
	}

	err = h.wf.FinalizeEscalation(ctx, model.EscalationResolution{
		CaseID:       cs.ID,
		ClaimID:      c.ID,
		Origin:       model.OriginChallenge,
		Outcome:      model.OutcomeOverturn,
		FinalVerdict: model.VerdictOutdated,
		Contributors: []string{"senior1"},
	})
	if err != nil {
		t.Fatalf("finalize challenge: %v", err)
	}
	history, _ := h.facts.GetClaimHistory(ctx, c.ID)
	if len(history) != 2 || history[1].PreviousVersion != 1 || history[1].Verdict != model.VerdictOutdated {
		t.Errorf("history = %+v", history)
	}
	got, _ := h.wf.GetClaim(c.ID)
	if got.Status != model.ClaimCompleted {
		t.Errorf("challenge changed status to %s", got.Status)
	}
}

func TestRejectedChallengeKeepsFact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.assigned(t, model.ComplexityLow)
	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictTrue)
	h.verify(t, c.ID, "r3", model.VerdictTrue)

	cs, err := h.wf.ChallengeFact(ctx, c.ID, model.VerificationInput{
		ReviewerID:  "challenger",
		Verdict:     model.VerdictFalse,
		Explanation: "The tower opened in 1887",
	})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	res := model.EscalationResolution{
		CaseID:       cs.ID,
		ClaimID:      c.ID,
		Origin:       model.OriginChallenge,
		Outcome:      model.OutcomeUphold,
		FinalVerdict: model.VerdictTrue,
		Contributors: []string{"senior1"},
	}
	for i := 0; i < 2; i++ {
		if err := h.wf.FinalizeEscalation(ctx, res); err != nil {
			t.Fatalf("finalize #%d: %v", i+1, err)
		}
	}

	history, err := h.facts.GetClaimHistory(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Version != 1 || history[0].EscalationID != "" {
		t.Errorf("rejected appeal changed the chain: %+v", history)
	}
	got, _ := h.wf.GetClaim(c.ID)
	if got.Status != model.ClaimCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestChallengeRequiresCompletedClaim(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityLow)

	_, err := h.wf.ChallengeFact(context.Background(), c.ID, model.VerificationInput{
		ReviewerID: "challenger", Verdict: model.VerdictFalse, Explanation: "no",
	})
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("expected wrong phase, got %v", err)
	}
}

func TestEventsFollowLifecycle(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var seen []string
	err := h.wf.AddEventListener("audit", model.TopicAll, func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(e.Topic)+":"+e.New)
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	c := h.assigned(t, model.ComplexityLow)
	h.verify(t, c.ID, "r1", model.VerdictTrue)
	h.verify(t, c.ID, "r2", model.VerdictTrue)
	h.verify(t, c.ID, "r3", model.VerdictTrue)

	want := []string{
		"claim_submitted:pending",
		"claim_status_updated:processing",
		"claim_status_updated:completed",
	}
	if !slices.Equal(seen, want) {
		t.Errorf("events = %v, want %v", seen, want)
	}

	if !h.wf.RemoveEventListener("audit", model.TopicAll) {
		t.Error("listener not removed")
	}
}

func TestListenerMayCallBack(t *testing.T) {
	bus := events.NewBus(logger.Discard())
	h := newHarness(t)
	h.wf = New(model.DefaultConfig(), h.facts, h.rep, h.roster, WithBus(bus), WithLogger(logger.Discard()))

	done := make(chan model.Claim, 1)
	_ = bus.AddEventListener("reader", model.TopicClaimSubmitted, func(e model.Event) {
		c, _ := h.wf.GetClaim(e.ClaimID)
		done <- c
	})

	c, _ := h.wf.SubmitClaim(context.Background(), model.ClaimInput{Content: "x"})
	select {
	case got := <-done:
		if got.ID != c.ID {
			t.Errorf("listener read %q", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("listener blocked")
	}
}

func TestOverdueAndList(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityLow)
	_, _ = h.wf.SubmitClaim(context.Background(), model.ClaimInput{Content: "still pending"})

	if got := h.wf.Overdue(base.Add(time.Hour)); len(got) != 0 {
		t.Errorf("overdue too early: %d", len(got))
	}
	got := h.wf.Overdue(base.Add(25 * time.Hour))
	if len(got) != 1 || got[0].ID != c.ID {
		t.Errorf("overdue = %+v", got)
	}
	if n := len(h.wf.ListClaims("")); n != 2 {
		t.Errorf("all claims = %d", n)
	}
}

func TestAttachSuggestions(t *testing.T) {
	h := newHarness(t)
	c, _ := h.wf.SubmitClaim(context.Background(), model.ClaimInput{Content: "x"})

	err := h.wf.AttachSuggestions(context.Background(), c.ID, []model.Suggestion{{URL: "https://example.org"}})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _ := h.wf.GetClaim(c.ID)
	if len(got.Suggestions) != 1 {
		t.Errorf("suggestions = %v", got.Suggestions)
	}
}

func TestConcurrentVerificationsSettleOnce(t *testing.T) {
	h := newHarness(t)
	c := h.assigned(t, model.ComplexityLow)

	var wg sync.WaitGroup
	for _, id := range []string{"r1", "r2", "r3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = h.wf.SubmitVerification(context.Background(), c.ID, model.VerificationInput{
				ReviewerID: id, Verdict: model.VerdictTrue, Explanation: "ok",
			})
		}(id)
	}
	wg.Wait()

	history, err := h.facts.GetClaimHistory(context.Background(), c.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %d err = %v", len(history), err)
	}
}

// Package scheduler runs the periodic dispatch and retry pass that keeps
// unavailable work moving without blocking callers.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

// Dispatcher assigns pending claims
type Dispatcher interface {
	AssignClaims(ctx context.Context) (int, error)
}

// Escalations retries queued cases, short councils and failed finalizations
type Escalations interface {
	RetryPending(ctx context.Context) int
}

// Claims exposes the workflow state a pass looks at
type Claims interface {
	PendingClaims() []model.Claim
	RetryEscalations(ctx context.Context) int
	Overdue(at time.Time) []model.Claim
}

// Enricher attaches advisory evidence to claims
type Enricher interface {
	Enrich(ctx context.Context, claims []model.Claim) int
}

// Report summarizes one pass
type Report struct {
	Enriched           int `json:"enriched"`
	Assigned           int `json:"assigned"`
	WaitingClaims      int `json:"waiting_claims"`      // Escalated claims without a case
	WaitingEscalations int `json:"waiting_escalations"` // Queued, short council or unfinalized
	Overdue            int `json:"overdue"`
}

// Scheduler runs Tick on an interval
type Scheduler struct {
	dispatcher  Dispatcher
	escalations Escalations
	claims      Claims
	enricher    Enricher
	interval    time.Duration
	log         *slog.Logger
	now         func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithEnricher adds a retrieval pass over pending claims
func WithEnricher(e Enricher) Option {
	return func(s *Scheduler) { s.enricher = e }
}

// WithLogger sets the scheduler logger
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithClock overrides the clock used for deadline checks
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler
func New(cfg model.SchedulerConfig, d Dispatcher, e Escalations, c Claims, opts ...Option) *Scheduler {
	s := &Scheduler{
		dispatcher:  d,
		escalations: e,
		claims:      c,
		interval:    cfg.Interval,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log)
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	return s
}

// Tick runs one pass: enrich pending claims, assign them, retry stalled
// escalations and report overdue reviews
func (s *Scheduler) Tick(ctx context.Context) Report {
	var r Report

	if s.enricher != nil {
		r.Enriched = s.enricher.Enrich(ctx, s.claims.PendingClaims())
	}

	n, err := s.dispatcher.AssignClaims(ctx)
	if err != nil {
		s.log.Error("assignment pass failed", "error", err)
	}
	r.Assigned = n

	r.WaitingClaims = s.claims.RetryEscalations(ctx)
	r.WaitingEscalations = s.escalations.RetryPending(ctx)

	overdue := s.claims.Overdue(s.now())
	r.Overdue = len(overdue)
	for _, c := range overdue {
		s.log.Warn("claim review overdue", "claim_id", c.ID, "deadline", c.Deadline, "reviewers", c.AssignedReviewers)
	}

	s.log.Debug("scheduler pass",
		"enriched", r.Enriched,
		"assigned", r.Assigned,
		"waiting_claims", r.WaitingClaims,
		"waiting_escalations", r.WaitingEscalations,
		"overdue", r.Overdue)
	return r
}

// Run ticks immediately and then on every interval until ctx is done or
// Stop is called
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped", "reason", ctx.Err())
			return
		case <-s.stopChan:
			s.log.Info("scheduler stopped")
			return
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

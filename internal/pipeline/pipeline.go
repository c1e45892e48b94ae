// Package pipeline wires the ledgers, roster, workflow and escalation tiers
// into one runnable system.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/aletheia/internal/cache"
	"github.com/ppiankov/aletheia/internal/dispatch"
	"github.com/ppiankov/aletheia/internal/escalation"
	"github.com/ppiankov/aletheia/internal/events"
	"github.com/ppiankov/aletheia/internal/evidence"
	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/factledger/sqlite"
	"github.com/ppiankov/aletheia/internal/finance"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
	"github.com/ppiankov/aletheia/internal/scheduler"
	"github.com/ppiankov/aletheia/internal/workflow"
)

const auditSubscriber = "audit"

// Pipeline owns every component of a running instance
type Pipeline struct {
	Config      model.Config
	Facts       factledger.Store
	Reputation  *reputation.Ledger
	Pool        *finance.Pool
	Bus         *events.Bus
	Roster      *dispatch.Dispatcher
	Escalations *escalation.Coordinator
	Workflow    *workflow.Workflow
	Scheduler   *scheduler.Scheduler
	Links       *evidence.LinkChecker

	log *slog.Logger
}

// Option configures a Pipeline
type Option func(*options)

type options struct {
	log   *slog.Logger
	now   func() time.Time
	facts factledger.Store
}

// WithLogger sets the logger shared by every component
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock overrides the clock shared by every component
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFactStore uses an already opened ledger instead of cfg.Ledger
func WithFactStore(s factledger.Store) Option {
	return func(o *options) { o.facts = s }
}

// OpenFactStore opens the ledger backend named by cfg
func OpenFactStore(cfg model.LedgerConfig) (factledger.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return factledger.NewMemoryStore(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open fact ledger: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// New builds and wires all components from cfg
func New(cfg model.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.OrDefault(o.log)

	facts := o.facts
	if facts == nil {
		var err error
		facts, err = OpenFactStore(cfg.Ledger)
		if err != nil {
			return nil, err
		}
	}

	pool := finance.NewPool(log)
	rep := reputation.NewLedger(cfg.Reputation, reputation.WithSink(pool), reputation.WithLogger(log))
	bus := events.NewBus(log)
	roster := dispatch.New(cfg.Dispatch, rep, dispatch.WithLogger(log), dispatch.WithClock(o.now))

	coord := escalation.New(cfg.Escalation, roster, rep,
		escalation.WithBus(bus),
		escalation.WithLogger(log),
		escalation.WithClock(o.now))

	authority := evidence.NewAuthorityClassifier(&cfg.Authority)
	wf := workflow.New(cfg, facts, rep, roster,
		workflow.WithEscalator(coord),
		workflow.WithBus(bus),
		workflow.WithNormalizer(evidence.NewNormalizer(authority)),
		workflow.WithLogger(log),
		workflow.WithClock(o.now))

	coord.SetResolver(wf)
	roster.SetClaimSource(wf)

	schedOpts := []scheduler.Option{scheduler.WithLogger(log), scheduler.WithClock(o.now)}
	store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	retriever, err := evidence.NewRetriever(cfg.Retrieval, store, cfg.Cache.MemoryTTL, log)
	if err != nil {
		log.Warn("evidence retrieval disabled", "error", err)
	} else if retriever != nil {
		schedOpts = append(schedOpts, scheduler.WithEnricher(
			evidence.NewEnricher(retriever, wf, cfg.Retrieval.Workers, log)))
	}

	p := &Pipeline{
		Config:      cfg,
		Facts:       facts,
		Reputation:  rep,
		Pool:        pool,
		Bus:         bus,
		Roster:      roster,
		Escalations: coord,
		Workflow:    wf,
		Scheduler:   scheduler.New(cfg.Scheduler, roster, coord, wf, schedOpts...),
		Links:       evidence.NewLinkChecker(cfg.Evidence, authority, log),
		log:         log,
	}

	audit := events.Idempotent(p.audit, events.NewSeen(time.Hour), time.Hour)
	if err := bus.AddEventListener(auditSubscriber, model.TopicAll, audit); err != nil {
		return nil, fmt.Errorf("subscribe audit log: %w", err)
	}
	return p, nil
}

func (p *Pipeline) audit(evt model.Event) {
	p.log.Info("event",
		"topic", string(evt.Topic),
		"event_id", evt.ID,
		"claim_id", evt.ClaimID,
		"escalation_id", evt.EscalationID,
		"old", evt.Old,
		"new", evt.New,
		"verdict", string(evt.Verdict))
}

// Register adds reviewers to the roster
func (p *Pipeline) Register(reviewers ...model.ReviewerProfile) error {
	var errs []error
	for _, r := range reviewers {
		if err := p.Roster.RegisterAletheian(r); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", r.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Run starts the scheduler loop and blocks until ctx is done
func (p *Pipeline) Run(ctx context.Context) {
	p.Scheduler.Run(ctx)
}

// Close stops the scheduler and closes the fact ledger
func (p *Pipeline) Close() error {
	p.Scheduler.Stop()
	p.Bus.RemoveEventListener(auditSubscriber, model.TopicAll)
	return p.Facts.Close()
}

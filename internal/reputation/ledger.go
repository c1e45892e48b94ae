// Package reputation keeps each reviewer's XP, rank, warnings and
// performance metrics.
//
// Rank is derived, never stored: it is computed from the highest XP the
// reviewer has held and the number of warnings. A penalty lowers XP (and
// therefore payment weight) without costing rank; only warnings demote.
package reputation

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

// XPRecorder receives every applied XP change, e.g. a payment pool
type XPRecorder interface {
	RecordXP(reviewerID string, delta int)
}

// Standing is a snapshot of one reviewer's reputation
type Standing struct {
	ID          string            `json:"id" yaml:"id"`
	XP          int               `json:"xp" yaml:"xp"`
	PeakXP      int               `json:"peak_xp" yaml:"peak_xp"`
	Warnings    int               `json:"warnings" yaml:"warnings"`
	Rank        model.Rank        `json:"rank" yaml:"rank"`
	Performance model.Performance `json:"performance" yaml:"performance"`
}

type entry struct {
	xp          int
	peakXP      int
	warnings    int
	performance model.Performance
}

// Ledger owns reputation state for all reviewers
type Ledger struct {
	mu                  sync.RWMutex
	entries             map[string]*entry
	warningsPerDemotion int
	sink                XPRecorder
	log                 *slog.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithSink forwards applied XP deltas to r
func WithSink(r XPRecorder) Option {
	return func(l *Ledger) { l.sink = r }
}

// WithLogger sets the ledger logger
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// NewLedger creates an empty ledger
func NewLedger(cfg model.ReputationConfig, opts ...Option) *Ledger {
	l := &Ledger{
		entries:             make(map[string]*entry),
		warningsPerDemotion: cfg.WarningsPerDemotion,
	}
	if l.warningsPerDemotion <= 0 {
		l.warningsPerDemotion = model.DefaultConfig().Reputation.WarningsPerDemotion
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logger.OrDefault(l.log)
	return l
}

// Initialize creates the ledger entry for a reviewer. The opening balance
// is not reported to the sink; payout weights count earned XP only.
func (l *Ledger) Initialize(id string, xp, warnings int) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.New(apperrors.CodeInvalidProfile, "reviewer id is required")
	}
	if xp < 0 || warnings < 0 {
		return apperrors.New(apperrors.CodeInvalidProfile, "xp and warnings must not be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; ok {
		return apperrors.WithMetadata(apperrors.CodeAlreadyRegistered, "reviewer already has a reputation entry",
			map[string]string{"reviewer_id": id})
	}
	l.entries[id] = &entry{xp: xp, peakXP: xp, warnings: warnings}
	return nil
}

// UpdateXP applies an action and returns the resulting standing.
// XP never drops below zero; a penalty larger than the balance truncates.
func (l *Ledger) UpdateXP(id string, action Action) (Standing, error) {
	delta, err := action.Delta()
	if err != nil {
		return Standing{}, err
	}

	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		l.mu.Unlock()
		return Standing{}, notFound(id)
	}
	before := l.rankOf(e)
	oldXP := e.xp
	e.xp += delta
	if e.xp < 0 {
		e.xp = 0
	}
	if e.xp > e.peakXP {
		e.peakXP = e.xp
	}
	applied := e.xp - oldXP
	standing := l.standing(id, e)
	l.mu.Unlock()

	if standing.Rank != before {
		l.log.Info("reviewer rank changed",
			"reviewer_id", id, "from", before.String(), "to", standing.Rank.String(), "xp", standing.XP)
	}
	if applied != 0 && l.sink != nil {
		l.sink.RecordXP(id, applied)
	}
	return standing, nil
}

// AddWarning records a warning; enough warnings demote the reviewer
func (l *Ledger) AddWarning(id string) (Standing, error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		l.mu.Unlock()
		return Standing{}, notFound(id)
	}
	before := l.rankOf(e)
	e.warnings++
	standing := l.standing(id, e)
	l.mu.Unlock()

	if standing.Rank != before {
		l.log.Warn("reviewer demoted",
			"reviewer_id", id, "from", before.String(), "to", standing.Rank.String(), "warnings", standing.Warnings)
	}
	return standing, nil
}

// UpdatePerformance merges one metric sample. Counters increment;
// verification time and accuracy keep a running average.
func (l *Ledger) UpdatePerformance(id string, m Metric) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return notFound(id)
	}

	p := &e.performance
	switch m.Kind {
	case MetricEscalationsResolved:
		p.EscalationsResolved++
	case MetricClaimsVerified:
		p.ClaimsVerified++
	case MetricVerificationTime:
		if m.Duration < 0 {
			return apperrors.New(apperrors.CodeInvalidProfile, "verification time must not be negative")
		}
		p.TimeSamples++
		p.AverageVerificationTime += (m.Duration - p.AverageVerificationTime) / time.Duration(p.TimeSamples)
	case MetricAccuracy:
		if m.Value < 0 || m.Value > 1 {
			return apperrors.New(apperrors.CodeInvalidProfile, "accuracy sample must be within [0, 1]")
		}
		p.AccuracySamples++
		p.Accuracy += (m.Value - p.Accuracy) / float64(p.AccuracySamples)
	default:
		return apperrors.Newf(apperrors.CodeInvalidProfile, "unknown metric %q", m.Kind)
	}
	return nil
}

// GetRank returns the reviewer's current rank
func (l *Ledger) GetRank(id string) (model.Rank, error) {
	s, err := l.Standing(id)
	return s.Rank, err
}

// GetXP returns the reviewer's XP balance
func (l *Ledger) GetXP(id string) (int, error) {
	s, err := l.Standing(id)
	return s.XP, err
}

// GetWarnings returns the reviewer's warning count
func (l *Ledger) GetWarnings(id string) (int, error) {
	s, err := l.Standing(id)
	return s.Warnings, err
}

// GetPerformance returns the reviewer's performance metrics
func (l *Ledger) GetPerformance(id string) (model.Performance, error) {
	s, err := l.Standing(id)
	return s.Performance, err
}

// Standing returns a full snapshot for one reviewer
func (l *Ledger) Standing(id string) (Standing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[id]
	if !ok {
		return Standing{}, notFound(id)
	}
	return l.standing(id, e), nil
}

// Standings returns every reviewer, ordered by XP descending then id
func (l *Ledger) Standings() []Standing {
	l.mu.RLock()
	out := make([]Standing, 0, len(l.entries))
	for id, e := range l.entries {
		out = append(out, l.standing(id, e))
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (l *Ledger) rankOf(e *entry) model.Rank {
	return ComputeRank(e.peakXP, e.warnings, l.warningsPerDemotion)
}

func (l *Ledger) standing(id string, e *entry) Standing {
	return Standing{
		ID:          id,
		XP:          e.xp,
		PeakXP:      e.peakXP,
		Warnings:    e.warnings,
		Rank:        l.rankOf(e),
		Performance: e.performance,
	}
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeReviewerNotFound, "reviewer not found",
		map[string]string{"reviewer_id": id})
}

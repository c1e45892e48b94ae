// Package dispatch keeps the reviewer roster and matches pending claims
// with eligible reviewers.
package dispatch

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/reputation"
)

// Reputation is the part of the reputation ledger the roster needs
type Reputation interface {
	Initialize(id string, xp, warnings int) error
	Standing(id string) (reputation.Standing, error)
}

// ClaimSource exposes pending claims and accepts assignments
type ClaimSource interface {
	PendingClaims() []model.Claim
	AssignReviewers(ctx context.Context, claimID string, reviewers []string) error
}

type member struct {
	status     model.Availability
	lastActive time.Time
	expertise  []string
	workload   int
}

// Dispatcher owns reviewer availability, workload and expertise
type Dispatcher struct {
	cfg model.DispatchConfig
	rep Reputation

	mu      sync.RWMutex
	members map[string]*member

	assignMu sync.Mutex // One assignment pass at a time
	source   ClaimSource

	log *slog.Logger
	now func() time.Time
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithClock overrides the clock used for last-active stamps
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates an empty roster backed by the reputation ledger
func New(cfg model.DispatchConfig, rep Reputation, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:     cfg,
		rep:     rep,
		members: make(map[string]*member),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrDefault(d.log)
	return d
}

// SetClaimSource connects the dispatcher to the claim workflow
func (d *Dispatcher) SetClaimSource(src ClaimSource) {
	d.assignMu.Lock()
	defer d.assignMu.Unlock()
	d.source = src
}

// RegisterAletheian adds a reviewer to the roster and opens their
// reputation entry. A declared rank is honoured by starting the reviewer
// at no less than that rank's XP threshold.
func (d *Dispatcher) RegisterAletheian(p model.ReviewerProfile) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return apperrors.New(apperrors.CodeInvalidProfile, "reviewer id is required")
	}
	if !p.Rank.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidProfile, "invalid rank %d", int(p.Rank))
	}
	if p.Status == "" {
		p.Status = model.AvailabilityActive
	}
	if !p.Status.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidProfile, "invalid status %q", p.Status)
	}
	if p.XP < 0 || p.Warnings < 0 || p.Workload < 0 {
		return apperrors.New(apperrors.CodeInvalidProfile, "xp, warnings and workload must not be negative")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.members[p.ID]; ok {
		return apperrors.WithMetadata(apperrors.CodeAlreadyRegistered, "reviewer already registered",
			map[string]string{"reviewer_id": p.ID})
	}
	if err := d.rep.Initialize(p.ID, max(p.XP, reputation.Threshold(p.Rank)), p.Warnings); err != nil {
		return err
	}

	lastActive := p.LastActive
	if lastActive.IsZero() {
		lastActive = d.now().UTC()
	}
	d.members[p.ID] = &member{
		status:     p.Status,
		lastActive: lastActive,
		expertise:  slices.Clone(p.Expertise),
		workload:   p.Workload,
	}
	d.log.Info("reviewer registered", "reviewer_id", p.ID, "status", string(p.Status))
	return nil
}

// UpdateAletheianStatus changes a reviewer's availability
func (d *Dispatcher) UpdateAletheianStatus(id string, status model.Availability) error {
	if !status.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidProfile, "invalid status %q", status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.members[id]
	if !ok {
		return notFound(id)
	}
	if m.status != status {
		d.log.Info("reviewer status changed", "reviewer_id", id, "from", string(m.status), "to", string(status))
	}
	m.status = status
	return nil
}

// GetWorkload returns the number of open assignments held by a reviewer
func (d *Dispatcher) GetWorkload(id string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.members[id]
	if !ok {
		return 0, notFound(id)
	}
	return m.workload, nil
}

// Touch records reviewer activity
func (d *Dispatcher) Touch(id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.members[id]
	if !ok {
		return notFound(id)
	}
	if at.After(m.lastActive) {
		m.lastActive = at.UTC()
	}
	return nil
}

// Acquire adds one open assignment to a reviewer
func (d *Dispatcher) Acquire(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.members[id]
	if !ok {
		return notFound(id)
	}
	m.workload++
	return nil
}

// Release closes one open assignment. Workload never drops below zero.
func (d *Dispatcher) Release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.members[id]; ok && m.workload > 0 {
		m.workload--
	}
}

// IsActive reports whether a registered reviewer is available for work
func (d *Dispatcher) IsActive(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.members[id]
	return ok && m.status == model.AvailabilityActive
}

// Rank returns a reviewer's current rank
func (d *Dispatcher) Rank(id string) (model.Rank, error) {
	d.mu.RLock()
	_, ok := d.members[id]
	d.mu.RUnlock()
	if !ok {
		return model.RankTrainee, notFound(id)
	}

	s, err := d.rep.Standing(id)
	if err != nil {
		return model.RankTrainee, err
	}
	return s.Rank, nil
}

// Profile merges roster state with the reviewer's reputation
func (d *Dispatcher) Profile(id string) (model.ReviewerProfile, error) {
	d.mu.RLock()
	m, ok := d.members[id]
	var p model.ReviewerProfile
	if ok {
		p = model.ReviewerProfile{
			ID:         id,
			Status:     m.status,
			LastActive: m.lastActive,
			Expertise:  slices.Clone(m.expertise),
			Workload:   m.workload,
		}
	}
	d.mu.RUnlock()
	if !ok {
		return model.ReviewerProfile{}, notFound(id)
	}

	s, err := d.rep.Standing(id)
	if err != nil {
		return model.ReviewerProfile{}, err
	}
	p.Rank = s.Rank
	p.XP = s.XP
	p.Warnings = s.Warnings
	p.Performance = s.Performance
	return p, nil
}

// Reviewers returns every registered profile, ordered by id
func (d *Dispatcher) Reviewers() []model.ReviewerProfile {
	d.mu.RLock()
	ids := make([]string, 0, len(d.members))
	for id := range d.members {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	sort.Strings(ids)

	out := make([]model.ReviewerProfile, 0, len(ids))
	for _, id := range ids {
		p, err := d.Profile(id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// candidate is a roster snapshot used for ranking
type candidate struct {
	id         string
	rank       model.Rank
	workload   int
	lastActive time.Time
	expertise  []string
}

// snapshot copies the active roster. Reputation is read outside the roster lock.
func (d *Dispatcher) snapshot() []candidate {
	d.mu.RLock()
	out := make([]candidate, 0, len(d.members))
	for id, m := range d.members {
		if m.status != model.AvailabilityActive {
			continue
		}
		out = append(out, candidate{
			id:         id,
			workload:   m.workload,
			lastActive: m.lastActive,
			expertise:  m.expertise,
		})
	}
	d.mu.RUnlock()

	kept := out[:0]
	for _, c := range out {
		s, err := d.rep.Standing(c.id)
		if err != nil {
			d.log.Warn("reviewer missing from reputation ledger", "reviewer_id", c.id, "error", err)
			continue
		}
		c.rank = s.Rank
		kept = append(kept, c)
	}
	sortCandidates(kept)
	return kept
}

// sortCandidates orders by lowest workload, then longest idle, then id
func sortCandidates(cs []candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].workload != cs[j].workload {
			return cs[i].workload < cs[j].workload
		}
		if !cs[i].lastActive.Equal(cs[j].lastActive) {
			return cs[i].lastActive.Before(cs[j].lastActive)
		}
		return cs[i].id < cs[j].id
	})
}

// Candidates returns active reviewers at or above minRank, excluding the
// given ids, best first. Workload limits do not apply.
func (d *Dispatcher) Candidates(minRank model.Rank, exclude []string) []string {
	var out []string
	for _, c := range d.snapshot() {
		if c.rank.AtLeast(minRank) && !slices.Contains(exclude, c.id) {
			out = append(out, c.id)
		}
	}
	return out
}

// AssignClaims runs one assignment pass over pending claims, oldest first.
// A claim without enough eligible reviewers stays pending. Returns the
// number of claims assigned.
func (d *Dispatcher) AssignClaims(ctx context.Context) (int, error) {
	d.assignMu.Lock()
	defer d.assignMu.Unlock()

	if d.source == nil {
		return 0, apperrors.New(apperrors.CodeNoEligibleReviewer, "dispatcher has no claim source")
	}

	assigned := 0
	for _, claim := range d.source.PendingClaims() {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}

		picks := d.pick(claim)
		if len(picks) < d.cfg.ReviewersPerClaim {
			d.log.Debug("not enough eligible reviewers",
				"claim_id", claim.ID, "eligible", len(picks), "required", d.cfg.ReviewersPerClaim)
			continue
		}

		if !d.reserve(picks) {
			continue
		}
		if err := d.source.AssignReviewers(ctx, claim.ID, picks); err != nil {
			for _, id := range picks {
				d.Release(id)
			}
			if apperrors.IsKind(err, apperrors.KindConflict) {
				d.log.Debug("claim no longer pending", "claim_id", claim.ID)
				continue
			}
			d.log.Error("assignment failed", "claim_id", claim.ID, "error", err)
			continue
		}

		assigned++
		d.log.Info("claim assigned", "claim_id", claim.ID, "reviewers", picks)
	}
	return assigned, nil
}

// pick chooses reviewers for one claim, or fewer than required when the
// roster cannot cover it
func (d *Dispatcher) pick(claim model.Claim) []string {
	minRank := d.cfg.MinRank(claim.Complexity)

	var eligible []candidate
	for _, c := range d.snapshot() {
		if !c.rank.AtLeast(minRank) || c.workload >= d.cfg.MaxWorkload {
			continue
		}
		if c.id == claim.Submitter || claim.IsAssigned(c.id) {
			continue
		}
		eligible = append(eligible, c)
	}

	if len(claim.Topics) > 0 {
		var experts []candidate
		for _, c := range eligible {
			p := model.ReviewerProfile{Expertise: c.expertise}
			if p.HasExpertise(claim.Topics) {
				experts = append(experts, c)
			}
		}
		if len(experts) >= d.cfg.ReviewersPerClaim {
			eligible = experts
		}
	}

	n := min(len(eligible), d.cfg.ReviewersPerClaim)
	picks := make([]string, 0, n)
	for _, c := range eligible[:n] {
		picks = append(picks, c.id)
	}
	return picks
}

// reserve increments workloads before the claim is handed over, so a
// reviewer who finishes early can never be released below their real load.
// Fails if any pick went inactive or hit the limit since the snapshot.
func (d *Dispatcher) reserve(ids []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		m, ok := d.members[id]
		if !ok || m.status != model.AvailabilityActive || m.workload >= d.cfg.MaxWorkload {
			return false
		}
	}
	for _, id := range ids {
		d.members[id].workload++
	}
	return true
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeReviewerNotFound, "reviewer not registered",
		map[string]string{"reviewer_id": id})
}

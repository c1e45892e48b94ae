package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

type fakeDispatcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeDispatcher) AssignClaims(context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

type fakeEscalations struct{ waiting int }

func (f *fakeEscalations) RetryPending(context.Context) int { return f.waiting }

type fakeClaims struct {
	pending []model.Claim
	overdue []model.Claim
}

func (f *fakeClaims) PendingClaims() []model.Claim         { return f.pending }
func (f *fakeClaims) RetryEscalations(context.Context) int { return 1 }
func (f *fakeClaims) Overdue(time.Time) []model.Claim      { return f.overdue }

type fakeEnricher struct{ seen int }

func (f *fakeEnricher) Enrich(_ context.Context, claims []model.Claim) int {
	f.seen = len(claims)
	return len(claims)
}

func TestTickReports(t *testing.T) {
	d := &fakeDispatcher{}
	claims := &fakeClaims{
		pending: []model.Claim{{ID: "claim_1"}, {ID: "claim_2"}},
		overdue: []model.Claim{{ID: "claim_3"}},
	}
	enricher := &fakeEnricher{}
	s := New(model.SchedulerConfig{Interval: time.Minute}, d, &fakeEscalations{waiting: 4}, claims,
		WithEnricher(enricher), WithLogger(logger.Discard()))

	r := s.Tick(context.Background())
	want := Report{Enriched: 2, Assigned: 2, WaitingClaims: 1, WaitingEscalations: 4, Overdue: 1}
	if r != want {
		t.Errorf("report = %+v, want %+v", r, want)
	}
	if enricher.seen != 2 {
		t.Errorf("enricher saw %d claims", enricher.seen)
	}
}

func TestTickContinuesAfterAssignError(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("no source")}
	s := New(model.SchedulerConfig{}, d, &fakeEscalations{waiting: 1}, &fakeClaims{}, WithLogger(logger.Discard()))

	r := s.Tick(context.Background())
	if r.WaitingEscalations != 1 {
		t.Errorf("retry skipped after assignment error: %+v", r)
	}
	if s.interval != 30*time.Second {
		t.Errorf("default interval = %v", s.interval)
	}
}

func TestRunStops(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(model.SchedulerConfig{Interval: 5 * time.Millisecond}, d, &fakeEscalations{}, &fakeClaims{},
		WithLogger(logger.Discard()))

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for d.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not tick")
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(model.SchedulerConfig{Interval: time.Hour}, &fakeDispatcher{}, &fakeEscalations{}, &fakeClaims{},
		WithLogger(logger.Discard()))

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

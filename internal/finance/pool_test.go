package finance

import (
	"testing"

	"github.com/ppiankov/aletheia/internal/logger"
)

func TestRecordXPClampsAtZero(t *testing.T) {
	p := NewPool(logger.Discard())
	p.RecordXP("r1", 10)
	p.RecordXP("r1", -25)

	if got := p.Weight("r1"); got != 0 {
		t.Errorf("weight = %d, want 0", got)
	}
}

func TestDistributeProportional(t *testing.T) {
	p := NewPool(logger.Discard())
	p.RecordXP("alice", 30)
	p.RecordXP("bob", 10)
	p.RecordXP("carol", 0)

	shares, err := p.Distribute(1000)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares (zero weights skipped), got %d", len(shares))
	}
	if shares[0].ReviewerID != "alice" || shares[0].Amount != 750 {
		t.Errorf("alice share = %+v", shares[0])
	}
	if shares[1].ReviewerID != "bob" || shares[1].Amount != 250 {
		t.Errorf("bob share = %+v", shares[1])
	}
}

func TestDistributeRemainders(t *testing.T) {
	p := NewPool(logger.Discard())
	p.RecordXP("a", 1)
	p.RecordXP("b", 1)
	p.RecordXP("c", 1)

	shares, err := p.Distribute(100)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}

	var sum int64
	for _, s := range shares {
		sum += s.Amount
		if s.Amount < 33 || s.Amount > 34 {
			t.Errorf("unexpected share %+v", s)
		}
	}
	if sum != 100 {
		t.Errorf("shares sum to %d, want 100", sum)
	}
}

func TestDistributeRejectsNegative(t *testing.T) {
	p := NewPool(logger.Discard())
	if _, err := p.Distribute(-1); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestDistributeEmptyPool(t *testing.T) {
	p := NewPool(logger.Discard())
	shares, err := p.Distribute(500)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(shares) != 0 {
		t.Errorf("expected no shares, got %v", shares)
	}
}

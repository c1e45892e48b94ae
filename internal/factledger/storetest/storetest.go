// Package storetest holds behaviour checks shared by every factledger.Store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/model"
)

// Record builds a valid record for tests
func Record(claimID string, version int, verdict model.Verdict) model.FactRecord {
	return model.FactRecord{
		ClaimID:      claimID,
		ClaimText:    "The Eiffel Tower was completed in 1889",
		Verdict:      verdict,
		Explanation:  "Construction records from the Exposition Universelle",
		Evidence:     []model.Evidence{{SourceURL: "https://www.toureiffel.paris/en", ContentHash: "abc", Credibility: 80}},
		Contributors: []string{"r1", "r2"},
		Version:      version,
		VerifiedAt:   time.Date(2026, time.March, 1, 12, 0, version, 0, time.UTC),
	}
}

// Run exercises the Store contract against stores built by open
func Run(t *testing.T, open func(t *testing.T) factledger.Store) {
	t.Helper()

	t.Run("StoreAndGet", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if err := s.StoreFact(ctx, Record("claim_1", 1, model.VerdictTrue)); err != nil {
			t.Fatalf("store: %v", err)
		}

		got, err := s.GetFact(ctx, "claim_1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version != 1 || got.PreviousVersion != 0 {
			t.Errorf("version = %d prev = %d, want 1 and 0", got.Version, got.PreviousVersion)
		}
		if got.Verdict != model.VerdictTrue {
			t.Errorf("verdict = %s", got.Verdict)
		}
		if len(got.Evidence) != 1 || got.Evidence[0].ContentHash != "abc" {
			t.Errorf("evidence not preserved: %+v", got.Evidence)
		}
		if len(got.Contributors) != 2 {
			t.Errorf("contributors not preserved: %v", got.Contributors)
		}
		if !got.VerifiedAt.Equal(Record("claim_1", 1, model.VerdictTrue).VerifiedAt) {
			t.Errorf("verified_at = %v", got.VerifiedAt)
		}
	})

	t.Run("DuplicateVersionConflicts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if err := s.StoreFact(ctx, Record("claim_1", 1, model.VerdictTrue)); err != nil {
			t.Fatalf("first store: %v", err)
		}
		err := s.StoreFact(ctx, Record("claim_1", 1, model.VerdictFalse))
		if !errors.Is(err, apperrors.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if !errors.Is(err, apperrors.New(apperrors.CodeDuplicateVersion, "")) {
			t.Errorf("expected DuplicateVersion code, got %v", err)
		}

		got, _ := s.GetFact(ctx, "claim_1")
		if got.Verdict != model.VerdictTrue {
			t.Errorf("rejected write changed the record: %s", got.Verdict)
		}
	})

	t.Run("SkippedVersionConflicts", func(t *testing.T) {
		s := open(t)
		err := s.StoreFact(context.Background(), Record("claim_1", 2, model.VerdictTrue))
		if !errors.Is(err, apperrors.ErrConflict) {
			t.Errorf("expected conflict for version 2 on empty chain, got %v", err)
		}
	})

	t.Run("HistoryChain", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		verdicts := []model.Verdict{model.VerdictTrue, model.VerdictMostlyTrue, model.VerdictHalfTruth}
		for i, v := range verdicts {
			if err := s.StoreFact(ctx, Record("claim_1", i+1, v)); err != nil {
				t.Fatalf("store v%d: %v", i+1, err)
			}
		}

		history, err := s.GetClaimHistory(ctx, "claim_1")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 versions, got %d", len(history))
		}
		for i, rec := range history {
			if rec.Version != i+1 {
				t.Errorf("history[%d].Version = %d", i, rec.Version)
			}
			if rec.PreviousVersion != i {
				t.Errorf("history[%d].PreviousVersion = %d, want %d", i, rec.PreviousVersion, i)
			}
			if rec.Verdict != verdicts[i] {
				t.Errorf("history[%d].Verdict = %s", i, rec.Verdict)
			}
		}

		latest, _ := s.GetFact(ctx, "claim_1")
		if latest.Version != 3 {
			t.Errorf("GetFact returned version %d, want 3", latest.Version)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if _, err := s.GetFact(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("GetFact: expected not found, got %v", err)
		}
		if _, err := s.GetClaimHistory(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("GetClaimHistory: expected not found, got %v", err)
		}
	})

	t.Run("InvalidRecord", func(t *testing.T) {
		s := open(t)
		rec := Record("claim_1", 1, "probably")
		if err := s.StoreFact(context.Background(), rec); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := Record("claim_a", 1, model.VerdictTrue)
		a.ClaimText = "Water boils at 100 degrees Celsius at sea level"
		b := Record("claim_b", 1, model.VerdictFalse)
		b.ClaimText = "The Great Wall is visible from the Moon"
		b.Explanation = "Astronaut accounts contradict this"
		for _, rec := range []model.FactRecord{a, b} {
			if err := s.StoreFact(ctx, rec); err != nil {
				t.Fatalf("store %s: %v", rec.ClaimID, err)
			}
		}

		got, err := s.SearchClaims(ctx, "great WALL")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 1 || got[0].ClaimID != "claim_b" {
			t.Errorf("expected claim_b, got %+v", got)
		}

		got, _ = s.SearchClaims(ctx, "astronaut moon")
		if len(got) != 0 {
			t.Errorf("expected explanations to be ignored, got %d", len(got))
		}

		got, _ = s.SearchClaims(ctx, "false")
		if len(got) != 0 {
			t.Errorf("expected verdicts to be ignored, got %d", len(got))
		}

		got, _ = s.SearchClaims(ctx, "water moon")
		if len(got) != 0 {
			t.Errorf("expected all terms to be required, got %d", len(got))
		}
	})

	t.Run("SearchUsesLatestVersion", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_ = s.StoreFact(ctx, Record("claim_1", 1, model.VerdictTrue))
		_ = s.StoreFact(ctx, Record("claim_1", 2, model.VerdictMostlyTrue))

		got, err := s.SearchClaims(ctx, "eiffel")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 1 || got[0].Version != 2 {
			t.Errorf("expected only the latest version, got %+v", got)
		}
	})

	t.Run("ConcurrentWritersOneWins", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins, conflicts := 0, 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := Record("claim_1", 1, model.VerdictTrue)
				rec.Explanation = fmt.Sprintf("writer %d", i)
				err := s.StoreFact(ctx, rec)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, apperrors.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 || conflicts != 7 {
			t.Errorf("wins=%d conflicts=%d, want 1 and 7", wins, conflicts)
		}
	})
}

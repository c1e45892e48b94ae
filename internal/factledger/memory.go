package factledger

import (
	"context"
	"sort"
	"sync"

	"github.com/ppiankov/aletheia/internal/model"
)

// MemoryStore keeps fact chains in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]model.FactRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]model.FactRecord)}
}

// StoreFact appends rec to its claim's chain
func (s *MemoryStore) StoreFact(ctx context.Context, rec model.FactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[rec.ClaimID]
	if err := CheckVersion(rec, len(chain)); err != nil {
		return err
	}

	rec = rec.Clone()
	rec.PreviousVersion = rec.Version - 1
	rec.VerifiedAt = rec.VerifiedAt.UTC()
	s.chains[rec.ClaimID] = append(chain, rec)
	return nil
}

// GetFact returns the latest version for a claim
func (s *MemoryStore) GetFact(ctx context.Context, claimID string) (model.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.FactRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[claimID]
	if len(chain) == 0 {
		return model.FactRecord{}, NotFound(claimID)
	}
	return chain[len(chain)-1].Clone(), nil
}

// GetClaimHistory returns the whole chain, oldest first
func (s *MemoryStore) GetClaimHistory(ctx context.Context, claimID string) ([]model.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[claimID]
	if len(chain) == 0 {
		return nil, NotFound(claimID)
	}
	out := make([]model.FactRecord, len(chain))
	for i, rec := range chain {
		out[i] = rec.Clone()
	}
	return out, nil
}

// SearchClaims scans the latest version of every chain
func (s *MemoryStore) SearchClaims(ctx context.Context, query string) ([]model.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Terms(query)

	s.mu.RLock()
	var out []model.FactRecord
	for _, chain := range s.chains {
		latest := chain[len(chain)-1]
		if Matches(latest, terms) {
			out = append(out, latest.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClaimID < out[j].ClaimID })
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

// Package finance tracks the XP-weighted payment pool.
//
// The pool only records weights and computes shares; moving currency is
// the job of an external payment system.
package finance

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ppiankov/aletheia/internal/logger"
)

// Share is one reviewer's portion of a distribution, in minor currency units
type Share struct {
	ReviewerID string `json:"reviewer_id" yaml:"reviewer_id"`
	Weight     int    `json:"weight" yaml:"weight"`
	Amount     int64  `json:"amount" yaml:"amount"`
}

// Pool accumulates XP weights per reviewer
type Pool struct {
	mu      sync.Mutex
	weights map[string]int
	log     *slog.Logger
}

// NewPool creates an empty pool
func NewPool(log *slog.Logger) *Pool {
	return &Pool{
		weights: make(map[string]int),
		log:     logger.OrDefault(log),
	}
}

// RecordXP adds delta to a reviewer's weight. Weights never go below zero.
func (p *Pool) RecordXP(reviewerID string, delta int) {
	p.mu.Lock()
	w := p.weights[reviewerID] + delta
	if w < 0 {
		w = 0
	}
	p.weights[reviewerID] = w
	p.mu.Unlock()

	p.log.Debug("xp recorded", "reviewer_id", reviewerID, "delta", delta, "weight", w)
}

// Weight returns a reviewer's current weight
func (p *Pool) Weight(reviewerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.weights[reviewerID]
}

// TotalWeight returns the sum of all weights
func (p *Pool) TotalWeight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, w := range p.weights {
		total += w
	}
	return total
}

// Distribute splits amount across reviewers in proportion to their weight.
// Rounding leftovers go to the largest remainders, so shares always sum to amount.
func (p *Pool) Distribute(amount int64) ([]Share, error) {
	if amount < 0 {
		return nil, fmt.Errorf("distribution amount must not be negative")
	}

	p.mu.Lock()
	shares := make([]Share, 0, len(p.weights))
	var total int64
	for id, w := range p.weights {
		if w > 0 {
			shares = append(shares, Share{ReviewerID: id, Weight: w})
			total += int64(w)
		}
	}
	p.mu.Unlock()

	sort.Slice(shares, func(i, j int) bool { return shares[i].ReviewerID < shares[j].ReviewerID })
	if total == 0 || amount == 0 {
		return shares, nil
	}

	remainders := make([]int64, len(shares))
	var assigned int64
	for i := range shares {
		product := amount * int64(shares[i].Weight)
		shares[i].Amount = product / total
		remainders[i] = product % total
		assigned += shares[i].Amount
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for i := int64(0); i < amount-assigned; i++ {
		shares[order[i]].Amount++
	}

	return shares, nil
}

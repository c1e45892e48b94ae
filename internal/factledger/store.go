// Package factledger is the append-only store of finalized verdicts.
//
// Each claim owns a chain of FactRecords with versions 1, 2, 3, ...;
// a write must carry exactly the next version, so a replayed or racing
// write fails with a Conflict instead of silently forking the chain.
package factledger

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/model"
)

// Store persists fact records
type Store interface {
	// StoreFact appends rec; rec.Version must be the latest version + 1.
	StoreFact(ctx context.Context, rec model.FactRecord) error
	// GetFact returns the latest version for a claim.
	GetFact(ctx context.Context, claimID string) (model.FactRecord, error)
	// GetClaimHistory returns every version, oldest first.
	GetClaimHistory(ctx context.Context, claimID string) ([]model.FactRecord, error)
	// SearchClaims returns latest versions whose text contains every query term.
	SearchClaims(ctx context.Context, query string) ([]model.FactRecord, error)
	Close() error
}

// Validate checks a record before it is appended
func Validate(rec model.FactRecord) error {
	if strings.TrimSpace(rec.ClaimID) == "" {
		return apperrors.New(apperrors.CodeInvalidFact, "claim id is required")
	}
	if !rec.Verdict.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidFact, "invalid verdict %q", rec.Verdict)
	}
	if rec.Version < 1 {
		return apperrors.New(apperrors.CodeInvalidFact, "version must start at 1")
	}
	if rec.VerifiedAt.IsZero() {
		return apperrors.New(apperrors.CodeInvalidFact, "verified_at is required")
	}
	return nil
}

// CheckVersion enforces the strict +1 increment against the latest stored version
func CheckVersion(rec model.FactRecord, latest int) error {
	if rec.Version != latest+1 {
		return apperrors.WithMetadata(apperrors.CodeDuplicateVersion,
			"fact version must increment the latest version by one",
			map[string]string{"claim_id": rec.ClaimID})
	}
	return nil
}

// Terms splits a search query into case-folded keywords
func Terms(query string) []string {
	return strings.Fields(fold(query))
}

// Matches reports whether rec's claim text contains every term
func Matches(rec model.FactRecord, terms []string) bool {
	haystack := fold(rec.ClaimText)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// fold maps s to NFKC with full case folding so "Straße" matches "STRASSE"
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// NotFound is the error returned for a claim with no recorded fact
func NotFound(claimID string) error {
	return apperrors.WithMetadata(apperrors.CodeFactNotFound, "no fact recorded for claim",
		map[string]string{"claim_id": claimID})
}

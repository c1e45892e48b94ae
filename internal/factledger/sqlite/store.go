// Package sqlite provides a SQLite-backed fact ledger.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/ppiankov/aletheia/internal/factledger"
	"github.com/ppiankov/aletheia/internal/factledger/sqlite/migrations"
	"github.com/ppiankov/aletheia/internal/model"
)

// Store persists fact chains in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite fact ledger and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; version checks and inserts are single statements.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// StoreFact appends one record. The version check and the insert are a
// single statement, so a concurrent writer of the same version loses cleanly.
func (s *Store) StoreFact(ctx context.Context, rec model.FactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := factledger.Validate(rec); err != nil {
		return err
	}

	evidenceJSON, err := json.Marshal(nonNilEvidence(rec.Evidence))
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	contributorsJSON, err := json.Marshal(nonNilStrings(rec.Contributors))
	if err != nil {
		return fmt.Errorf("encode contributors: %w", err)
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO facts (
		   claim_id,
		   version,
		   previous_version,
		   claim_text,
		   verdict,
		   explanation,
		   evidence_json,
		   contributors_json,
		   escalation_id,
		   verified_at
		 )
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE COALESCE((SELECT MAX(version) FROM facts WHERE claim_id = ?), 0) = ?`,
		rec.ClaimID,
		rec.Version,
		rec.Version-1,
		rec.ClaimText,
		string(rec.Verdict),
		rec.Explanation,
		string(evidenceJSON),
		string(contributorsJSON),
		rec.EscalationID,
		toMillis(rec.VerifiedAt),
		rec.ClaimID,
		rec.Version-1,
	)
	if err != nil {
		if isFactUniqueViolation(err) {
			return factledger.CheckVersion(rec, rec.Version)
		}
		return fmt.Errorf("insert fact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	if n == 0 {
		latest, err := s.latestVersion(ctx, rec.ClaimID)
		if err != nil {
			return err
		}
		return factledger.CheckVersion(rec, latest)
	}
	return nil
}

// GetFact returns the latest version for a claim.
func (s *Store) GetFact(ctx context.Context, claimID string) (model.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.FactRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		selectFacts+` WHERE claim_id = ? ORDER BY version DESC LIMIT 1`, claimID)
	rec, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FactRecord{}, factledger.NotFound(claimID)
	}
	if err != nil {
		return model.FactRecord{}, fmt.Errorf("get fact: %w", err)
	}
	return rec, nil
}

// GetClaimHistory returns every version, oldest first.
func (s *Store) GetClaimHistory(ctx context.Context, claimID string) ([]model.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		selectFacts+` WHERE claim_id = ? ORDER BY version ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("claim history: %w", err)
	}
	defer rows.Close()

	history, err := scanFacts(rows)
	if err != nil {
		return nil, fmt.Errorf("claim history: %w", err)
	}
	if len(history) == 0 {
		return nil, factledger.NotFound(claimID)
	}
	return history, nil
}

// SearchClaims returns latest versions containing every query term.
func (s *Store) SearchClaims(ctx context.Context, query string) ([]model.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := factledger.Terms(query)

	rows, err := s.sqlDB.QueryContext(ctx,
		selectFacts+` f WHERE version = (SELECT MAX(version) FROM facts WHERE claim_id = f.claim_id)`)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	defer rows.Close()

	latest, err := scanFacts(rows)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}

	var out []model.FactRecord
	for _, rec := range latest {
		if factledger.Matches(rec, terms) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimID < out[j].ClaimID })
	return out, nil
}

func (s *Store) latestVersion(ctx context.Context, claimID string) (int, error) {
	var latest int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM facts WHERE claim_id = ?`, claimID).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return latest, nil
}

const selectFacts = `SELECT
   claim_id,
   version,
   previous_version,
   claim_text,
   verdict,
   explanation,
   evidence_json,
   contributors_json,
   escalation_id,
   verified_at
 FROM facts`

type scanner interface {
	Scan(dest ...any) error
}

func scanFact(row scanner) (model.FactRecord, error) {
	var (
		rec              model.FactRecord
		verdict          string
		evidenceJSON     string
		contributorsJSON string
		verifiedAt       int64
	)
	if err := row.Scan(
		&rec.ClaimID,
		&rec.Version,
		&rec.PreviousVersion,
		&rec.ClaimText,
		&verdict,
		&rec.Explanation,
		&evidenceJSON,
		&contributorsJSON,
		&rec.EscalationID,
		&verifiedAt,
	); err != nil {
		return model.FactRecord{}, err
	}
	rec.Verdict = model.Verdict(verdict)
	rec.VerifiedAt = fromMillis(verifiedAt)
	if err := json.Unmarshal([]byte(evidenceJSON), &rec.Evidence); err != nil {
		return model.FactRecord{}, fmt.Errorf("decode evidence: %w", err)
	}
	if err := json.Unmarshal([]byte(contributorsJSON), &rec.Contributors); err != nil {
		return model.FactRecord{}, fmt.Errorf("decode contributors: %w", err)
	}
	return rec, nil
}

func scanFacts(rows *sql.Rows) ([]model.FactRecord, error) {
	var out []model.FactRecord
	for rows.Next() {
		rec, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nonNilEvidence(in []model.Evidence) []model.Evidence {
	if in == nil {
		return []model.Evidence{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func isFactUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "facts.claim_id")
}

var _ factledger.Store = (*Store)(nil)

// Package checkpoint persists per-unit completion state so an
// interrupted run can resume without repeating finished model calls.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"qagen/internal/domain"
)

// Store is a sqlite-backed completion ledger. One row per completed
// unit, keyed by the unit's deterministic key, plus a failure table
// that doubles as the re-run manifest.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS completed_units (
	unit_key     TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	doc_id       TEXT NOT NULL,
	keyword      TEXT NOT NULL,
	variant      TEXT NOT NULL,
	augmentation INTEGER NOT NULL,
	pair_count   INTEGER NOT NULL,
	pairs_json   TEXT NOT NULL,
	completed_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS failures (
	unit_key     TEXT PRIMARY KEY,
	doc_id       TEXT NOT NULL,
	keyword      TEXT NOT NULL,
	variant      TEXT NOT NULL,
	augmentation INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	message      TEXT NOT NULL,
	attempts     INTEGER NOT NULL,
	failed_at    TIMESTAMP NOT NULL
);`

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.ConfigurationError("open checkpoint database", err)
	}
	// The ledger is written from many workers through one connection;
	// sqlite serializes them itself.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.ConfigurationError("initialize checkpoint schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsCompleted reports whether the unit already has a completed row.
func (s *Store) IsCompleted(key string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM completed_units WHERE unit_key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkCompleted records a successful unit result and clears any failure
// row left by an earlier run.
func (s *Store) MarkCompleted(runID string, res domain.UnitResult) error {
	pairs, err := json.Marshal(res.Pairs)
	if err != nil {
		return err
	}

	key := res.Unit.Key()
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO completed_units
			(unit_key, run_id, doc_id, keyword, variant, augmentation, pair_count, pairs_json, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, runID, res.Unit.DocID, res.Unit.Keyword, string(res.Unit.Variant),
		res.Unit.AugmentationIndex, len(res.Pairs), string(pairs), time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`DELETE FROM failures WHERE unit_key = ?`, key)
	return err
}

// CompletedResults returns every completed unit with its pairs, so a
// resumed run can seed the aggregator before generating anything new.
func (s *Store) CompletedResults() ([]domain.UnitResult, error) {
	rows, err := s.db.Query(`
		SELECT doc_id, keyword, variant, augmentation, pairs_json
		FROM completed_units`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.UnitResult
	for rows.Next() {
		var unit domain.Unit
		var variant, pairsJSON string
		if err := rows.Scan(&unit.DocID, &unit.Keyword, &variant, &unit.AugmentationIndex, &pairsJSON); err != nil {
			return nil, err
		}
		unit.Variant = domain.PromptVariant(variant)

		var pairs []domain.QAPair
		if err := json.Unmarshal([]byte(pairsJSON), &pairs); err != nil {
			return nil, err
		}
		results = append(results, domain.UnitResult{Unit: unit, Pairs: pairs})
	}
	return results, rows.Err()
}

// RecordFailure upserts a failure row for the unit.
func (s *Store) RecordFailure(rec domain.FailureRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO failures
			(unit_key, doc_id, keyword, variant, augmentation, kind, message, attempts, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Unit.Key(), rec.Unit.DocID, rec.Unit.Keyword, string(rec.Unit.Variant),
		rec.Unit.AugmentationIndex, string(rec.Kind), rec.Message, rec.Attempts, rec.FailedAt.UTC())
	return err
}

// Failures returns the failure manifest ordered by unit key.
func (s *Store) Failures() ([]domain.FailureRecord, error) {
	rows, err := s.db.Query(`
		SELECT doc_id, keyword, variant, augmentation, kind, message, attempts, failed_at
		FROM failures ORDER BY unit_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.FailureRecord
	for rows.Next() {
		var rec domain.FailureRecord
		var variant, kind string
		if err := rows.Scan(&rec.Unit.DocID, &rec.Unit.Keyword, &variant,
			&rec.Unit.AugmentationIndex, &kind, &rec.Message, &rec.Attempts, &rec.FailedAt); err != nil {
			return nil, err
		}
		rec.Unit.Variant = domain.PromptVariant(variant)
		rec.Kind = domain.ErrorKind(kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}

package runstore

import "strings"

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS solve_runs (
  run_id TEXT PRIMARY KEY,
  problem TEXT NOT NULL,
  phase TEXT NOT NULL,
  failure_reason TEXT NOT NULL DEFAULT '',
  iteration_count INTEGER NOT NULL DEFAULT 0,
  answer TEXT NOT NULL DEFAULT '',
  confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  snapshot JSONB,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_solve_runs_created_at ON solve_runs (created_at DESC);
`)
	})
	return s.schemaErr
}

func scanRecordDB(row rowScanner) (Record, bool) {
	var rec Record
	var snapshot []byte
	err := row.Scan(
		&rec.RunID,
		&rec.Problem,
		&rec.Phase,
		&rec.FailureReason,
		&rec.IterationCount,
		&rec.Answer,
		&rec.Confidence,
		&snapshot,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, false
	}
	rec.Snapshot = snapshot
	return rec, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) putDB(rec Record) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
INSERT INTO solve_runs (
  run_id, problem, phase, failure_reason, iteration_count, answer, confidence, snapshot, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (run_id)
DO UPDATE SET problem=EXCLUDED.problem,
  phase=EXCLUDED.phase,
  failure_reason=EXCLUDED.failure_reason,
  iteration_count=EXCLUDED.iteration_count,
  answer=EXCLUDED.answer,
  confidence=EXCLUDED.confidence,
  snapshot=EXCLUDED.snapshot`,
		rec.RunID, rec.Problem, string(rec.Phase), rec.FailureReason,
		rec.IterationCount, rec.Answer, rec.Confidence, []byte(rec.Snapshot), rec.CreatedAt)
	return err
}

func (s *Store) getDB(runID string) (Record, bool) {
	if err := s.ensureSchema(); err != nil {
		return Record{}, false
	}
	id := strings.TrimSpace(runID)
	if id == "" {
		return Record{}, false
	}
	row := s.db.QueryRow(`SELECT run_id, problem, phase, failure_reason, iteration_count, answer, confidence, snapshot, created_at
FROM solve_runs WHERE run_id = $1`, id)
	return scanRecordDB(row)
}

func (s *Store) listDB() []Record {
	if err := s.ensureSchema(); err != nil {
		return nil
	}
	rows, err := s.db.Query(`SELECT run_id, problem, phase, failure_reason, iteration_count, answer, confidence, snapshot, created_at
FROM solve_runs ORDER BY created_at DESC LIMIT 200`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	out := make([]Record, 0, 32)
	for rows.Next() {
		if rec, ok := scanRecordDB(rows); ok {
			out = append(out, rec)
		}
	}
	return out
}

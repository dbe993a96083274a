// Package runstore archives terminal run snapshots: the problem, the
// outcome, the full context snapshot and the per-iteration ledger,
// queryable by run id.
//
// Two backends share one API: a JSON file for local runs and Postgres
// when RUN_STORE_PG_DSN is set.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

// Record is one archived run.
type Record struct {
	RunID          string          `json:"run_id"`
	Problem        string          `json:"problem"`
	Phase          solve.Phase     `json:"phase"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	IterationCount int             `json:"iteration_count"`
	Answer         string          `json:"answer,omitempty"`
	Confidence     float64         `json:"confidence,omitempty"`
	Snapshot       json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// FromRun builds the archive record for a finished run.
func FromRun(runID string, rc *solve.RunContext) (Record, error) {
	if rc == nil {
		return Record{}, fmt.Errorf("runstore: nil run context")
	}
	if !rc.Phase.Terminal() {
		return Record{}, fmt.Errorf("runstore: run %s is not terminal (phase %s)", runID, rc.Phase)
	}
	snapshot, err := json.Marshal(rc)
	if err != nil {
		return Record{}, fmt.Errorf("runstore: snapshot: %w", err)
	}
	rec := Record{
		RunID:          strings.TrimSpace(runID),
		Problem:        rc.Problem,
		Phase:          rc.Phase,
		FailureReason:  string(rc.FailureReason),
		IterationCount: rc.IterationCount,
		Snapshot:       snapshot,
		CreatedAt:      time.Now().UTC(),
	}
	if rc.FinalAnswer != nil {
		rec.Answer = rc.FinalAnswer.Answer
		rec.Confidence = rc.FinalAnswer.Confidence
	}
	return rec, nil
}

// Store persists run records to a JSON file or to Postgres.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Record

	schemaOnce sync.Once
	schemaErr  error
}

// New opens a file-backed store at path.
func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]Record),
	}
}

// NewPostgres opens a Postgres-backed store.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewFromEnv prefers Postgres via RUN_STORE_PG_DSN and falls back to the
// file backend at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("RUN_STORE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) Put(rec Record) error {
	if s == nil {
		return fmt.Errorf("runstore: store is nil")
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("runstore: run_id is required")
	}
	if s.db != nil {
		return s.putDB(rec)
	}
	return s.putFile(rec)
}

func (s *Store) Get(runID string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	if s.db != nil {
		return s.getDB(runID)
	}
	return s.getFile(runID)
}

// List returns archived runs, most recent first.
func (s *Store) List() []Record {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.listDB()
	}
	return s.listFile()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

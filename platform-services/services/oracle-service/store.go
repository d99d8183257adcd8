package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
)

var (
	ErrNotFound            = errors.New("submission not found")
	ErrDuplicateSubmission = errors.New("submission already processed for this pool")
)

// SubmissionStore persists processed submissions.
type SubmissionStore interface {
	Create(ctx context.Context, sub *Submission) error
	// UpdatePayout records the payout outcome of a stored submission.
	UpdatePayout(ctx context.Context, sub *Submission) error
	Get(ctx context.Context, id int64) (*Submission, error)
	List(ctx context.Context, limit int) ([]Submission, error)
	Ping(ctx context.Context) error
}

// PostgresStore keeps submissions in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTables creates the submissions table.
func (s *PostgresStore) CreateTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS submissions (
		id BIGSERIAL PRIMARY KEY,
		pool_id TEXT NOT NULL DEFAULT '',
		submission_object_id TEXT NOT NULL DEFAULT '',
		oracle_cap_id TEXT NOT NULL DEFAULT '',
		submitter TEXT NOT NULL DEFAULT '',
		hash CHAR(64) NOT NULL,
		winner BOOLEAN NOT NULL DEFAULT FALSE,
		payout VARCHAR(20) NOT NULL DEFAULT 'none',
		digest TEXT NOT NULL DEFAULT '',
		payout_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS submissions_pool_hash_idx ON submissions (pool_id, hash);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create submissions table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, sub *Submission) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (pool_id, submission_object_id, oracle_cap_id, submitter, hash, winner, payout, digest, payout_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, sub.PoolID, sub.SubmissionObjectID, sub.OracleCapID, sub.Submitter, sub.Hash,
		sub.Winner, sub.Payout, sub.Digest, sub.PayoutError).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePayout(ctx context.Context, sub *Submission) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET payout = $1, digest = $2, payout_error = $3 WHERE id = $4`,
		sub.Payout, sub.Digest, sub.PayoutError, sub.ID)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectSubmission = `
	SELECT id, pool_id, submission_object_id, oracle_cap_id, submitter, hash, winner, payout, digest, payout_error, created_at
	FROM submissions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (*Submission, error) {
	var sub Submission
	err := row.Scan(&sub.ID, &sub.PoolID, &sub.SubmissionObjectID, &sub.OracleCapID, &sub.Submitter,
		&sub.Hash, &sub.Winner, &sub.Payout, &sub.Digest, &sub.PayoutError, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, selectSubmission+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, selectSubmission+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Count returns the number of stored submissions.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n)
	return n, err
}

// MemoryStore keeps submissions in memory. It backs local runs without a
// database and the tests.
type MemoryStore struct {
	mu   sync.Mutex
	subs []Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.PoolID == sub.PoolID && s.Hash == sub.Hash {
			return ErrDuplicateSubmission
		}
	}
	sub.ID = int64(len(m.subs) + 1)
	sub.CreatedAt = time.Now().UTC()
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *MemoryStore) UpdatePayout(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID < 1 || sub.ID > int64(len(m.subs)) {
		return ErrNotFound
	}
	stored := &m.subs[sub.ID-1]
	stored.Payout = sub.Payout
	stored.Digest = sub.Digest
	stored.PayoutError = sub.PayoutError
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > int64(len(m.subs)) {
		return nil, ErrNotFound
	}
	sub := m.subs[id-1]
	return &sub, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Submission{}
	for i := len(m.subs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.subs[i])
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

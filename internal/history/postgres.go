package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists utterances in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS consult_utterances (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			session_kind TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_consult_utterances_subject_created ON consult_utterances (subject_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, u Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO consult_utterances (id, subject_id, session_id, session_kind, speaker, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID,
		u.SubjectID,
		u.SessionID,
		u.SessionKind,
		u.Speaker,
		u.Text,
		u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save utterance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, subjectID string, limit int) ([]Utterance, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, session_id, session_kind, speaker, text, created_at
		 FROM consult_utterances WHERE subject_id=$1 ORDER BY created_at DESC LIMIT $2`,
		subjectID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent utterances: %w", err)
	}
	defer rows.Close()

	items := make([]Utterance, 0, limit)
	for rows.Next() {
		var u Utterance
		if err := rows.Scan(&u.ID, &u.SubjectID, &u.SessionID, &u.SessionKind, &u.Speaker, &u.Text, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan utterance row: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate utterance rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

package storage

import (
	"context"
	"encoding/json"

	"BProject/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS board_snapshots (
	doc_id     TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS board_activities (
	doc_id     TEXT PRIMARY KEY,
	entries    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PgStore persists board snapshots and ledgers in PostgreSQL, one row per
// document, state as JSONB.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore connects a pool and ensures the schema exists.
func NewPgStore(ctx context.Context, url string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ensure schema")
	}
	return &PgStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PgStore) Close() { s.pool.Close() }

func (s *PgStore) LoadBoard(ctx context.Context, docID string) (*model.DocumentState, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM board_snapshots WHERE doc_id = $1`, docID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load board")
	}
	var st model.DocumentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, errors.Wrap(err, "decode board")
	}
	return &st, true, nil
}

func (s *PgStore) SaveBoard(ctx context.Context, docID string, state *model.DocumentState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode board")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO board_snapshots (doc_id, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (doc_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		docID, raw)
	return errors.Wrap(err, "save board")
}

func (s *PgStore) LoadActivities(ctx context.Context, docID string) ([]*model.ActivityEntry, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT entries FROM board_activities WHERE doc_id = $1`, docID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load activities")
	}
	var entries []*model.ActivityEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "decode activities")
	}
	return entries, nil
}

func (s *PgStore) SaveActivities(ctx context.Context, docID string, entries []*model.ActivityEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode activities")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO board_activities (doc_id, entries, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (doc_id) DO UPDATE SET entries = EXCLUDED.entries, updated_at = now()`,
		docID, raw)
	return errors.Wrap(err, "save activities")
}

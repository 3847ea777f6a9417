package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quailrun-gg/scrimsync/internal/store"
)

const (
	documentSessions   = "sessions"
	documentAttendance = "attendance"
	documentWins       = "wins"
)

// PostgresStore keeps each document as a single jsonb row, replaced whole on
// every write. The row-level upsert gives the same guarantee as an atomic
// file replace: readers never observe a partially written document.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) store.Store {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SessionMap(ctx context.Context) (store.SessionMap, error) {
	m := store.SessionMap{}
	if err := s.getDocument(ctx, documentSessions, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) PutSessionMap(ctx context.Context, m store.SessionMap) error {
	return s.putDocument(ctx, documentSessions, m)
}

func (s *PostgresStore) Attendance(ctx context.Context) (store.AttendanceMap, error) {
	m := store.AttendanceMap{}
	if err := s.getDocument(ctx, documentAttendance, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) PutAttendance(ctx context.Context, m store.AttendanceMap) error {
	return s.putDocument(ctx, documentAttendance, m)
}

func (s *PostgresStore) Wins(ctx context.Context) (store.WinMap, error) {
	m := store.WinMap{}
	if err := s.getDocument(ctx, documentWins, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) PutWins(ctx context.Context, m store.WinMap) error {
	return s.putDocument(ctx, documentWins, m)
}

func (s *PostgresStore) getDocument(ctx context.Context, name string, out any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE name = $1`, name).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return fmt.Errorf("failed to read document %q: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode document %q: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) putDocument(ctx context.Context, name string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %q: %w", name, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (name, doc, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		name, raw)
	if err != nil {
		return fmt.Errorf("failed to write document %q: %w", name, err)
	}
	return nil
}

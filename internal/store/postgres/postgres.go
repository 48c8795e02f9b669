package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"azchat/internal/domain"
)

// Schema creates the tables the store reads and writes. The same DDL works as a
// Supabase migration.
//
//go:embed schema.sql
var Schema string

// Store keeps conversations in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies Schema. Every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const threadColumns = `id::text, title, created_at, updated_at`

func (s *Store) CreateThread(ctx context.Context) (domain.Thread, error) {
	var t domain.Thread
	err := s.pool.QueryRow(ctx,
		`INSERT INTO threads (title) VALUES ($1) RETURNING `+threadColumns,
		domain.DefaultThreadTitle,
	).Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to create thread: %w", err)
	}
	return t, nil
}

func (s *Store) ListThreads(ctx context.Context) ([]domain.Thread, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+threadColumns+` FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var out []domain.Thread
	for rows.Next() {
		var t domain.Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) RenameThread(ctx context.Context, id, title string) error {
	return s.execThread(ctx, `UPDATE threads SET title = $2, updated_at = now() WHERE id::text = $1`, id, title)
}

func (s *Store) TouchThread(ctx context.Context, id string) error {
	return s.execThread(ctx, `UPDATE threads SET updated_at = now() WHERE id::text = $1`, id)
}

// DeleteThread removes the thread; its messages go with it through the cascade.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	return s.execThread(ctx, `DELETE FROM threads WHERE id::text = $1`, id)
}

func (s *Store) execThread(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrThreadNotFound
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, threadID string, role domain.Role, content string, sources []domain.Document) (domain.Message, error) {
	var raw *string
	if sources != nil {
		data, err := json.Marshal(sources)
		if err != nil {
			return domain.Message{}, err
		}
		str := string(data)
		raw = &str
	}

	m := domain.Message{ThreadID: threadID, Role: role, Content: content, Sources: sources}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (thread_id, role, content, sources)
		 SELECT id, $2, $3, $4::jsonb FROM threads WHERE id::text = $1
		 RETURNING id::text, created_at`,
		threadID, string(role), content, raw,
	).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, domain.ErrThreadNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, thread_id::text, role, content, sources, created_at
		 FROM messages WHERE thread_id::text = $1 ORDER BY created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m    domain.Message
			role string
			raw  []byte
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &role, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.Role(role)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) RecordSearchAudit(ctx context.Context, threadID, query string, count int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_history (thread_id, query, results_count) VALUES ($1::uuid, $2, $3)`,
		threadID, query, count,
	)
	return err
}

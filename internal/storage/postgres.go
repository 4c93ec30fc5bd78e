package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
)

// PostgresStore keeps the attempt log and an archive mirror in
// Postgres, for running the assistant against shared storage instead
// of local JSONL files.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	s := &PostgresStore{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ,
			text TEXT,
			kind TEXT,
			likes INT, replies INT, retweets INT, quotes INT,
			conversation_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			source_text TEXT,
			generated_text TEXT,
			user_feedback TEXT,
			final_text TEXT,
			status TEXT NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %v", err)
		}
	}
	return nil
}

var (
	_ ports.AttemptLog  = (*PostgresStore)(nil)
	_ ports.ArchiveSink = (*PostgresStore)(nil)
)

func (s *PostgresStore) Append(rec domain.AttemptRecord) error {
	_, err := s.Pool.Exec(context.Background(),
		`INSERT INTO attempts (ts, source_text, generated_text, user_feedback, final_text, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Timestamp, rec.SourceText, rec.GeneratedText, rec.UserFeedback, rec.FinalText, rec.Status)
	return err
}

func (s *PostgresStore) AcceptedTexts(limit int) ([]string, error) {
	rows, err := s.Pool.Query(context.Background(),
		`SELECT final_text FROM attempts WHERE status = $1 AND final_text <> '' ORDER BY ts LIMIT $2`,
		domain.StatusAccepted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

func (s *PostgresStore) WritePost(post domain.Post) error {
	_, err := s.Pool.Exec(context.Background(),
		`INSERT INTO posts (id, created_at, text, kind, likes, replies, retweets, quotes, conversation_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO NOTHING`,
		post.ID, post.CreatedAt, post.Text, post.Kind,
		post.Metrics.Likes, post.Metrics.Replies, post.Metrics.Reshares, post.Metrics.Quotes,
		post.ConversationID)
	return err
}

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}

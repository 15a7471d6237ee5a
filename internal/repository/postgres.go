package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		mobile     TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL CONSTRAINT users_name_key UNIQUE,
		push_token TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES users(id),
		target_id   TEXT NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (follower_id, target_id),
		CHECK (follower_id <> target_id)
	)`,
	`CREATE INDEX IF NOT EXISTS follows_target_idx ON follows (target_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq         BIGSERIAL PRIMARY KEY,
		id          TEXT NOT NULL UNIQUE,
		sender_id   TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		text        TEXT NOT NULL DEFAULT '',
		image       TEXT,
		read        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id, created_at, seq)`,
	`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (receiver_id) WHERE NOT read`,
	`CREATE TABLE IF NOT EXISTS posts (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		username   TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		image      TEXT,
		language   TEXT NOT NULL DEFAULT 'en',
		category   TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_idx ON posts (created_at DESC)`,
}

// PostgresStore is the Store backed by PostgreSQL
type PostgresStore struct {
	db       *pgxpool.Pool
	users    *UserRepository
	follows  *FollowRepository
	messages *MessageRepository
	posts    *PostRepository
}

// NewPostgresStore connects to PostgreSQL and applies the schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{
		db:       db,
		users:    NewUserRepository(db),
		follows:  NewFollowRepository(db),
		messages: NewMessageRepository(db),
		posts:    NewPostRepository(db),
	}, nil
}

// Migrate creates the tables and indexes if they do not exist
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Users() UserStore       { return s.users }
func (s *PostgresStore) Follows() FollowStore   { return s.follows }
func (s *PostgresStore) Messages() MessageStore { return s.messages }
func (s *PostgresStore) Posts() PostStore       { return s.posts }

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

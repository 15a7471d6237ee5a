package repository

import (
	"context"
	"fmt"
	"time"

	"kissan-connect-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FollowRepository handles database operations for follow edges
type FollowRepository struct {
	db *pgxpool.Pool
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *pgxpool.Pool) *FollowRepository {
	return &FollowRepository{db: db}
}

// ToggleFollow flips the follower -> target edge inside one transaction.
// Both user rows are locked in id order so concurrent toggles touching the
// same users serialize without deadlocking.
func (r *FollowRepository) ToggleFollow(ctx context.Context, followerID, targetID string) (*models.FollowResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := `SELECT id FROM users WHERE id = $1 OR id = $2 ORDER BY id FOR UPDATE`
	rows, err := tx.Query(ctx, lockQuery, followerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}
	locked := 0
	for rows.Next() {
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}
	if locked != 2 {
		return nil, models.ErrUserNotFound
	}

	result := &models.FollowResult{}
	deleted, err := tx.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND target_id = $2`, followerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete follow: %w", err)
	}
	if deleted.RowsAffected() > 0 {
		result.Action = models.ActionUnfollowed
	} else {
		insert := `INSERT INTO follows (follower_id, target_id, created_at) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, insert, followerID, targetID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to create follow: %w", err)
		}
		result.Action = models.ActionFollowed
	}

	countQuery := `
		SELECT
			(SELECT COUNT(*) FROM follows WHERE target_id = $1),
			(SELECT COUNT(*) FROM follows WHERE follower_id = $2)
	`
	if err := tx.QueryRow(ctx, countQuery, targetID, followerID).Scan(&result.FollowerCount, &result.FollowingCount); err != nil {
		return nil, fmt.Errorf("failed to count follows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit follow toggle: %w", err)
	}
	return result, nil
}

// Edges returns the follower and following IDs of a user
func (r *FollowRepository) Edges(ctx context.Context, userID string) (*models.Edges, error) {
	followers, err := r.collect(ctx, `SELECT follower_id FROM follows WHERE target_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	following, err := r.collect(ctx, `SELECT target_id FROM follows WHERE follower_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return &models.Edges{Followers: followers, Following: following}, nil
}

// IsFollowing checks whether the follower -> target edge exists
func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND target_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, followerID, targetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return exists, nil
}

func (r *FollowRepository) collect(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

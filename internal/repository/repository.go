package repository

import (
	"context"

	"kissan-connect-backend/internal/models"
)

// UserStore persists user records. Lookups of unknown users return an
// error wrapping models.ErrNotFound.
type UserStore interface {
	// UpsertByMobile creates the user for mobile or overwrites its name.
	UpsertByMobile(ctx context.Context, mobile, name string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// FollowStore persists follow edges. Followers and following sets of a user
// are both derived from the same edge relation.
type FollowStore interface {
	// ToggleFollow flips the follower -> target edge atomically and returns
	// the transition applied together with the resulting counts.
	ToggleFollow(ctx context.Context, followerID, targetID string) (*models.FollowResult, error)
	Edges(ctx context.Context, userID string) (*models.Edges, error)
	IsFollowing(ctx context.Context, followerID, targetID string) (bool, error)
}

// MessageStore persists direct messages
type MessageStore interface {
	// Create stores msg, assigning its sequence number.
	Create(ctx context.Context, msg *models.Message) error
	// Conversation returns every message exchanged between a and b in
	// either direction, ordered by creation time then sequence.
	Conversation(ctx context.Context, a, b string) ([]*models.Message, error)
	// MarkRead flags as read the unread messages sent by senderID to
	// receiverID and returns how many changed.
	MarkRead(ctx context.Context, senderID, receiverID string) (int, error)
	UnreadCount(ctx context.Context, receiverID string) (int, error)
}

// PostStore persists posts
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	// List returns posts newest first.
	List(ctx context.Context) ([]*models.Post, error)
}

// Store bundles every record kind behind one backend
type Store interface {
	Users() UserStore
	Follows() FollowStore
	Messages() MessageStore
	Posts() PostStore
	Close() error
}

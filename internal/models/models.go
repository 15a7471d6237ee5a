package models

import "time"

// User represents a user in the system
type User struct {
	ID        string    `json:"id"`
	Mobile    string    `json:"mobile"`
	Name      string    `json:"name"`
	PushToken *string   `json:"pushToken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the public projection of a user with its follow edges
// expressed as user names.
type Profile struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Followers      []string `json:"followers"`
	Following      []string `json:"following"`
	FollowerCount  int      `json:"followerCount"`
	FollowingCount int      `json:"followingCount"`
}

// Edges holds the follow relations of a single user as user IDs
type Edges struct {
	Followers []string
	Following []string
}

// FollowAction is the transition applied by a follow toggle
type FollowAction string

const (
	ActionFollowed   FollowAction = "followed"
	ActionUnfollowed FollowAction = "unfollowed"
)

// FollowResult is returned by a follow toggle
type FollowResult struct {
	Action         FollowAction `json:"action"`
	FollowerCount  int          `json:"followerCount"`
	FollowingCount int          `json:"followingCount"`
}

// RelationStatus describes the edges between two users in both directions
type RelationStatus struct {
	IsFollowing  bool `json:"isFollowing"`
	IsFollowedBy bool `json:"isFollowedBy"`
}

// Message represents a direct message between two users.
// Sender and Receiver carry user names and are filled by the service
// layer; storage only keeps the IDs.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Sender     string    `json:"sender,omitempty"`
	Receiver   string    `json:"receiver,omitempty"`
	Text       string    `json:"text"`
	Image      *string   `json:"image"`
	Read       bool      `json:"read"`
	Seq        int64     `json:"seq"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Before reports whether m sorts before o inside a conversation
func (m *Message) Before(o *Message) bool {
	if m.CreatedAt.Equal(o.CreatedAt) {
		return m.Seq < o.Seq
	}
	return m.CreatedAt.Before(o.CreatedAt)
}

// Post represents a content item published by a user
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Image     *string   `json:"image"`
	Language  string    `json:"language"`
	Category  *string   `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment is an uploaded file waiting to be written to the blob store
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

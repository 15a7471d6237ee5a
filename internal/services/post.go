package services

import (
	"context"
	"fmt"
	"strings"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultPostLanguage = "en"

// CreatePostRequest carries the fields of a new post
type CreatePostRequest struct {
	Username string
	UserID   string
	Content  string
	Language string
	Category string
	Image    *models.Attachment
}

// PostService handles the public feed
type PostService struct {
	users repository.UserStore
	posts repository.PostStore
	blobs BlobStore
	clock monotonicClock
}

// NewPostService creates a new post service
func NewPostService(users repository.UserStore, posts repository.PostStore, blobs BlobStore) *PostService {
	return &PostService{
		users: users,
		posts: posts,
		blobs: blobs,
	}
}

// Create publishes a post. The author is looked up by name; a supplied user
// ID must belong to that author.
func (s *PostService) Create(ctx context.Context, req CreatePostRequest) (*models.Post, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("content is required: %w", models.ErrInvalidOperation)
	}
	if req.Username == "" {
		return nil, fmt.Errorf("username is required: %w", models.ErrInvalidOperation)
	}

	author, err := s.users.GetByName(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" && req.UserID != author.ID {
		return nil, fmt.Errorf("user does not match username: %w", models.ErrInvalidOperation)
	}

	post := &models.Post{
		ID:        uuid.New().String(),
		UserID:    author.ID,
		Username:  author.Name,
		Content:   content,
		Language:  strings.TrimSpace(req.Language),
		CreatedAt: s.clock.Now(),
	}
	if post.Language == "" {
		post.Language = defaultPostLanguage
	}
	if c := strings.TrimSpace(req.Category); c != "" {
		post.Category = &c
	}

	if req.Image != nil {
		if s.blobs == nil {
			return nil, fmt.Errorf("attachments are not supported: %w", models.ErrInvalidOperation)
		}
		url, err := s.blobs.Save(ctx, req.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		post.Image = &url
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	log.Info().Str("post_id", post.ID).Str("user_id", author.ID).Msg("Post created")
	return post, nil
}

// List returns every post, newest first
func (s *PostService) List(ctx context.Context) ([]*models.Post, error) {
	return s.posts.List(ctx)
}

package services

import (
	"context"
	"fmt"
	"strings"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// DirectoryService resolves identities and builds public user projections
type DirectoryService struct {
	users   repository.UserStore
	follows repository.FollowStore
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(users repository.UserStore, follows repository.FollowStore) *DirectoryService {
	return &DirectoryService{
		users:   users,
		follows: follows,
	}
}

// Resolve returns the user owning mobile, creating it on first sight. The
// display name is overwritten on every call.
func (s *DirectoryService) Resolve(ctx context.Context, mobile, name string) (*models.User, error) {
	mobile = strings.TrimSpace(mobile)
	name = strings.TrimSpace(name)
	if mobile == "" || name == "" {
		return nil, fmt.Errorf("mobile and name are required: %w", models.ErrInvalidOperation)
	}

	user, err := s.users.UpsertByMobile(ctx, mobile, name)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("name", user.Name).Msg("Identity resolved")
	return user, nil
}

// GetByID returns the stored user record
func (s *DirectoryService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByName returns the stored user record for a display name
func (s *DirectoryService) GetByName(ctx context.Context, name string) (*models.User, error) {
	return s.users.GetByName(ctx, name)
}

// LookupByName returns the public profile for a display name
func (s *DirectoryService) LookupByName(ctx context.Context, name string) (*models.Profile, error) {
	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, user, map[string]string{user.ID: user.Name})
}

// ListAll returns the public profile of every user
func (s *DirectoryService) ListAll(ctx context.Context) ([]*models.Profile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	profiles := make([]*models.Profile, 0, len(users))
	for _, u := range users {
		p, err := s.profile(ctx, u, names)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// SetPushToken stores (or clears, when empty) the APNs device token of a user
func (s *DirectoryService) SetPushToken(ctx context.Context, userID, token string) error {
	var ptr *string
	if token = strings.TrimSpace(token); token != "" {
		ptr = &token
	}
	return s.users.UpdatePushToken(ctx, userID, ptr)
}

func (s *DirectoryService) profile(ctx context.Context, user *models.User, names map[string]string) (*models.Profile, error) {
	edges, err := s.follows.Edges(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	followers, err := s.namesOf(ctx, edges.Followers, names)
	if err != nil {
		return nil, err
	}
	following, err := s.namesOf(ctx, edges.Following, names)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		ID:             user.ID,
		Name:           user.Name,
		Followers:      followers,
		Following:      following,
		FollowerCount:  len(followers),
		FollowingCount: len(following),
	}, nil
}

// namesOf maps user IDs to names, filling the cache as it goes
func (s *DirectoryService) namesOf(ctx context.Context, ids []string, cache map[string]string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := cache[id]
		if !ok {
			u, err := s.users.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve user %s: %w", id, err)
			}
			name = u.Name
			cache[id] = name
		}
		out = append(out, name)
	}
	return out, nil
}

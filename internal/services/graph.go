package services

import (
	"context"
	"fmt"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/monitoring"
	"kissan-connect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// GraphService owns the follow graph. A pair moves between NotFollowing and
// Following only through Follow, one transition at a time per directed pair.
type GraphService struct {
	users    repository.UserStore
	follows  repository.FollowStore
	notifier FollowNotifier
	locks    *keyedMutex
}

// NewGraphService creates a new graph service
func NewGraphService(users repository.UserStore, follows repository.FollowStore, notifier FollowNotifier) *GraphService {
	return &GraphService{
		users:    users,
		follows:  follows,
		notifier: notifier,
		locks:    newKeyedMutex(),
	}
}

// Follow toggles the follower -> target edge
func (s *GraphService) Follow(ctx context.Context, followerID, targetID string) (*models.FollowResult, error) {
	if followerID == targetID {
		return nil, fmt.Errorf("cannot follow yourself: %w", models.ErrInvalidOperation)
	}

	follower, err := s.users.GetByID(ctx, followerID)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	return s.toggle(ctx, follower, target)
}

// FollowByName toggles the edge between two users given their display names
func (s *GraphService) FollowByName(ctx context.Context, followerName, targetName string) (*models.FollowResult, error) {
	if followerName == "" || targetName == "" {
		return nil, fmt.Errorf("followerUsername and targetUsername are required: %w", models.ErrInvalidOperation)
	}
	if followerName == targetName {
		return nil, fmt.Errorf("cannot follow yourself: %w", models.ErrInvalidOperation)
	}

	follower, err := s.users.GetByName(ctx, followerName)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetByName(ctx, targetName)
	if err != nil {
		return nil, err
	}

	return s.toggle(ctx, follower, target)
}

// Relation reports the edges between two users in both directions
func (s *GraphService) Relation(ctx context.Context, actorName, targetName string) (*models.RelationStatus, error) {
	actor, err := s.users.GetByName(ctx, actorName)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetByName(ctx, targetName)
	if err != nil {
		return nil, err
	}

	status := &models.RelationStatus{}
	if status.IsFollowing, err = s.follows.IsFollowing(ctx, actor.ID, target.ID); err != nil {
		return nil, err
	}
	if status.IsFollowedBy, err = s.follows.IsFollowing(ctx, target.ID, actor.ID); err != nil {
		return nil, err
	}
	return status, nil
}

func (s *GraphService) toggle(ctx context.Context, follower, target *models.User) (*models.FollowResult, error) {
	unlock := s.locks.Lock(follower.ID + ">" + target.ID)
	result, err := s.follows.ToggleFollow(ctx, follower.ID, target.ID)
	unlock()
	if err != nil {
		return nil, err
	}

	monitoring.FollowToggles.WithLabelValues(string(result.Action)).Inc()
	log.Info().
		Str("follower_id", follower.ID).
		Str("target_id", target.ID).
		Str("action", string(result.Action)).
		Msg("Follow toggled")

	if result.Action == models.ActionFollowed && s.notifier != nil {
		s.notifier.NewFollower(ctx, follower, target)
	}
	return result, nil
}

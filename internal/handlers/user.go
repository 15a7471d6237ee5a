package handlers

import (
	"context"
	"fmt"
	"net/http"

	"kissan-connect-backend/internal/middleware"
	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// UserHandler handles user directory and follow graph requests
type UserHandler struct {
	directory    *services.DirectoryService
	graph        *services.GraphService
	enforceActor bool
}

// NewUserHandler creates a new user handler. With enforceActor set, acting
// on behalf of another user is rejected.
func NewUserHandler(directory *services.DirectoryService, graph *services.GraphService, enforceActor bool) *UserHandler {
	return &UserHandler{
		directory:    directory,
		graph:        graph,
		enforceActor: enforceActor,
	}
}

// FollowRequest represents the request body for a follow toggle
type FollowRequest struct {
	FollowerUsername string `json:"followerUsername"`
	TargetUsername   string `json:"targetUsername"`
}

// PushTokenRequest represents the request body for registering a device
type PushTokenRequest struct {
	Token string `json:"token"`
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.ListAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser handles GET /api/users/{name}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.directory.LookupByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": profile})
}

// Follow handles POST /api/users/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FollowRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := checkActor(ctx, h.directory, h.enforceActor, req.FollowerUsername); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	result, err := h.graph.FollowByName(ctx, req.FollowerUsername, req.TargetUsername)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action":         result.Action,
		"followerCount":  result.FollowerCount,
		"followingCount": result.FollowingCount,
	})
}

// Relation handles GET /api/users/{name}/relation/{other}
func (h *UserHandler) Relation(w http.ResponseWriter, r *http.Request) {
	status, err := h.graph.Relation(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "other"))
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"isFollowing":  status.IsFollowing,
		"isFollowedBy": status.IsFollowedBy,
	})
}

// RegisterPushToken handles POST /api/users/push-token
func (h *UserHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.directory.SetPushToken(ctx, middleware.GetUserID(ctx), req.Token); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, nil)
}

// checkActor makes sure the session user is the one named as actor
func checkActor(ctx context.Context, directory *services.DirectoryService, enforce bool, actor string) error {
	if !enforce {
		return nil
	}
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return fmt.Errorf("session required: %w", models.ErrUnauthorized)
	}
	user, err := directory.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("session user: %w", models.ErrUnauthorized)
	}
	if user.Name != actor {
		return fmt.Errorf("cannot act as %s: %w", actor, models.ErrUnauthorized)
	}
	return nil
}

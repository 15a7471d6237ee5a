package handlers

import (
	"net/http"

	"kissan-connect-backend/internal/middleware"
	"kissan-connect-backend/internal/services"

	"github.com/rs/zerolog/hlog"
)

// AuthHandler handles the OTP login flow and session cookie
type AuthHandler struct {
	authService  *services.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
	}
}

// RequestOTPRequest represents the request body for requesting a code
type RequestOTPRequest struct {
	Mobile string `json:"mobile"`
}

// VerifyOTPRequest represents the request body for verifying a code
type VerifyOTPRequest struct {
	Mobile string `json:"mobile"`
	Name   string `json:"name"`
	OTP    string `json:"otp"`
}

// RequestOTP handles POST /api/auth/request-otp
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req RequestOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.authService.RequestOTP(r.Context(), req.Mobile); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"message": "OTP sent"})
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.authService.VerifyOTP(r.Context(), req.Mobile, req.Name, req.OTP)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.authService.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	hlog.FromRequest(r).Info().Str("user_id", user.ID).Msg("User logged in")
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, nil)
}

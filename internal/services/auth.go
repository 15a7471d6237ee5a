package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/monitoring"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// SessionClaims is the payload of a session token
type SessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// AuthOptions configures the mock OTP flow and session tokens
type AuthOptions struct {
	JWTSecret string
	TTL       time.Duration
	OTPCode   string
	OTPRate   float64
	OTPBurst  int
}

// AuthService handles the one-time-code login and session tokens. No SMS is
// sent: every mobile accepts the configured code.
type AuthService struct {
	directory *DirectoryService
	opts      AuthOptions
	limiter   *limiterPool
}

// NewAuthService creates a new auth service
func NewAuthService(directory *DirectoryService, opts AuthOptions) *AuthService {
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		directory: directory,
		opts:      opts,
		limiter:   newLimiterPool(opts.OTPRate, opts.OTPBurst),
	}
}

// TTL returns how long issued sessions stay valid
func (s *AuthService) TTL() time.Duration {
	return s.opts.TTL
}

// RequestOTP "sends" a one-time code to mobile
func (s *AuthService) RequestOTP(ctx context.Context, mobile string) error {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		monitoring.OTPRequests.WithLabelValues("invalid").Inc()
		return fmt.Errorf("mobile is required: %w", models.ErrInvalidOperation)
	}
	if !s.limiter.Allow(mobile) {
		monitoring.OTPRequests.WithLabelValues("rate_limited").Inc()
		return fmt.Errorf("too many code requests for %s: %w", mobile, models.ErrRateLimited)
	}

	monitoring.OTPRequests.WithLabelValues("sent").Inc()
	log.Info().Str("mobile", mobile).Msgf("[MOCK OTP] %s sent to %s", s.opts.OTPCode, mobile)
	return nil
}

// VerifyOTP checks the code, resolves the identity and issues a session token
func (s *AuthService) VerifyOTP(ctx context.Context, mobile, name, code string) (*models.User, string, error) {
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(s.opts.OTPCode)) != 1 {
		return nil, "", fmt.Errorf("wrong OTP: %w", models.ErrInvalidOperation)
	}

	user, err := s.directory.Resolve(ctx, mobile, name)
	if err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// GenerateJWT generates a JWT token for a user
func (s *AuthService) GenerateJWT(userID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *AuthService) ValidateJWT(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %v: %w", err, models.ErrUnauthorized)
	}

	if !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}

	return claims.UserID, nil
}

// CurrentUser returns the user a session belongs to
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.directory.GetByID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("session user is gone: %w", models.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

package handlers

import (
	"net/http"
	"time"

	"kissan-connect-backend/internal/middleware"
	"kissan-connect-backend/internal/monitoring"
	"kissan-connect-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// RouterConfig carries everything the HTTP surface is built from
type RouterConfig struct {
	Auth           *AuthHandler
	Users          *UserHandler
	Messages       *MessageHandler
	Posts          *PostHandler
	Assistant      *AssistantHandler
	WebSocket      *WebSocketHandler
	AuthService    *services.AuthService
	AllowedOrigins []string
	// UploadsDir is served at /uploads when set
	UploadsDir string
}

// NewRouter wires middleware and routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(monitoring.InstrumentHandler)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/request-otp", cfg.Auth.RequestOTP)
			r.Post("/verify-otp", cfg.Auth.VerifyOTP)
			r.Post("/logout", cfg.Auth.Logout)
			r.With(middleware.AuthMiddleware(cfg.AuthService)).Get("/me", cfg.Auth.Me)
		})

		r.Get("/posts", cfg.Posts.ListPosts)
		r.Post("/posts/create", cfg.Posts.CreatePost)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", cfg.Users.ListUsers)
			r.With(middleware.OptionalAuth(cfg.AuthService)).Post("/follow", cfg.Users.Follow)
			r.With(middleware.AuthMiddleware(cfg.AuthService)).Post("/push-token", cfg.Users.RegisterPushToken)
			r.Get("/{name}", cfg.Users.GetUser)
			r.Get("/{name}/relation/{other}", cfg.Users.Relation)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/unread/{username}", cfg.Messages.UnreadCount)
			r.With(middleware.OptionalAuth(cfg.AuthService)).Post("/send", cfg.Messages.SendMessage)
			r.Get("/{sender}/{receiver}", cfg.Messages.GetConversation)
		})

		r.Post("/ai/translate", cfg.Assistant.Translate)
		r.Post("/ai/chat", cfg.Assistant.Chat)
	})

	r.Get("/ws", cfg.WebSocket.HandleWebSocket)

	return r
}

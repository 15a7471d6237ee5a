package cmd

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kissan-connect-backend/internal/config"
	"kissan-connect-backend/internal/eventbus"
	"kissan-connect-backend/internal/handlers"
	"kissan-connect-backend/internal/push"
	"kissan-connect-backend/internal/repository"
	"kissan-connect-backend/internal/services"
	"kissan-connect-backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Open store
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to open store")
	}
	defer store.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("Store ready")

	// Blob store
	blobs, uploadsDir, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open blob store")
	}

	// Realtime and notifications
	wsHub := services.NewWSHub(cfg.Realtime.SendBuffer)
	notifier := services.NewNotifier(wsHub, store.Users(), store.Messages())

	if cfg.Push.Enabled {
		sender, err := push.NewAPNsSender(push.Options{
			KeyPath:    cfg.Push.KeyPath,
			KeyID:      cfg.Push.KeyID,
			TeamID:     cfg.Push.TeamID,
			Topic:      cfg.Push.Topic,
			Production: cfg.Push.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		notifier.WithPush(sender)
		log.Info().Bool("production", cfg.Push.Production).Msg("APNs fallback enabled")
	}

	if cfg.NATS.URL != "" {
		bus, err := eventbus.NewNatsPublisher(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer bus.Close()
		notifier.WithEvents(bus)
	}

	// Initialize services
	directory := services.NewDirectoryService(store.Users(), store.Follows())
	graph := services.NewGraphService(store.Users(), store.Follows(), notifier)
	conversations := services.NewConversationService(store.Users(), store.Messages(), blobs, notifier)
	posts := services.NewPostService(store.Users(), store.Posts(), blobs)
	assistant, err := services.NewAssistantService(ctx, services.AssistantOptions{
		APIKey:     cfg.Assistant.APIKey,
		BaseURL:    cfg.Assistant.BaseURL,
		APIVersion: cfg.Assistant.APIVersion,
		Model:      cfg.Assistant.Model,
		Timeout:    cfg.Assistant.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create assistant client")
	}
	authService := services.NewAuthService(directory, services.AuthOptions{
		JWTSecret: cfg.JWT.Secret,
		TTL:       time.Duration(cfg.JWT.TTLDays) * 24 * time.Hour,
		OTPCode:   cfg.Auth.OTPCode,
		OTPRate:   cfg.Auth.OTPRate,
		OTPBurst:  cfg.Auth.OTPBurst,
	})

	// Initialize handlers
	maxUpload := cfg.Server.MaxUploadMB << 20
	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.CookieSecure),
		Users:          handlers.NewUserHandler(directory, graph, cfg.Auth.EnforceActor),
		Messages:       handlers.NewMessageHandler(conversations, directory, maxUpload, cfg.Auth.EnforceActor),
		Posts:          handlers.NewPostHandler(posts, maxUpload),
		Assistant:      handlers.NewAssistantHandler(assistant),
		WebSocket:      handlers.NewWebSocketHandler(wsHub, authService, directory, cfg.Server.AllowedOrigins, cfg.Realtime.AllowAnonymousJoin),
		AuthService:    authService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadsDir:     uploadsDir,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Assistant.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	wsHub.Close()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Pending push fallbacks still read the store
	notifier.Wait()

	log.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.Driver == "postgres" {
		return repository.NewPostgresStore(ctx, cfg.Database.DSN())
	}
	return repository.OpenPebbleStore(cfg.Database.PebblePath)
}

// openBlobStore returns the blob store and, for the local driver, the
// directory to serve at /uploads
func openBlobStore(ctx context.Context, cfg *config.Config) (services.BlobStore, string, error) {
	if cfg.Storage.Driver == "s3" {
		aws := cfg.Storage.AWS
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:        aws.Region,
			Bucket:        aws.S3Bucket,
			AccessKey:     aws.AccessKey,
			SecretKey:     aws.SecretKey,
			Endpoint:      aws.Endpoint,
			PublicBaseURL: aws.PublicBaseURL,
		})
		return s3Store, "", err
	}

	local, err := storage.NewLocalStore(cfg.Storage.LocalDir)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if strings.ToLower(format) != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Package server wires the application together: it builds the router,
// connects handlers to services to the repository, and owns startup and
// graceful shutdown. main.go only loads config and calls New + Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/subdivision/pot-server/internal/auth"
	"github.com/subdivision/pot-server/internal/chat"
	"github.com/subdivision/pot-server/internal/handler"
	"github.com/subdivision/pot-server/internal/middleware"
	"github.com/subdivision/pot-server/internal/objectstore"
	sqliteRepo "github.com/subdivision/pot-server/internal/repository/sqlite"
	"github.com/subdivision/pot-server/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// GitHub OAuth. Login with GitHub is disabled when ClientID is empty.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// Image storage. An empty bucket name selects the in-memory store,
	// which is only suitable for local development.
	GCSBucket  string
	GCSKeyPath string
}

// Server owns the router and the resources that must be released on
// shutdown: the database and, when GCS is configured, the storage client.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	gcs    *objectstore.GCS
}

// New assembles the full dependency chain: database, token and password
// services, object store, domain services, chat hub, and handlers.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Info("GitHub OAuth disabled: no client ID configured")
	}

	var store objectstore.Store
	if s.config.GCSBucket != "" {
		gcs, err := objectstore.NewGCS(context.Background(), s.config.GCSBucket, s.config.GCSKeyPath)
		if err != nil {
			return fmt.Errorf("creating GCS store: %w", err)
		}
		s.gcs = gcs
		store = gcs
	} else {
		s.logger.Warn("No GCS bucket configured, storing images in memory")
		store = objectstore.NewMemory()
	}

	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	potService := service.NewPotService(s.db, s.db, store, s.logger)
	chatService := service.NewChatService(s.db, s.db, s.logger)
	hub := chat.NewHub(s.logger)

	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	potHandler := handler.NewPotHandler(potService, authService, hub, s.logger)
	chatHandler := handler.NewChatHandler(chatService, authService, hub, s.logger)
	imageHandler := handler.NewImageHandler(store, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/check-nickname", authHandler.HandleCheckNickname)
			r.Get("/check-email", authHandler.HandleCheckEmail)
		})
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.Route("/pots", func(r chi.Router) {
			r.Get("/", potHandler.HandleList)
			r.Get("/search", potHandler.HandleSearch)
			r.With(optionalAuth).Get("/{id}", potHandler.HandleGetByID)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", potHandler.HandleCreate)
				r.Put("/{id}", potHandler.HandleUpdate)
				r.Delete("/{id}", potHandler.HandleDelete)
				r.Post("/{id}/join", potHandler.HandleJoin)
				r.Post("/{id}/leave", potHandler.HandleLeave)
				r.Get("/{id}/chat/history", chatHandler.HandleHistory)
			})
		})

		r.With(requireAuth).Get("/mypage/my-pots", potHandler.HandleMyPots)
		r.With(requireAuth).Post("/images/upload", imageHandler.HandleUpload)
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	s.router.With(requireAuth).Get("/ws/pots/{id}", chatHandler.HandleWebSocket)

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests and closes the database and storage client.
func (s *Server) Start() error {
	defer s.db.Close()
	if s.gcs != nil {
		defer s.gcs.Close()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

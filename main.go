package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tradevault/tradevault-server/src/config"
	"github.com/tradevault/tradevault-server/src/database"
	"github.com/tradevault/tradevault-server/src/handlers"
	"github.com/tradevault/tradevault-server/src/logging"
	"github.com/tradevault/tradevault-server/src/middleware"
	"github.com/tradevault/tradevault-server/src/repositories"
	"github.com/tradevault/tradevault-server/src/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("starting server")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Msg("database connected")

	// Initialize JWT secret in middleware
	if err := middleware.SetJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT secret")
	}

	// Credential encryption is lazy: a missing key is a warning at startup
	// and a hard failure on first credential operation
	encryptor := services.NewEncryptorProvider(func() string { return cfg.CredentialEncryptionKey })
	if encryptor.Configured() {
		if _, err := encryptor.Get(); err != nil {
			log.Fatal().Err(err).Msg("CREDENTIAL_ENCRYPTION_KEY is set but unusable")
		}
		log.Info().Msg("credential encryption enabled (AES-256-GCM)")
	} else {
		log.Warn().Msg("CREDENTIAL_ENCRYPTION_KEY not set - credential operations will fail until configured")
	}

	// Load broker registry (built-in defaults plus optional YAML override)
	brokers, err := config.LoadBrokerRegistry(cfg.BrokerConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load broker registry")
	}
	log.Info().Int("brokers", len(brokers)).Msg("broker registry loaded")

	// Initialize repositories and services
	credentialRepo := repositories.NewPgCredentialRepository(db.GetPool())
	userRepo := repositories.NewPgUserRepository(db.GetPool())

	brokerClient := services.NewAlpacaClient(cfg.BrokerAPITimeout)
	credentialService := services.NewCredentialService(credentialRepo, encryptor, brokers, brokerClient)
	authService := services.NewAuthService(userRepo)

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	// CORS for the web frontend
	allowedOrigins := splitOrigins(cfg.AllowedOrigins)
	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			// Allow localhost for development
			return origin == "http://localhost:5173" || origin == "http://localhost:8080"
		},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Setup routes
	setupRoutes(router, db, encryptor, credentialService, authService)

	// Create HTTP server with timeouts (G112: protect from Slowloris attack)
	srv := &http.Server{
		Addr:              ":" + formatPort(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

func setupRoutes(router *gin.Engine, db *database.Database, encryptor *services.EncryptorProvider, credentialService *services.CredentialService, authService *services.AuthService) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, encryptor)
	authHandler := handlers.NewAuthHandler(authService)
	credentialHandler := handlers.NewCredentialHandler(credentialService)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Auth endpoints with rate limiting (3 requests per minute per IP)
	authGroup := router.Group("/api/auth")
	authGroup.Use(middleware.AuthRateLimitMiddleware())
	{
		authGroup.POST("/register", authHandler.HandleRegister)
		authGroup.POST("/login", authHandler.HandleLogin)
	}

	// Credential lifecycle endpoints (require user authentication)
	api := router.Group("/api")
	api.Use(middleware.UserAuthMiddleware())
	{
		api.POST("/credentials", credentialHandler.HandleStore)
		api.GET("/credentials", credentialHandler.HandleList)
		api.GET("/credentials/:id", credentialHandler.HandleGet)
		api.PATCH("/credentials/:id", credentialHandler.HandleUpdate)
		api.DELETE("/credentials/:id", credentialHandler.HandleDelete)
		api.POST("/credentials/:id/validate", credentialHandler.HandleValidate)
		api.GET("/credentials/:id/account", credentialHandler.HandleAccount)
	}
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func formatPort(port int) string {
	return fmt.Sprintf("%d", port)
}

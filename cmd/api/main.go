package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nailstore/nailstore-api/internal/database"
	"github.com/nailstore/nailstore-api/internal/http/handlers"
	hmw "github.com/nailstore/nailstore-api/internal/http/middleware"
	"github.com/nailstore/nailstore-api/internal/platform/auth"
	"github.com/nailstore/nailstore-api/internal/platform/mailer"
	"github.com/nailstore/nailstore-api/internal/repo/postgres"
	"github.com/nailstore/nailstore-api/internal/service"
	"github.com/nailstore/nailstore-api/pkg/config"
	"github.com/nailstore/nailstore-api/pkg/events"
	"github.com/nailstore/nailstore-api/pkg/logger"
	mw "github.com/nailstore/nailstore-api/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Event bus is best-effort: without NATS the API still serves requests.
	var bus events.Publisher
	natsBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Warn("NATS unavailable, events disabled", "error", err)
		bus = events.NoopBus{}
	} else {
		bus = natsBus
		defer natsBus.Close()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Repositories
	accountRepo := postgres.NewAccountRepo(pool)
	catalogRepo := postgres.NewCatalogRepo(pool)
	geoRepo := postgres.NewGeoRepo(pool)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenAudience, cfg.Auth.TokenTTL)
	lockout := auth.NewLockoutPolicy(cfg.Auth.MaxFailedAttempts, cfg.Auth.LockoutWindow)

	// Services
	authSvc := service.NewAuthService(accountRepo, selectMailer(cfg), bus, issuer, lockout, cfg)
	catalogSvc := service.NewCatalogService(catalogRepo, bus)
	geoSvc := service.NewGeoService(geoRepo)

	limiter := hmw.NewRateLimiter(redisClient, hmw.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})

	// Handlers
	authHandler := handlers.NewAuthHandler(authSvc, issuer, limiter)
	catalogHandler := handlers.NewCatalogHandler(catalogSvc, issuer)
	geoHandler := handlers.NewGeoHandler(geoSvc, issuer)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/account", authHandler.Routes())
		r.Mount("/services", catalogHandler.Routes())
		r.Mount("/categories", catalogHandler.CategoriesRoutes())
		r.Mount("/geo", geoHandler.Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting nailstore api", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// selectMailer picks the outbound email transport: dev logging, MailerSend
// when an API key is configured, plain SMTP otherwise.
func selectMailer(cfg *config.Config) mailer.Sender {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevSender()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSendSender(cfg.Email.MailerSendKey, cfg.Email.OrgName, cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom, cfg.Email.OrgName, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}
}

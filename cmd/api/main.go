package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/ringring/ringring-server/internal/http/handlers"
	ratelimit "github.com/ringring/ringring-server/internal/http/middleware"
	"github.com/ringring/ringring-server/internal/mailer"
	"github.com/ringring/ringring-server/internal/repository"
	"github.com/ringring/ringring-server/internal/service"
	"github.com/ringring/ringring-server/pkg/config"
	"github.com/ringring/ringring-server/pkg/database"
	"github.com/ringring/ringring-server/pkg/events"
	"github.com/ringring/ringring-server/pkg/logger"
	mw "github.com/ringring/ringring-server/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus; without a broker the service still runs, the
	// softswitch listeners just won't get change notifications.
	var bus events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsBus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsBus.Close()
		bus = natsBus
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	inviteRepo := repository.NewInviteRepository(pool)
	provisionRepo := repository.NewProvisionRepository(pool)

	// Pick notification transport
	notifier := buildNotifier(cfg)

	// Initialize service and handlers
	activationService := service.NewActivationService(userRepo, inviteRepo, provisionRepo, notifier, bus, cfg)
	h := handlers.New(activationService, cfg)

	// Abuse protection on the code-issuing endpoints
	var limiter *ratelimit.RateLimiter
	if cfg.Redis.Addr != "" {
		limiter, err = ratelimit.NewRateLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer limiter.Close()
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("provisioning"))
	r.Use(mw.Logging)
	r.Use(recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(limiter.Limit(5, time.Minute)).Post("/", h.Register)
			r.Get("/", h.GetUsers)
			r.Get("/{email}", h.GetUser)
			r.Put("/{email}/activate", h.Activate)
			r.With(limiter.Limit(5, time.Minute)).Post("/{email}/activation-code", h.RenewActivationCode)
		})

		r.With(limiter.Limit(10, time.Minute)).Post("/invites", h.Invite)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/reset/users", h.ResetUsers)
			r.Post("/reset/invites", h.ResetInvites)
		})
	})

	// Start server
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

		logger.Info("Shutting down provisioning service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Provisioning service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting provisioning service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Provisioning service error", "error", err)
		os.Exit(1)
	}
}

func buildNotifier(cfg *config.Config) mailer.Notifier {
	switch {
	case cfg.Mail.DevMode:
		return mailer.NewDevNotifier()
	case cfg.Mail.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.Mail.MailerSendKey, cfg.Mail.MailerSendFrom)
	default:
		return mailer.NewSMTPNotifier(
			cfg.Mail.SMTPHost,
			cfg.Mail.SMTPPort,
			cfg.Mail.SMTPFrom,
			cfg.Mail.SMTPUser,
			cfg.Mail.SMTPPass,
			cfg.Mail.SMTPUseTLS,
		)
	}
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "Panic recovered", "error", rec)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"status":"INTERNAL_APPLICATION_ERROR"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

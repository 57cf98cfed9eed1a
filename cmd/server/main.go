package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/invoicely/backend/internal/config"
	"github.com/invoicely/backend/internal/handler"
	appMiddleware "github.com/invoicely/backend/internal/middleware"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/invoicely/backend/internal/service"
	"github.com/invoicely/backend/internal/ws"
	"github.com/invoicely/backend/pkg/crypto"
	"github.com/invoicely/backend/pkg/mailer"
	"github.com/invoicely/backend/pkg/payment"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load .env file if present (for local development)
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := cfg.NewLogger()
	handler.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Info("database connected and migrated")

	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("encryption error: %v", err)
	}

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Side channels
	var mail mailer.Mailer = mailer.NewLogMailer(log)
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	var gateway payment.Gateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		log.Warn("RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET not set, using mock payment gateway")
		gateway = payment.NewMockGateway("mock_secret")
	}

	// Services
	hub := service.NewHub(log, metrics)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), hub, log, metrics)

	userRepo := repository.NewUserRepository(db)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, service.AuthDeps{
		UserRepo:    userRepo,
		SessionRepo: repository.NewSessionRepository(db),
		Encryptor:   enc,
		Notifier:    notifications,
		Mailer:      mail,
		Log:         log,
		Metrics:     metrics,
	})
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatalf("admin seed error: %v", err)
	}

	customerSvc := service.NewCustomerService(repository.NewCustomerRepository(db), userRepo)
	invoiceSvc := service.NewInvoiceService(service.InvoiceDeps{
		DB:        db,
		Notifier:  notifications,
		Reminders: service.NewLogReminderScheduler(log),
		Log:       log,
		Metrics:   metrics,
	})
	subSvc := service.NewSubscriptionService(service.SubscriptionDeps{
		DB:       db,
		Gateway:  gateway,
		Notifier: notifications,
		Mailer:   mail,
		Log:      log,
		Metrics:  metrics,
	})
	settingsSvc := service.NewSettingsService(userRepo)
	paymentMethodSvc := service.NewPaymentMethodService(db, enc)

	scheduler := service.NewScheduler(log, metrics)
	if err := scheduler.RegisterMaintenance(invoiceSvc, authSvc); err != nil {
		log.Fatalf("scheduler error: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Rate limiting: shared across instances when Redis is configured.
	var (
		globalRL appMiddleware.Limiter
		loginRL  appMiddleware.Limiter
		cache    handler.Pinger
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("REDIS_URL is invalid: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		redisGlobal := appMiddleware.NewRedisRateLimiter(client, 1200, time.Minute, "rl:global")
		globalRL = redisGlobal
		loginRL = appMiddleware.NewRedisRateLimiter(client, 10, time.Minute, "rl:login")
		cache = redisGlobal
		log.Info("rate limiting backed by redis")
	} else {
		memGlobal := appMiddleware.NewRateLimiter(20, 40) // 20 req/sec per IP, burst of 40
		memLogin := appMiddleware.StrictRateLimiter()
		go memGlobal.Cleanup(ctx)
		go memLogin.Cleanup(ctx)
		globalRL, loginRL = memGlobal, memLogin
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, cfg.CookieSecure)
	sessionHandler := handler.NewSessionHandler(authSvc)
	customerHandler := handler.NewCustomerHandler(customerSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc)
	paymentHandler := handler.NewPaymentHandler(subSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc, paymentMethodSvc)
	notificationHandler := handler.NewNotificationHandler(notifications)
	healthHandler := handler.NewHealthHandler(db, cache)
	adminHandler := handler.NewAdminHandler(db, authSvc)
	socketHandler := ws.NewNotificationHandler(hub, log, cfg.CORSOrigins)

	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.RequestID)
	r.Use(appMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(appMiddleware.Recovery(log))
	r.Use(observability.HTTPMetricsMiddleware(metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.RequestIDHeader},
		ExposedHeaders:   []string{appMiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", observability.Handler(registry))

	r.Route("/api", func(r chi.Router) {
		r.Use(appMiddleware.RateLimit(globalRL, log))

		r.Get("/plans", paymentHandler.Plans)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RateLimit(loginRL, log))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Auth(authSvc))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Post("/auth/2fa/setup", sessionHandler.SetupTwoFactor)
			r.Post("/auth/2fa/enable", sessionHandler.EnableTwoFactor)
			r.Post("/auth/2fa/disable", sessionHandler.DisableTwoFactor)

			r.Get("/sessions", sessionHandler.List)
			r.Delete("/sessions", sessionHandler.TerminateOthers)
			r.Delete("/sessions/{id}", sessionHandler.Terminate)

			r.Get("/customers", customerHandler.List)
			r.Post("/customers", customerHandler.Create)
			r.Get("/customers/{id}", customerHandler.Get)
			r.Put("/customers/{id}", customerHandler.Update)
			r.Delete("/customers/{id}", customerHandler.Delete)

			// Specific routes BEFORE generic {id} route
			r.Get("/invoices/next-number", invoiceHandler.NextNumber)
			r.Get("/invoices/stats", invoiceHandler.Stats)
			r.Get("/invoices", invoiceHandler.List)
			r.Post("/invoices", invoiceHandler.Create)
			r.Get("/invoices/{id}", invoiceHandler.Get)
			r.Put("/invoices/{id}", invoiceHandler.Update)
			r.Patch("/invoices/{id}/status", invoiceHandler.UpdateStatus)
			r.Delete("/invoices/{id}", invoiceHandler.Delete)

			r.Get("/subscription", paymentHandler.Current)
			r.Get("/subscription/history", paymentHandler.History)
			r.Post("/subscription/select", paymentHandler.SelectPlan)
			r.Post("/subscription/cancel", paymentHandler.Cancel)
			r.Post("/payment/create-order", paymentHandler.CreateOrder)
			r.Post("/payment/verify", paymentHandler.Verify)

			r.Get("/payment-methods", settingsHandler.ListPaymentMethods)
			r.Post("/payment-methods", settingsHandler.AddPaymentMethod)
			r.Post("/payment-methods/{id}/default", settingsHandler.SetDefaultPaymentMethod)
			r.Delete("/payment-methods/{id}", settingsHandler.DeletePaymentMethod)

			r.Get("/settings", settingsHandler.Get)
			r.Put("/settings/profile", settingsHandler.UpdateProfile)
			r.Put("/settings/invoice", settingsHandler.UpdateInvoice)
			r.Put("/settings/session", settingsHandler.UpdateSession)

			r.Get("/notifications", notificationHandler.List)
			r.Get("/notifications/unread-count", notificationHandler.UnreadCount)
			r.Get("/notifications/stream", notificationHandler.Stream)
			r.Get("/notifications/ws", socketHandler.Handle)
			r.Post("/notifications/read-all", notificationHandler.MarkAllRead)
			r.Post("/notifications/test", notificationHandler.Test)
			r.Patch("/notifications/{id}/read", notificationHandler.MarkRead)
			r.Delete("/notifications/{id}", notificationHandler.Delete)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.AdminOnly(log))
				r.Get("/admin/stats", adminHandler.GetStats)
				r.Get("/admin/users", adminHandler.ListUsers)
				r.Post("/admin/users", adminHandler.CreateUser)
				r.Delete("/admin/users/{id}", adminHandler.DeleteUser)
			})
		})
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(r, "invoicely"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout must be 0 for SSE and WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
		// Streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()

	log.WithField("addr", addr).Info("invoicely backend listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
}

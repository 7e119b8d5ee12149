// Package main runs the payment and WhatsApp webhook server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/config"
	"github.com/manav-trails/backend/internal/auth"
	"github.com/manav-trails/backend/internal/content"
	"github.com/manav-trails/backend/internal/emaillogs"
	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/internal/middleware"
	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/internal/payments"
	"github.com/manav-trails/backend/internal/razorpay"
	"github.com/manav-trails/backend/internal/whatsapp"
	"github.com/manav-trails/backend/pkg/database"
	"github.com/manav-trails/backend/pkg/httpclient"
	"github.com/manav-trails/backend/pkg/logger"
	"github.com/manav-trails/backend/pkg/queue"
	"github.com/manav-trails/backend/pkg/redis"
	"github.com/manav-trails/backend/pkg/response"
	"github.com/manav-trails/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Log)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Email: invites are sent inline or handed to cmd/worker.
	smtpSender, err := mailer.NewSMTPSender(cfg.Email)
	if err != nil {
		log.Fatal("smtp", zap.Error(err))
	}
	emailLogsRepo := emaillogs.NewRepository(pool)
	var invites *mailer.Invites
	if cfg.Email.Delivery == "queue" {
		invites = mailer.NewInvites(smtpSender, emailLogsRepo, queue.NewQueue(rdb.Client, log), log)
	} else {
		invites = mailer.NewInvites(smtpSender, emailLogsRepo, nil, log)
	}

	// Payments
	paymentsRepo := payments.NewRepository(pool, cfg.Payments.TxMaxAttempts)
	var capturer payments.Capturer
	if cfg.Payments.CaptureOnAuthorize {
		capturer = razorpay.NewClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	}
	processor := payments.NewProcessor(paymentsRepo, invites, capturer, payments.ProcessorConfig{
		TrackedProduct:     cfg.Payments.IsTrackedProduct,
		CaptureOnAuthorize: cfg.Payments.CaptureOnAuthorize,
	}, log)

	var archiver payments.Archiver
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
		}, log)
		if err != nil {
			log.Warn("webhook archive disabled", zap.Error(err))
		} else {
			archiver = s3Client
		}
	}
	webhookHandler := payments.NewWebhookHandler(processor, cfg.Razorpay.WebhookSecret, archiver, log)
	adminPayments := payments.NewAdminHandler(paymentsRepo, invites, log)

	// Content
	ttl := time.Duration(cfg.Content.CacheTTLSeconds) * time.Second
	contentService := content.NewService(
		content.NewSheetSource(httpclient.New(httpclient.Options{Timeout: 15 * time.Second, RetryCount: 2}), cfg.Content.GearSheetCSVURL),
		content.NewNotionClient(cfg.Content.NotionBaseURL, cfg.Content.NotionToken, cfg.Content.NotionVersion, cfg.Content.NotionDatabaseID),
		content.NewRedisCache(rdb.Client, "content:"),
		ttl,
		log,
	)
	contentHandler := content.NewHandler(contentService, log)
	contentLimit, err := middleware.RateLimit(rdb.Client, cfg.RateLimit.Content, "ratelimit", log)
	if err != nil {
		log.Fatal("rate limiter", zap.Error(err))
	}

	// Admin
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(cfg.Admin, jwtService, log)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log, "/health"))

	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Hello, this is webhook setup") })
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(ctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Razorpay (both paths are configured on the dashboard)
	router.POST("/Payment", webhookHandler.Handle)
	router.POST("/razorpay-webhook", webhookHandler.Handle)

	// WhatsApp Business
	if cfg.WhatsApp.Enabled {
		waService := whatsapp.NewService(
			whatsapp.NewRepository(pool),
			whatsapp.NewGraphClient(cfg.WhatsApp.GraphAPIURL, cfg.WhatsApp.GraphToken),
			cfg.WhatsApp.TemplateName,
			log,
		)
		router.Any("/webhook", whatsapp.NewHandler(waService, cfg.WhatsApp.VerifyToken, log).Serve)
	}

	// Public content
	router.GET("/gear", contentLimit, contentHandler.Gear)
	router.GET("/trails", contentLimit, contentHandler.Trails)
	router.GET("/trails/:slug", contentLimit, contentHandler.Trail)

	router.POST("/auth/login", authHandler.Login)

	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/payments/:id", adminPayments.GetPayment)
		admin.GET("/payments/:id/emails", emailLogsHandler.ListByPayment)
		admin.POST("/payments/:id/resend-invite", adminPayments.ResendInvite)
		admin.POST("/content/invalidate", contentHandler.Invalidate)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	invitesDone := make(chan struct{})
	go func() {
		processor.Wait()
		close(invitesDone)
	}()
	select {
	case <-invitesDone:
	case <-shutdownCtx.Done():
		log.Warn("invite deliveries still running at exit")
	}
	log.Info("server stopped")
}

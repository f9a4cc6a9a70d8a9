package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/internal/azure"
	"github.com/Blackades/med-alert-hub-sub000/internal/config"
	"github.com/Blackades/med-alert-hub-sub000/internal/dose"
	"github.com/Blackades/med-alert-hub-sub000/internal/handler"
	"github.com/Blackades/med-alert-hub-sub000/internal/middleware"
	"github.com/Blackades/med-alert-hub-sub000/internal/notify"
	"github.com/Blackades/med-alert-hub-sub000/internal/pdf"
	"github.com/Blackades/med-alert-hub-sub000/internal/repository"
	"github.com/Blackades/med-alert-hub-sub000/internal/schedule"
	"github.com/Blackades/med-alert-hub-sub000/internal/scheduler"
	"github.com/Blackades/med-alert-hub-sub000/internal/security"
	"github.com/Blackades/med-alert-hub-sub000/internal/service"
	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

var version = "dev"

var (
	logger *zap.Logger
	pool   *pgxpool.Pool
	cfg    *config.Config
)

func main() {
	// Load configuration
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err = newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool with pgx
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Invalid database URL", zap.Error(err))
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Test database connection
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	if err := repository.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	cipher, err := security.NewEncryptorFromBase64(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal("Failed to initialize target encryption", zap.Error(err))
	}

	// Notification delivery
	optionalChecks := map[string]handler.Pinger{}
	var limiter notify.RateLimiter = notify.NewMemoryRateLimiter(cfg.Notify.RateLimit, cfg.Notify.RateWindow)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = notify.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		limiter = notify.NewRedisRateLimiter(redisClient, cfg.Notify.RateLimit, cfg.Notify.RateWindow)
		optionalChecks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		logger.Info("Using Redis notification rate limiter", zap.String("addr", cfg.Redis.Addr))
	}

	router := notify.NewRouter(limiter, cfg.Notify.MaxRetries, cfg.Notify.RetryBackoff, logger)
	router.Register(model.ChannelESP32HTTP, notify.NewDeviceHTTPSender(cfg.Notify.DeviceTimeout, logger))

	if cfg.Notify.SendGrid.APIKey != "" {
		router.Register(model.ChannelEmail, notify.NewEmailSender(
			cfg.Notify.SendGrid.APIKey,
			cfg.Notify.SendGrid.FromName,
			cfg.Notify.SendGrid.FromAddr,
			logger,
		))
	}

	if cfg.Notify.Twilio.AccountSID != "" {
		smsSender, err := notify.NewSMSSender(notify.SMSConfig{
			AccountSID: cfg.Notify.Twilio.AccountSID,
			AuthToken:  cfg.Notify.Twilio.AuthToken,
			From:       cfg.Notify.Twilio.From,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize SMS sender", zap.Error(err))
		}
		router.Register(model.ChannelSMS, smsSender)
	}

	if cfg.Notify.MQTT.BrokerURL != "" {
		mqttSender, err := notify.NewMQTTSender(notify.MQTTConfig{
			BrokerURL:   cfg.Notify.MQTT.BrokerURL,
			ClientID:    cfg.Notify.MQTT.ClientID,
			Username:    cfg.Notify.MQTT.Username,
			Password:    cfg.Notify.MQTT.Password,
			TopicPrefix: cfg.Notify.MQTT.TopicPrefix,
			QoS:         byte(cfg.Notify.MQTT.QoS),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttSender.Close()
		router.Register(model.ChannelMQTT, mqttSender)
	}

	logger.Info("Notification channels registered", zap.Any("channels", router.Channels()))

	// Report storage and narrative
	var reportStore azure.ReportStore
	if cfg.Azure.BlobEnabled() {
		reportStore, err = azure.NewBlobStorageClient(
			cfg.Azure.Storage.AccountName,
			cfg.Azure.Storage.AccountKey,
			cfg.Azure.Storage.ReportContainer,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize report blob storage client", zap.Error(err))
		}
	} else {
		logger.Warn("Azure Blob Storage not configured, reports are kept in memory")
		reportStore = azure.NewMemoryReportStore(logger)
	}

	var narrator service.NarrativeWriter
	if cfg.Azure.OpenAIEnabled() {
		openAIClient, err := azure.NewOpenAIClient(
			cfg.Azure.OpenAI.Endpoint,
			cfg.Azure.OpenAI.APIKey,
			cfg.Azure.OpenAI.Deployment,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Azure OpenAI client", zap.Error(err))
		}
		narrator = openAIClient
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool, logger)
	medicationRepo := repository.NewMedicationRepository(pool, logger)
	doseRepo := repository.NewDoseRepository(pool, logger)
	reminderRepo := repository.NewReminderRepository(pool, logger)
	notificationRepo := repository.NewNotificationRepository(pool, cipher, logger)
	reportRepo := repository.NewReportRepository(pool, logger)
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize services
	tz := cfg.Schedule.DefaultTimezone
	projector := schedule.NewProjector(cfg.Schedule.DueWindow, cfg.Schedule.GraceWindow)
	engine := dose.NewEngine(cfg.Schedule.DefaultDelay, cfg.Schedule.MaxDelay)

	userService := service.NewUserService(userRepo, auditLogger, tz, logger)
	notificationService := service.NewNotificationService(notificationRepo, router, auditLogger, logger)
	medicationService := service.NewMedicationService(medicationRepo, userRepo, auditLogger, tz, logger)
	doseService := service.NewDoseService(doseRepo, engine, projector, notificationService, auditLogger, tz, logger)
	adherenceService := service.NewAdherenceService(doseRepo, medicationRepo, userRepo, tz, logger)
	reportService := service.NewReportService(
		reportRepo,
		medicationRepo,
		doseRepo,
		userRepo,
		reportStore,
		pdf.NewPDFGenerator(logger),
		narrator,
		auditLogger,
		tz,
		logger,
	)

	reminders := scheduler.New(
		reminderRepo,
		doseRepo,
		notificationService,
		doseService,
		projector,
		scheduler.Config{
			CheckInterval:   cfg.Schedule.CheckInterval,
			BatchSize:       cfg.Schedule.BatchSize,
			AutoMissAfter:   cfg.Schedule.AutoMissAfter,
			DefaultTimezone: tz,
		},
		logger,
	)

	// Initialize handlers
	server := handler.NewServer(
		handler.NewHealthHandler(pool, optionalChecks, version, logger),
		handler.NewUserHandler(userService, logger),
		handler.NewMedicationHandler(medicationService, logger),
		handler.NewDoseHandler(doseService, logger),
		handler.NewAdherenceHandler(adherenceService, logger),
		handler.NewReportHandler(reportService, logger),
		handler.NewNotificationHandler(notificationService, logger),
	)

	engineHTTP, err := newRouter(server)
	if err != nil {
		logger.Fatal("Failed to build HTTP router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engineHTTP,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reminders.Start(gctx)
		return nil
	})

	g.Go(func() error {
		if err := reminders.Listen(gctx, cfg.Database.URL); err != nil {
			// the ticker keeps reminders flowing without notifications
			logger.Warn("Database event listener stopped", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Server.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Logging.Format != "" {
		zcfg.Encoding = cfg.Logging.Format
	}
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func newRouter(server api.ServerInterface) (*gin.Engine, error) {
	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	doc, err := api.GetSwagger()
	if err != nil {
		return nil, err
	}
	validate, err := middleware.OpenAPIValidationMiddleware(doc, logger)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.Server.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.AuditContextMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))
	r.Use(middleware.SlowRequestMiddleware(logger, cfg.Server.SlowRequestTimeout))
	r.Use(validate)

	r.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", api.Spec())
	})

	api.RegisterHandlers(r, server)
	return r, nil
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

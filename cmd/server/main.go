package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/config"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/handlers"
	"github.com/staycare/booking-backend/internal/middleware"
	"github.com/staycare/booking-backend/internal/queue"
	"github.com/staycare/booking-backend/internal/services"
	"github.com/staycare/booking-backend/pkg/jwt"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// auditTrail is what the server needs from the audit backend
type auditTrail interface {
	services.AuditLogger
	services.AuditCleaner
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting StayCare booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Task queue
	var rdb *redis.Client
	if cfg.Queue.Mode == config.QueueModeRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}
	publisher, err := queue.NewPublisher(cfg.Queue, rdb, logger)
	if err != nil {
		logger.Fatalf("Failed to create task publisher: %v", err)
	}
	defer publisher.Close()
	logger.WithField("mode", cfg.Queue.Mode).Info("Task publisher ready")

	// Repositories
	bookingRepo := database.NewBookingRepository(db)
	qaPairRepo := database.NewQaPairRepository(db)
	templateRepo := database.NewTemplateRepository(db)
	amendmentRepo := database.NewAmendmentLogRepository(db)
	equipmentRepo := database.NewEquipmentRepository(db)
	triggerRepo := database.NewEmailTriggerRepository(db)
	scheduledTaskRepo := database.NewScheduledTaskRepository(db)
	settingRepo := database.NewSystemSettingRepository(db)

	// Services
	logger.Info("Initializing services...")
	var audit auditTrail = services.DiscardAudit{}
	if cfg.Security.EnableAuditLog {
		audit = services.NewAuditService(db)
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	dispatcher := services.NewNotificationDispatcher(publisher, scheduledTaskRepo, cfg.Queue.TopicPrefix, logger)
	recipients := services.NewRecipientsLookup(
		settingRepo,
		services.NewTTLCache[[]string](cfg.Notifications.RecipientsTTL, time.Now),
		cfg.Notifications.FallbackAddress,
		logger,
	)
	triggers := services.NewEmailTriggerService(triggerRepo, recipients, dispatcher, logger)

	reconciler := services.NewBookingReconciler(
		bookingRepo,
		qaPairRepo,
		templateRepo,
		amendmentRepo,
		triggers,
		recipients,
		dispatcher,
		services.NewLocalFileStore(cfg.Uploads.Dir),
		audit,
		cfg.Notifications,
		logger,
	)
	amendments := services.NewAmendmentService(
		amendmentRepo,
		bookingRepo,
		qaPairRepo,
		templateRepo,
		equipmentRepo,
		triggers,
		audit,
		cfg.Reconcile,
		logger,
	)

	relay := services.NewTaskRelayService(scheduledTaskRepo, dispatcher, cfg.Queue.RelayBatchSize, cfg.Queue.MaxRelayAttempt, logger)
	cronService := services.NewCronService(relay, scheduledTaskRepo, audit, cfg.Queue.RelaySchedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("Cron service started - deferred task relay enabled")

	// Handlers
	bookingHandler := handlers.NewBookingHandler(reconciler, amendments, equipmentRepo, logger)
	amendmentHandler := handlers.NewAmendmentHandler(amendments)
	settingHandler := handlers.NewSystemSettingHandler(settingRepo, recipients)
	logger.Info("Services initialized")

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		// Guests submit only their own questionnaires; origin is checked in the handler
		v1.POST("/bookings/:id/qa-pairs", middleware.RequireBookingAccess(bookingRepo, logger), bookingHandler.SaveQaPairs)

		staff := v1.Group("")
		staff.Use(middleware.RequireRole(jwt.RoleStaff, jwt.RoleAdmin))
		{
			staff.GET("/bookings/:id", bookingHandler.GetBooking)
			staff.GET("/bookings/uuid/:uuid", bookingHandler.GetBookingByUUID)
			staff.GET("/bookings/:id/equipment", bookingHandler.ListEquipment)
			staff.POST("/bookings/:id/status", bookingHandler.ChangeStatus)
			staff.GET("/bookings/:id/amendments", bookingHandler.ListAmendments)
			staff.POST("/amendments/:id", amendmentHandler.ReviewAmendment)
			staff.GET("/system-settings", settingHandler.GetAllSettings)
			staff.GET("/system-settings/:key", settingHandler.GetSettingByKey)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.PUT("/system-settings/:key", settingHandler.UpdateSetting)
			admin.GET("/cron/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, cronService.GetJobStatus())
			})
			admin.POST("/cron/relay", func(c *gin.Context) {
				cronService.RunRelayNow()
				c.JSON(http.StatusOK, gin.H{"message": "Relay completed"})
			})
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		logger.Info("Stopping cron service...")
		cronService.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		return
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassianoaxe/endurancy/internal/config"
	"github.com/cassianoaxe/endurancy/internal/middleware"
	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/shared/whatsapp"
	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"github.com/cassianoaxe/endurancy/internal/trace/handler"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/service"
	"github.com/cassianoaxe/endurancy/internal/trace/sse"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting endurancy traceability service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Product{},
		&entity.InventoryItem{},
		&entity.Movement{},
		&entity.ProductionOrder{},
		&entity.ProductionStep{},
		&entity.ProductionMaterial{},
		&entity.Disposal{},
		&entity.AuditTrail{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// Columns and constraints AutoMigrate cannot express.
	migrationSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_trace_movements_reference ON trace_movements(reference_type, reference_id)",
		"CREATE INDEX IF NOT EXISTS idx_trace_disposals_status ON trace_disposals(organization_id, status)",
		"ALTER TABLE trace_inventory_items ADD CONSTRAINT trace_inventory_items_qty_check CHECK (quantity >= 0)",
		"ALTER TABLE trace_inventory_items ADD CONSTRAINT trace_inventory_items_reserved_check CHECK (reserved_qty >= 0)",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration SQL warning (may already exist)", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("Database migration completed")

	rdb := initRedis(cfg.Redis)

	store, err := storage.New(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		zapLogger.Fatal("Failed to init object storage", zap.Error(err))
	}
	if store.Configured() {
		zapLogger.Info("Object storage initialized", zap.String("bucket", cfg.MinIO.Bucket))
	}

	var waClient *whatsapp.Client
	if cfg.WhatsApp.BaseURL != "" {
		waClient = whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.APIKey, cfg.WhatsApp.Session, zapLogger)
		if err := waClient.StartSession(context.Background()); err != nil {
			zapLogger.Warn("WhatsApp session start failed, continuing without it", zap.Error(err))
		} else {
			zapLogger.Info("WhatsApp client initialized")
		}
	}

	hub := sse.NewHub(zapLogger)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, service.Deps{
		DB:       db,
		Redis:    rdb,
		Store:    store,
		WhatsApp: waClient,
		ChatID:   cfg.WhatsApp.ChatID,
		Hub:      hub,
		Logger:   zapLogger,
	})
	handlers := handler.NewHandlers(services, hub, service.Deps{
		WhatsApp: waClient,
		Logger:   zapLogger,
	})

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // disabled for SSE long-lived connections
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		// WAHA callbacks arrive unauthenticated.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/whatsapp", h.WhatsApp.Webhook)
		}

		// SSE supports the token query param.
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			inventory := authorized.Group("/inventory")
			{
				inventory.GET("", h.Inventory.List)
				inventory.POST("", h.Inventory.Receive)
				inventory.GET("/alerts/low-stock", h.Inventory.LowStock)
				inventory.GET("/alerts/expiring", h.Inventory.Expiring)
				inventory.GET("/:id", h.Inventory.Get)
				inventory.POST("/:id/adjust", h.Inventory.Adjust)
				inventory.POST("/:id/status", h.Inventory.TransitionStatus)
				inventory.GET("/:id/ledger", h.Movement.Ledger)
			}

			movements := authorized.Group("/movements")
			{
				movements.GET("", h.Movement.List)
				movements.POST("", h.Movement.Record)
				movements.GET("/export", h.Movement.Export)
				movements.GET("/:id", h.Movement.Get)
				movements.POST("/:id/approve", h.Movement.Approve)
				movements.POST("/:id/complete", h.Movement.Complete)
				movements.POST("/:id/document", h.Movement.Document)
				movements.POST("/:id/cancel", h.Movement.Cancel)
			}

			production := authorized.Group("/production/orders")
			{
				production.GET("", h.Production.List)
				production.POST("", h.Production.Create)
				production.GET("/:id", h.Production.Get)
				production.POST("/:id/status", h.Production.Transition)
				production.GET("/:id/materials", h.Production.ListMaterials)
				production.POST("/:id/materials", h.Production.AllocateMaterial)
				production.POST("/:id/steps/:stepId/advance", h.Production.AdvanceStep)
			}

			disposals := authorized.Group("/disposals")
			{
				disposals.GET("", h.Disposal.List)
				disposals.POST("", h.Disposal.Request)
				disposals.GET("/:id", h.Disposal.Get)
				disposals.POST("/:id/approve", h.Disposal.Approve)
				disposals.POST("/:id/complete", h.Disposal.Complete)
				disposals.POST("/:id/document", h.Disposal.Document)
				disposals.POST("/:id/cancel", h.Disposal.Cancel)
				disposals.POST("/:id/evidence", h.Disposal.AttachEvidence)
				disposals.GET("/:id/evidence", h.Disposal.EvidenceURL)
			}

			products := authorized.Group("/products")
			{
				products.GET("", h.Product.List)
				products.POST("", h.Product.Create)
				products.GET("/:id", h.Product.Get)
				products.PUT("/:id", h.Product.Update)
				products.DELETE("/:id", h.Product.Deactivate)
				products.POST("/:id/documents", h.Product.AttachDocument)
			}

			audit := authorized.Group("/audit")
			{
				audit.GET("", h.Audit.List)
				audit.GET("/export", h.Audit.Export)
			}

			wa := authorized.Group("/whatsapp")
			wa.Use(middleware.RequireRole("org_admin"))
			{
				wa.GET("/session", h.WhatsApp.SessionStatus)
				wa.POST("/session", h.WhatsApp.StartSession)
				wa.DELETE("/session", h.WhatsApp.Logout)
			}
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-srm/internal/config"
	"github.com/bitfantasy/nimo-srm/internal/middleware"
	"github.com/bitfantasy/nimo-srm/internal/shared/notify"
	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/handler"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
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
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-srm service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 建表
	if err := db.AutoMigrate(
		&entity.EquipmentModel{},
		&entity.OriginalPart{},
		&entity.BOMEdge{},
		&entity.ClientRequest{},
		&entity.ClientRequestRevision{},
		&entity.RequestLine{},
		&entity.RFQ{},
		&entity.RFQRevision{},
		&entity.RFQItem{},
		&entity.RFQItemStrategy{},
		&entity.RFQItemComponent{},
		&entity.Supplier{},
		&entity.SupplierContact{},
		&entity.SupplierPart{},
		&entity.SupplierPartPrice{},
		&entity.SupplierBundle{},
		&entity.SupplierBundleRole{},
		&entity.RFQSupplier{},
		&entity.RFQSupplierLineSelection{},
		&entity.RFQSupplierLineStatus{},
		&entity.RFQSupplierRevisionState{},
		&entity.RFQSupplierDispatch{},
		&entity.RFQResponseRevision{},
		&entity.RFQResponseLine{},
		&entity.RFQResponseLineAction{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 补充索引：AutoMigrate覆盖不到的部分
	migrationSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_response_lines_item ON srm_rfq_response_lines(rfq_item_id)",
		"CREATE INDEX IF NOT EXISTS idx_dispatches_created ON srm_rfq_supplier_dispatches(rfq_supplier_id, created_at DESC)",
		// option_ref_id为NULL时Postgres视为互不相等，唯一性用COALESCE表达式兜底
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_line_selection ON srm_rfq_supplier_line_selections(rfq_supplier_id, rfq_item_id, option_type, COALESCE(option_ref_id, ''))",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration warning", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("SRM database migration completed")

	// 初始化Redis
	redisClient := initRedis(cfg.Redis)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, dispatch locking disabled", zap.Error(err))
		redisClient = nil
	}

	// 初始化MinIO
	minioClient := initMinio(cfg.MinIO, zapLogger)

	// 通知客户端
	notifier := notify.NewClient(cfg.Notify.WebhookURL, zapLogger)

	// 仓库、服务、处理器
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, redisClient, minioClient, cfg.MinIO.Bucket, notifier, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
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

func registerRoutes(router *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": Version})
	})

	api := router.Group("/api/v1/srm")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))

	// 创建、确认、发送询价仅限采购角色
	buyer := middleware.RequireRole("srm_buyer")
	{
		// 零件目录与BOM
		api.POST("/models", h.Catalog.CreateModel)
		api.POST("/parts", h.Catalog.CreatePart)
		api.GET("/parts", h.Catalog.ListParts)
		api.GET("/parts/:id", h.Catalog.GetPart)
		api.GET("/parts/:id/subtree", h.Catalog.GetSubtree)
		api.POST("/bom/edges", h.Catalog.AddBOMEdge)
		api.DELETE("/bom/edges/:id", h.Catalog.RemoveBOMEdge)

		// 供应商主数据
		api.GET("/suppliers", h.Supplier.ListSuppliers)
		api.POST("/suppliers", h.Supplier.CreateSupplier)
		api.GET("/suppliers/:id", h.Supplier.GetSupplier)
		api.POST("/suppliers/:id/bundles", h.Supplier.CreateBundle)
		api.GET("/supplier-parts/:id/prices", h.Supplier.GetPriceHistory)

		// 客户需求单
		api.POST("/requests", buyer, h.Request.CreateRequest)
		api.GET("/requests/:id", h.Request.GetRequest)
		api.POST("/requests/:id/revisions", h.Request.ReviseRequest)
		api.POST("/requests/:id/release", buyer, h.Request.ReleaseRequest)
		api.POST("/requests/:id/close", h.Request.CloseRequest)

		// RFQ结构
		api.GET("/rfqs/:id", h.RFQ.GetRFQ)
		api.GET("/rfqs/:id/tree", h.RFQ.GetTree)
		api.POST("/rfqs/:id/rebuild", h.RFQ.RebuildAll)
		api.POST("/rfqs/:id/confirm", buyer, h.RFQ.ConfirmStructure)
		api.PUT("/rfq-items/:id/strategy", h.RFQ.SetStrategy)
		api.POST("/rfq-items/:id/rebuild", h.RFQ.RebuildItem)

		// 供应商邀请与选择
		api.POST("/rfqs/:id/suppliers", h.RFQ.InviteSupplier)
		api.PUT("/rfq-suppliers/:id/selections", h.RFQ.SetSelections)
		api.GET("/rfq-suppliers/:id/line-statuses", h.RFQ.GetLineStatuses)
		api.PUT("/rfq-suppliers/:id/line-statuses", h.RFQ.SetLineStatuses)
		api.PUT("/rfq-suppliers/:id/line-statuses/:item_id", h.RFQ.SetLineStatus)

		// 差量发送
		api.POST("/rfqs/:id/send", buyer, h.Dispatch.Send)
		api.GET("/rfqs/:id/send-preview", h.Dispatch.Preview)
		api.GET("/rfqs/:id/diff", h.Dispatch.GetDiff)
		api.GET("/rfq-suppliers/:id/dispatches", h.Dispatch.ListDispatches)

		// 报价录入与接受
		api.POST("/rfq-suppliers/:id/responses", h.Response.ImportBatch)
		api.POST("/rfq-suppliers/:id/responses/file", h.Response.ImportFile)
		api.POST("/rfq-suppliers/:id/accept-existing", h.Response.AcceptExisting)
		api.GET("/rfq-suppliers/:id/responses", h.Response.GetHistory)
	}
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
		Logger: logger.Default.LogMode(logger.Info),
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
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func initMinio(cfg config.MinIOConfig, zapLogger *zap.Logger) *minio.Client {
	if cfg.Endpoint == "" {
		zapLogger.Warn("MinIO not configured, dispatch documents will not be stored")
		return nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		zapLogger.Warn("Failed to init MinIO client", zap.Error(err))
		return nil
	}
	return client
}

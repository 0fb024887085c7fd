package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fatoora/internal/cache"
	"fatoora/internal/config"
	"fatoora/internal/database"
	"fatoora/internal/engine"
	"fatoora/internal/export"
	"fatoora/internal/handler"
	"fatoora/internal/logger"
	"fatoora/internal/middleware"
	"fatoora/internal/repository"
	"fatoora/internal/service"
	"fatoora/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Fatoora Invoice API
// @version         1.0
// @description     Derives invoice totals and exports invoices as PDF, CSV, JSON or WhatsApp text.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Release(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	var artifactCache cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, artifact cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			artifactCache = cache.NewRedis(client)
			log.Info("artifact cache enabled", zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	// Set up WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := websocket.NewHub(log)
	go wsHub.Run(hubCtx)

	secret := []byte(cfg.JWTSecret)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	exportLogRepo := repository.NewExportLogRepository(db)

	userService := service.NewUserService(userRepo, txManager, secret)
	historyService := service.NewHistoryService(exportLogRepo, log)
	exportService := service.NewExportService(
		engine.NewDeriver(log),
		export.NewPipeline(export.WithLogger(log)),
		artifactCache,
		exportLogRepo,
		wsHub,
		service.ExportServiceConfig{PDFTimeout: cfg.PDFRenderTimeout, CacheTTL: cfg.CacheTTL},
		log,
	)

	userHandler := handler.NewUserHandler(userService, secret)
	invoiceHandler := handler.NewInvoiceHandler(exportService, secret)
	historyHandler := handler.NewHistoryHandler(historyService, secret)

	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", handler.WarningsHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	userHandler.RegisterRoutes(router.Group(""))
	invoiceHandler.RegisterRoutes(router.Group(""))
	historyHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	stopHub()
	log.Info("server stopped")
}

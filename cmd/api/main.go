package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "freight-erp/api/swagger" // swagger docs
	"freight-erp/internal/config"
	"freight-erp/internal/database"
	"freight-erp/internal/handler"
	"freight-erp/internal/jobs"
	"freight-erp/internal/middleware"
	"freight-erp/internal/repository"
	"freight-erp/internal/service"
	"freight-erp/internal/websocket"
	"freight-erp/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Freight ERP API
// @version         1.0
// @description     Quotations (PJO), job orders, invoices and payments for a freight forwarding business.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger config yet
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("env", cfg.Env).Msg("Starting Freight ERP API server...")

	db, err := database.NewConnection(cfg.Database.GetDSN(), database.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	log.Info().Msg("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(cfg.Server.CORSOrigins, log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	pjoRepo := repository.NewPJORepository(db)
	joRepo := repository.NewJobOrderRepository(db)

	userService := service.NewUserService(userRepo, tokenRepo, auditRepo, txManager, service.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	}, log)
	invoiceService := service.NewInvoiceService(invoiceRepo, auditRepo, txManager, wsHub, log)
	paymentService := service.NewPaymentService(invoiceRepo, paymentRepo, auditRepo, txManager, wsHub, log)
	pjoService := service.NewPJOService(pjoRepo, joRepo, auditRepo, txManager, wsHub, log)
	auditService := service.NewAuditService(auditRepo)

	auth := middleware.NewAuth(middleware.AuthConfig{
		Secret:        []byte(cfg.Auth.JWTSecret),
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		SecureCookies: cfg.Auth.SecureCookies,
	}, userService, log)

	go jobs.RunOverdueSweep(ctx, invoiceService, cfg.Jobs.OverdueSweepInterval, log)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, auth)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, paymentService, auth)
	pjoHandler := handler.NewPJOHandler(pjoService, auth)
	auditHandler := handler.NewAuditHandler(auditService, auth)

	// Set up Gin Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		wsHub.ServeWs(c, auth, userService)
	})

	// API Routing
	api := router.Group("/api")
	userHandler.RegisterRoutes(api)
	invoiceHandler.RegisterRoutes(api)
	pjoHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("Server exited gracefully")
}

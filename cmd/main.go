package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"roles-service/internal/cache"
	"roles-service/internal/clients"
	"roles-service/internal/config"
	"roles-service/internal/events"
	"roles-service/internal/handlers"
	"roles-service/internal/jobs"
	"roles-service/internal/middleware"
	"roles-service/internal/models"
	"roles-service/internal/policy"
	"roles-service/internal/repository"
	"roles-service/internal/seeders"
	"roles-service/internal/services"
)

// @title Roles & Permissions API
// @version 1.0.0
// @description Role hierarchy, permission matrix and role change workflow for the community platform

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8094
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}

	// Run database migrations
	logger.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.ModulePermission{},
		&models.UserRoleAssignment{},
		&models.RoleChangeRequest{},
		&models.AuditLogEntry{},
	); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Seed the system-level permission matrix
	if err := seeders.SeedDefaultPermissions(db, logger); err != nil {
		logger.Fatalf("Failed to seed permissions: %v", err)
	}

	// Initialize repositories
	assignmentRepo := repository.NewAssignmentRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	// Initialize permission cache (optional - service works without Redis)
	var permCache *cache.PermissionCache
	if cfg.RedisAddr != "" {
		permCache = cache.NewPermissionCache(cfg.RedisAddr, cfg.RedisPassword, 0, 300)
		logger.Info("Permission cache initialized")
	} else {
		logger.Info("REDIS_ADDR not configured, permission caching disabled")
	}

	// Initialize event publisher (optional - service works without NATS)
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, "roles-service", logger)
		if err != nil {
			logger.Warnf("Failed to initialize event publisher: %v. Events will not be published.", err)
			publisher = nil
		} else {
			logger.Info("Event publisher initialized")
		}
	} else {
		logger.Info("NATS_URL not configured, event publishing disabled")
	}

	// Initialize document service client
	docClient := clients.NewDocumentClient(cfg.DocumentServiceURL, "", 30*time.Second)

	// Initialize services
	permissionService := services.NewPermissionService(permissionRepo, assignmentRepo, permCache, logger)
	assignmentService := services.NewAssignmentService(assignmentRepo, permCache, publisher, logger)
	requestService := services.NewRequestService(requestRepo, assignmentRepo, docClient, permCache, publisher, logger)

	// Initialize handlers
	roleHandler := handlers.NewRoleHandler()
	permissionHandler := handlers.NewPermissionHandler(permissionService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	requestHandler := handlers.NewRequestHandler(requestService)
	auditHandler := handlers.NewAuditHandler(assignmentService)

	// Start assignment expiry job
	expiryJob := jobs.NewExpiryJob(assignmentService, logger)
	jobCtx, jobCancel := context.WithCancel(context.Background())
	go expiryJob.Start(jobCtx)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestIDMiddleware())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.ErrorHandler(logger))
	api.Use(middleware.TenantMiddleware())
	api.Use(middleware.IdentityMiddleware(cfg.JWTSecret))

	// Role catalog endpoints
	{
		api.GET("/roles", roleHandler.ListRoles)
		api.GET("/roles/:role/targets", roleHandler.ListTargets)
	}

	// Permission matrix endpoints
	{
		api.GET("/permissions/effective/:userId/:module", permissionHandler.EffectivePermissions)
		api.GET("/permissions/:role", permissionHandler.ListByRole)
		api.GET("/permissions/:role/:module", permissionHandler.GetPermissions)
		api.PUT("/permissions/:role/:module", middleware.RequireRole(policy.RoleCommunityAdmin), permissionHandler.SetCapability)
	}

	// Assignment endpoints
	{
		api.POST("/assignments", middleware.RequireRole(policy.RoleCommunityAdmin), assignmentHandler.Grant)
		api.DELETE("/assignments/:id", middleware.RequireRole(policy.RoleCommunityAdmin), assignmentHandler.Revoke)
		api.PATCH("/assignments/:id/active", middleware.RequireRole(policy.RoleCommunityAdmin), assignmentHandler.SetActive)
		api.GET("/assignments/user/:userId", assignmentHandler.ListByUser)
	}

	// Role change request endpoints
	{
		api.POST("/role-requests", requestHandler.Submit)
		api.GET("/role-requests/pending", requestHandler.ListPending)
		api.GET("/role-requests/my-requests", requestHandler.ListMine)
		api.GET("/role-requests/:id", requestHandler.Get)
		api.POST("/role-requests/:id/start-review", requestHandler.StartReview)
		api.POST("/role-requests/:id/approve", requestHandler.Approve)
		api.POST("/role-requests/:id/reject", requestHandler.Reject)
		api.DELETE("/role-requests/:id", requestHandler.Cancel)
		api.GET("/role-requests/:id/history", requestHandler.History)
	}

	// Audit log endpoints
	{
		api.GET("/audit-logs", middleware.RequireRole(policy.RoleCommunityAdmin), auditHandler.List)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8094"
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Infof("Roles service starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	logger.Info("Shutting down server...")

	// Stop accepting connections and drain in-flight requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	jobCancel()
	expiryJob.Stop()
	logger.Info("Assignment expiry job stopped")

	if publisher != nil {
		publisher.Close()
	}
	if permCache != nil {
		permCache.Close()
	}

	logger.Info("Server shutdown complete")
}

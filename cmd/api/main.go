package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "console/api/swagger" // swagger docs
	"console/internal/config"
	"console/internal/database"
	"console/internal/handler"
	"console/internal/logger"
	"console/internal/middleware"
	"console/internal/repository"
	"console/internal/service"
	"console/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title           Role Permission API
// @version         1.0
// @description     Roles, modules and per-role permission sets for the operator console.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, envFile, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	if envFile != "" {
		log.Info("loaded env file", zap.String("path", envFile))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		return err
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	wsHub := websocket.NewHub(log.Named("ws"))

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	var permService service.PermissionService
	permCache := middleware.NewPermissionCache(func(ctx context.Context, roleID string) ([]string, error) {
		return permService.CodesForRole(ctx, roleID)
	}, 256, cfg.PermissionCacheTTL)
	permService = service.NewPermissionService(roleRepo, moduleRepo, permRepo, auditRepo, txManager, wsHub, permCache, log.Named("permissions"))

	roleService := service.NewRoleService(roleRepo, auditRepo, txManager, wsHub, permCache, log.Named("roles"))
	userService := service.NewUserService(userRepo, permCache, []byte(cfg.JWTSecret))
	auditService := service.NewAuditService(auditRepo)
	statsService := service.NewStatisticsService(statsRepo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedDefaults {
		seeder := service.NewSeeder(roleRepo, moduleRepo, permRepo, userRepo, auditRepo, txManager, log.Named("seed"))
		if err := seeder.SeedDefaults(ctx, service.SeedOptions{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword}); err != nil {
			return err
		}
	}

	auth := middleware.NewAuth([]byte(cfg.JWTSecret), permCache)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log.Named("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth, service.AdminRole)
	})

	handler.NewUserHandler(userService, auth).RegisterRoutes(router.Group(""))
	handler.NewRoleHandler(roleService, auth).RegisterRoutes(router.Group(""))
	handler.NewPermissionHandler(permService, auth).RegisterRoutes(router.Group(""))
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(router.Group(""))
	handler.NewStatisticsHandler(statsService, auth).RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run()
		return nil
	})
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.Duration("permission_cache_ttl", cfg.PermissionCacheTTL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		wsHub.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

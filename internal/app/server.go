// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"civicconnect_backend/internal/auth"
	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/config"
	"civicconnect_backend/internal/issue"
	"civicconnect_backend/internal/middleware"
	"civicconnect_backend/internal/notification"
	platformes "civicconnect_backend/internal/platform/elasticsearch"
	"civicconnect_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&issue.Issue{},
		&issue.Comment{},
		&notification.Notification{},
	}
}

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Exposed for startup tasks run from main.
	DB          *gorm.DB
	ESClient    *platformes.ESClientWrapper
	SearchIndex issue.SearchIndex
	AppLogger   *zap.Logger
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	esClient *platformes.ESClientWrapper,
	searchIndex issue.SearchIndex,
	redisClient *goredis.Client,
	authenticator *middleware.Authenticator,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	issueHandler *issue.Handler,
	notificationHandler *notification.Handler,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := NewRouter(cfg, logger)

	authMW := authenticator.Required()
	optionalAuthMW := authenticator.Optional()
	staffMW := middleware.RequirePolicy(common.PolicyStaffOrAdmin)
	adminMW := middleware.RequirePolicy(common.PolicyAdminOnly)
	selfOrAdminMW := middleware.RequireSelfOrAdmin("id")
	rateLimitMW := middleware.IssueRateLimiter(redisClient, cfg.IssueDailyLimit, logger)

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1, authMW)
	userHandler.RegisterRoutes(v1, authMW, staffMW, selfOrAdminMW)
	issueHandler.RegisterRoutes(v1, optionalAuthMW, authMW, staffMW, adminMW, rateLimitMW)
	notificationHandler.RegisterRoutes(v1, authMW)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:  httpServer,
		router:      router,
		cfg:         cfg,
		logger:      logger,
		DB:          db,
		ESClient:    esClient,
		SearchIndex: searchIndex,
		AppLogger:   logger,
	}, nil
}

// NewRouter builds the engine with global middleware and the unversioned routes
// (health, metrics and uploaded files).
func NewRouter(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.ZapLogger(logger))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())
	if cfg.MetricsEnabled {
		router.Use(middleware.MetricsMiddleware())
	}
	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "CivicConnect API is healthy!"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if cfg.UploadsDir != "" && cfg.UploadsURLPrefix != "" {
		router.Static(cfg.UploadsURLPrefix, cfg.UploadsDir)
	}
	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsCfg.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}

	origins := cfg.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowAllOrigins = true
		return corsCfg
	}
	corsCfg.AllowOrigins = origins
	corsCfg.AllowCredentials = true
	return corsCfg
}

func (s *Server) Start() error {
	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	return s.httpServer.Shutdown(ctx)
}

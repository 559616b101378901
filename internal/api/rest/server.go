package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/api/websocket"
	"github.com/KevinKickass/OpenSCLCore/internal/auth"
	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/interfaces"
	"github.com/KevinKickass/OpenSCLCore/internal/subscription"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	cfg         *config.Config
	lm          interfaces.LifecycleManager
	logger      *zap.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
	queries     *subscription.Service
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub,
	authService *auth.AuthService, queries *subscription.Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		cfg:         cfg,
		lm:          lm,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
		queries:     queries,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ENDPOINTS (PUBLIC) ====================
		v1.POST("/auth/login", s.login)

		// ==================== AUTH ENDPOINTS (AUTHENTICATED) ====================
		authProtected := v1.Group("/auth")
		authProtected.Use(s.authService.AuthMiddleware())
		{
			authProtected.GET("/me", s.getCurrentUser)
		}

		// ==================== USER MANAGEMENT (ADMIN ONLY) ====================
		users := v1.Group("/users")
		users.Use(s.authService.AuthMiddleware())
		users.Use(auth.RequirePermission(auth.PermAdmin))
		{
			users.POST("", s.createUser)
		}

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		{
			system.GET("/status", auth.RequirePermission(auth.PermRead), s.getSystemStatus)
			system.POST("/shutdown", auth.RequirePermission(auth.PermAdmin), s.shutdown)
		}

		// ==================== DOCUMENTS ====================
		docs := v1.Group("/documents")
		docs.Use(s.authService.AuthMiddleware())
		{
			docs.GET("", auth.RequirePermission(auth.PermRead), s.listDocuments)
			docs.POST("", auth.RequirePermission(auth.PermWrite), s.uploadDocument)
			docs.POST("/reload", auth.RequirePermission(auth.PermAdmin), s.reloadDocuments)
			docs.GET("/:id", auth.RequirePermission(auth.PermRead), s.getDocument)
			docs.GET("/:id/content", auth.RequirePermission(auth.PermRead), s.getDocumentContent)
			docs.DELETE("/:id", auth.RequirePermission(auth.PermWrite), s.deleteDocument)

			// Subscription queries, elements addressed by XPath selectors
			queries := docs.Group("/:id")
			queries.Use(auth.RequirePermission(auth.PermRead))
			{
				queries.GET("/ieds", s.listIeds)
				queries.GET("/control-blocks", s.listControlBlocks)
				queries.GET("/fcdas", s.listFcdas)
				queries.GET("/subscriptions", s.listSubscribedExtRefs)
				queries.GET("/extrefs", s.listExtRefCandidates)
				queries.GET("/extrefs/status", s.getExtRefStatus)
				queries.GET("/supervision", s.getSupervision)
				queries.GET("/supervisions/used", s.listUsedSupervisions)
				queries.GET("/fcda", s.findFcda)
				queries.POST("/events", s.publishEvent)
			}
		}

		// ==================== WEBSOCKET (PUBLIC - Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), auth.RequirePermission(auth.PermRead), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-requests/config"
	"chat-requests/internal/handler"
	"chat-requests/internal/middleware"
	"chat-requests/internal/transport/httpdto"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Auth        *handler.AuthHandler
	ChatRequest *handler.ChatRequestHandler
	Chat        *handler.ChatHandler
}

// Dependencies are the collaborators routes need besides handlers.
// RateLimiter may be nil, in which case nothing is rate limited.
type Dependencies struct {
	Auth        middleware.Authenticator
	RateLimiter middleware.RateLimiter
	HealthCheck func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSAllowedOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	var authLimit, requestLimit gin.HandlerFunc = passThrough, passThrough
	if deps.RateLimiter != nil {
		authLimit = middleware.AuthRateLimitMiddleware(deps.RateLimiter)
		requestLimit = middleware.ChatRequestRateLimitMiddleware(deps.RateLimiter)
	}
	requireUser := middleware.AuthMiddleware(deps.Auth)

	auth := s.engine.Group("/v1/auth")
	{
		auth.POST("/register", authLimit, handlers.Auth.Register)
		auth.POST("/login", authLimit, handlers.Auth.Login)
		auth.GET("/me", requireUser, handlers.Auth.Me)
	}

	requests := s.engine.Group("/v1/chat-requests", requireUser)
	{
		requests.GET("", handlers.ChatRequest.List)
		requests.POST("", requestLimit, handlers.ChatRequest.Create)
		requests.POST("/:id/accept", handlers.ChatRequest.Accept)
		requests.POST("/:id/reject", handlers.ChatRequest.Reject)
		requests.POST("/:id/block", handlers.ChatRequest.Block)
		requests.DELETE("/:id", handlers.ChatRequest.Delete)
	}

	s.engine.GET("/v1/chats", requireUser, handlers.Chat.List)
}

func passThrough(c *gin.Context) {
	c.Next()
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		s.logger.Errorf("Error in starting the server: %s", err)
		return err
	case <-quit:
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}

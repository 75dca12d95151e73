package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/service"
	"github.com/mosli/threadloom/internal/store"
)

type Server struct {
	Config  *config.Config
	DB      *gorm.DB
	Router  *gin.Engine
	Logger  *zap.Logger
	Server  *http.Server
	Runtime *service.Runtime
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := store.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize the pipeline
	runtime, err := service.NewRuntime(cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Create router
	router := gin.New()

	srv := &Server{
		Config:  cfg,
		DB:      db,
		Router:  router,
		Logger:  logger,
		Runtime: runtime,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	api.Use(s.Runtime.Auth.AuthMiddleware())
	{
		threads := api.Group("/threads")
		{
			threads.GET("", s.handleListThreads)
			threads.GET("/:id", s.handleGetThread)
			threads.GET("/:id/prompt", s.handleTranslationPrompt)
		}

		scrape := api.Group("/scrape")
		{
			scrape.POST("", s.handleScrape)
			scrape.POST("/all", s.handleScrapeAll)
		}

		translations := api.Group("/translations")
		{
			translations.GET("", s.handleListTranslations)
			translations.GET("/:id", s.handleGetTranslation)
			translations.GET("/:id/title-prompt", s.handleTitlePrompt)
		}
		api.POST("/translate", s.handleTranslate)
		api.POST("/translate/pending", s.handleTranslatePending)

		publish := api.Group("/publish")
		{
			publish.POST("", s.handlePublish)
			publish.POST("/plan", s.handlePublishPlan)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("", s.handleListJobs)
			jobs.POST("", s.handleEnqueueJob)
			jobs.POST("/run", s.handleRunJobs)
		}

		api.POST("/command", s.handleCommand)
		api.GET("/activity", s.handleActivity)
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Runtime.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Runtime.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/internal/googlecal"
	"agendacerto/internal/gtoken"
	"agendacerto/internal/handler"
	"agendacerto/internal/middleware"
	"agendacerto/internal/n8n"
	"agendacerto/internal/ttlstore"
	"agendacerto/pkg/config"
	"agendacerto/pkg/database"
	"agendacerto/pkg/jwtutil"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting agendacerto server...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)

	// Wire the domain services
	repo := empresa.NewGormRepository(database.GetDB())
	svc := empresa.NewService(repo)

	oauth := googlecal.NewOAuth(&cfg.Google)
	calClient := googlecal.NewClient()
	tokens := gtoken.NewManager(repo, oauth, log)

	n8nClient := n8n.NewClient(&cfg.N8N)
	provisioner := n8n.NewProvisioner(n8nClient, repo, cfg.N8N.TemplateID, cfg.N8N.WebhookID, log)

	// Both stores are process-local; a server restart drops pending OAuth
	// states and all outstanding share links.
	states := ttlstore.NewMemoryStore()
	shares := ttlstore.NewMemoryStore()

	// Proactive token refresh loop; stopped during shutdown below
	refresher := gtoken.NewBackgroundRefresher(tokens, repo, cfg.Refresh.Interval, cfg.Refresh.Window, log)
	refresher.Start()

	// Handlers
	authHandler := handler.NewAuthHandler(svc)
	empresaHandler := handler.NewEmpresaHandler(svc)
	googleHandler := handler.NewGoogleHandler(oauth, tokens, svc, provisioner, states, cfg.Server.BaseURL, log)
	calendarHandler := handler.NewCalendarHandler(calClient, tokens)
	shareHandler := handler.NewShareHandler(shares, tokens, calClient, cfg.Share.TokenTTL)
	provisionHandler := handler.NewProvisionHandler(svc, provisioner)
	profileHandler := handler.NewProfileHandler(svc)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/google/callback", googleHandler.Callback)
	e.GET("/agenda/validate", shareHandler.Validate)
	e.GET("/agenda/events", shareHandler.Events)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)

	// Protected API routes
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/empresa", empresaHandler.Get)
	api.PATCH("/empresa", empresaHandler.Update)

	api.GET("/profile", profileHandler.Get)
	api.PATCH("/profile", profileHandler.Update)
	api.POST("/auth/change-password", profileHandler.ChangePassword)

	api.GET("/google/auth", googleHandler.Connect)
	api.GET("/google/status", googleHandler.Status)
	api.POST("/google/refresh", googleHandler.Refresh)
	api.DELETE("/google/disconnect", googleHandler.Disconnect)

	api.GET("/calendar/calendars", calendarHandler.Calendars)
	api.POST("/calendar/calendars", calendarHandler.CreateCalendar)
	api.GET("/calendar/events", calendarHandler.Events)
	api.POST("/calendar/events", calendarHandler.CreateEvent)
	api.PUT("/calendar/events/:id", calendarHandler.UpdateEvent)
	api.DELETE("/calendar/events/:id", calendarHandler.DeleteEvent)

	api.POST("/calendar/share", shareHandler.Create)
	api.DELETE("/calendar/share/:token", shareHandler.Revoke)

	api.POST("/n8n/provision", provisionHandler.Provision)
	api.GET("/n8n/status", provisionHandler.WorkflowStatus)

	// Debug routes are development-only
	if !cfg.IsProduction() {
		debugHandler := handler.NewDebugHandler(cfg)
		e.GET("/debug/env", debugHandler.Env)
	}

	log.Info("Server starting", zap.String("port", cfg.Server.Port))
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server stopped", zap.Error(err))
		}
	}()

	// Block until a termination signal, then drain the refresher and the
	// in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

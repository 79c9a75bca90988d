package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/polyswap/polyswap-api/internal/analytics"
	"github.com/polyswap/polyswap-api/internal/auth"
	"github.com/polyswap/polyswap-api/internal/database"
	"github.com/polyswap/polyswap-api/internal/exchange"
	"github.com/polyswap/polyswap-api/internal/provider/changenow"
	"github.com/polyswap/polyswap-api/internal/provider/stealthex"
	"github.com/polyswap/polyswap-api/internal/settings"
	"github.com/polyswap/polyswap-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the swap API server with graceful shutdown
// support. It wires the provider clients, database, and API routes.
func main() {
	// .env is for development; in production the environment is real
	if err := godotenv.Load(); err != nil {
		zlog.Debug().Msg("no .env file found, using process environment")
	}

	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		zlog.Fatal().Msg("JWT_SECRET is required")
	}
	authService := auth.NewService(jwtSecret, os.Getenv("ADMIN_PASSWORD"))
	authHandlers := auth.NewGinHandlers(authService)

	settingsService := settings.NewService(db)
	settingsHandlers := settings.NewGinHandlers(settingsService)

	exchangeService := exchange.NewService(
		db,
		settingsService,
		changenow.NewClient(os.Getenv("CHANGENOW_API_KEY")),
		stealthex.NewClient(os.Getenv("STEALTHEX_API_KEY")),
	)
	exchangeHandlers := exchange.NewGinHandlers(exchangeService)

	analyticsService := analytics.NewService(db, exchangeService.GetDB(), settingsService, analytics.NewPriceClient())
	analyticsHandlers := analytics.NewGinHandlers(analyticsService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authService, authHandlers, exchangeHandlers, settingsHandlers, analyticsHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers.
// Public routes serve the swap widget; the admin group is protected by
// JWT sessions issued at /admin/login.
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	authHandlers *auth.GinHandlers,
	exchangeHandlers *exchange.GinHandlers,
	settingsHandlers *settings.GinHandlers,
	analyticsHandlers *analytics.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Swap widget routes
		v1.GET("/currencies", exchangeHandlers.CurrenciesHandler())
		v1.GET("/estimate", exchangeHandlers.EstimateHandler())
		v1.GET("/range", exchangeHandlers.RangeHandler())

		orders := v1.Group("/orders")
		{
			orders.POST("", exchangeHandlers.CreateOrderHandler())
			orders.GET("/:id", exchangeHandlers.OrderStatusHandler())
		}

		v1.GET("/settings/commission", settingsHandlers.GetCommissionHandler())
		v1.POST("/track-visit", analyticsHandlers.TrackVisitHandler())

		// Admin routes
		v1.POST("/admin/login", authHandlers.LoginHandler())
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(authService))
		{
			admin.PUT("/commission", settingsHandlers.SetCommissionHandler())
			admin.GET("/transactions", analyticsHandlers.ReportHandler())
			admin.POST("/orders/resync", exchangeHandlers.ResyncHandler())
		}
	}
}

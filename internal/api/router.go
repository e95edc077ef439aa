package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/app"
	iauth "github.com/savorahq/savora/internal/auth"
	"github.com/savorahq/savora/internal/cache"
	"github.com/savorahq/savora/internal/handlers"
	"github.com/savorahq/savora/internal/middleware"
	"github.com/savorahq/savora/internal/realtime"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, hub *realtime.Hub, store cache.Store, rateStore middleware.RateStore) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100
	}
	window := cfg.RateLimit.Window
	if window <= 0 {
		window = time.Minute
	}
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	r.Use(middleware.RateLimit(rateStore, maxRequests, window))

	registerHealthRoutes(r, db)

	authHandler := handlers.NewAuthHandler(db, jwt)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	if err := registerNotificationRoutes(api, db, hub, store); err != nil {
		return nil, err
	}
	if err := registerOrderRoutes(api, db, hub, store); err != nil {
		return nil, err
	}

	// Realtime stream. Token is carried in the query string, so the route
	// sits outside the bearer-auth group.
	if cfg.Realtime.Enabled && hub != nil {
		realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)
		r.GET("/api/realtime/stream", realtimeHandler.Stream)
	}

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

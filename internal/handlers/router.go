package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/studentva/internal/config"
	"github.com/justsurfingit/studentva/internal/metrics"
	"github.com/justsurfingit/studentva/internal/ratelimit"
)

// RouterDeps carries everything NewRouter wires into the engine.
// Limiter and Metrics may be nil.
type RouterDeps struct {
	Config       *config.Config
	Applications *ApplicationHandler
	Health       *HealthHandler
	Limiter      ratelimit.Store
	Metrics      *metrics.Metrics
	StaticDir    string
}

// NewRouter builds the gin engine: middleware chain, /api routes, optional
// metrics endpoint and the SPA fallback.
func NewRouter(d RouterDeps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(RequestID(), AccessLog(), Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api")
	{
		api.GET("/health", d.Health.Health)
		api.POST("/apply",
			ratelimit.Middleware(d.Limiter, ratelimit.Options{
				Limit:    d.Config.RateLimitMax,
				Window:   d.Config.RateLimitWindow,
				OnReject: d.Metrics.ObserveRateLimited,
			}),
			d.Applications.Apply,
		)
	}

	if d.Config.MetricsEnabled && d.Metrics != nil {
		r.GET(d.Config.MetricsPath, gin.WrapH(d.Metrics.Handler()))
	}

	if d.StaticDir == "" {
		slog.Warn("no static directory found, serving API only", "candidates", d.Config.StaticDirs)
	} else {
		slog.Info("serving static files", "dir", d.StaticDir)
	}
	r.NoRoute(SPA(d.StaticDir))
	return r, nil
}

// Package httpapi wires the host API (Gin) to the sync engine, middleware,
// and route handlers. It centralizes cross-cutting concerns: tracing,
// correlation IDs, access logging, panic recovery, compression, metrics,
// idempotent submission, rate limiting, CORS, and security headers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-laundry-sync/docs"
	"github.com/tbourn/go-laundry-sync/internal/config"
	"github.com/tbourn/go-laundry-sync/internal/http/handlers"
	"github.com/tbourn/go-laundry-sync/internal/http/middleware"
	"github.com/tbourn/go-laundry-sync/internal/repo"
)

// maxBodyBytes caps request bodies. Order submissions are the largest payload.
const maxBodyBytes = 1 << 20

// SubmissionLookup adapts the submission-key table to the idempotency
// middleware. A missing or expired key is not an error.
func SubmissionLookup(db *gorm.DB) middleware.SubmissionLookup {
	return func(ctx context.Context, owner, key string, now time.Time) (bool, error) {
		rec, err := repo.GetSubmission(ctx, db, owner, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

// RegisterRoutes attaches all middleware and endpoints to r and mounts the
// host API under cfg.APIBasePath. lookup may be nil, in which case keyed
// submissions are never flagged as replays before reaching the handler.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery (after the logger so panics are logged with the request id)
//  5. Body size limit and gzip
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter, per owner or IP
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, d handlers.Deps, lookup middleware.SubmissionLookup, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOwnerOrIP())
	r.Use(rl.Handler())

	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(d)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Owner order list (cache-first) and user operations
		api.GET("/owners/:owner/orders", h.ListOrders)
		api.POST("/owners/:owner/orders", h.SubmitOrder)
		api.POST("/owners/:owner/orders/refresh", h.RefreshOrders)
		api.PUT("/owners/:owner/orders/:id/status", h.UpdateOrderStatus)
		api.POST("/owners/:owner/orders/:id/advance", h.AdvanceOrder)
		api.POST("/owners/:owner/orders/:id/rating", h.RateOrder)

		// Staff queue
		api.GET("/queue", h.ListQueue)
		api.POST("/queue/status", h.BulkUpdateStatus)

		// Tracking and polling
		api.GET("/tracking/:number", h.GetTracking)
		api.POST("/tracking/:number/notify", h.ToggleNotify)
		api.POST("/tracking/:number/poll", h.StartPolling)
		api.DELETE("/tracking/:number/poll", h.StopPolling)
		api.GET("/polling", h.ListPolling)

		// Session lifecycle
		api.GET("/session", h.GetSession)
		api.POST("/session/login", h.Login)
		api.POST("/session/logout", h.Logout)
		api.POST("/session/activity", h.Activity)
		api.POST("/session/foreground", h.Foreground)
		api.POST("/session/background", h.Background)

		// Notifications and cache maintenance
		api.GET("/notifications", h.DrainNotifications)
		api.DELETE("/cache", h.ClearCache)
	}
}

// corsConfig allows any origin when no allowlist is configured. Credentials
// stay disabled in both cases.
func corsConfig(c config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "ETag", middleware.HeaderReplayed, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		out.AllowAllOrigins = true
	} else {
		out.AllowOrigins = c.AllowedOrigins
	}
	return out
}

// limitBody caps the request body at maxBytes. Reads past the cap fail and
// the binding error surfaces as a 400.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

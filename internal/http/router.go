// Package httpapi wires the Gin transport to the upload reconciler, its
// middleware and route handlers.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Access log (plain or redacting)
//  4. Recovery
//  5. gzip responses
//  6. Body size limit
//  7. Metrics
//  8. Idempotency validator (before the rate limiter so replays bypass it)
//  9. Rate limiter keyed by the auth-pinned owner or client IP
//  10. CORS and security headers
package httpapi

import (
	"context"
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

	_ "github.com/tbourn/go-recruit-uploads/docs"
	"github.com/tbourn/go-recruit-uploads/internal/config"
	"github.com/tbourn/go-recruit-uploads/internal/http/handlers"
	"github.com/tbourn/go-recruit-uploads/internal/http/middleware"
	"github.com/tbourn/go-recruit-uploads/internal/repo"
)

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	// Uploads is the reconciler behind /uploads.
	Uploads handlers.UploadService
	// DB holds the idempotency ledger and, for the sql backend, the
	// attachments table. Nil disables replay and conditional GET.
	DB *gorm.DB
}

var corsAllowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderOwnerID, middleware.HeaderIdempotencyKey,
}

var corsAllowMethods = []string{"GET", "PUT", "DELETE", "OPTIONS"}

// RegisterRoutes attaches middleware, operational endpoints and the
// versioned uploads API to r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())

	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders:     []string{"X-API-Key", "apikey"},
			MaskQueryParams: []string{"ownerId"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	r.Use(middleware.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, ledgerLookup(deps.DB)))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOwnerOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	opts := handlers.Options{
		Ledger:         deps.DB,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	// The hosted backend keeps attachments elsewhere, so the local DB
	// cannot answer the list ETag query.
	if cfg.Store.Backend != config.BackendREST {
		opts.StatsDB = deps.DB
	}
	h := handlers.New(deps.Uploads, opts)

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/uploads", h.ListUploads)
		api.PUT("/uploads", h.PutUploads)
		api.DELETE("/uploads", h.DeleteUpload)
	}
}

// ledgerLookup adapts repo.GetIdempotency to the middleware callback. A nil
// db disables the lookup; query errors count as a miss.
func ledgerLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, ownerID, route, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, ownerID, route, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// corsMiddleware allows every origin when none are configured; otherwise it
// echoes allow-listed origins.
func corsMiddleware(cfg config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     corsAllowMethods,
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    middleware.DefaultExposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		// Also set ACAO when no Origin header is sent (health probes, curl).
		force := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{force, cors.New(base)}
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	}
	base.AllowOrigins = cfg.AllowedOrigins
	return []gin.HandlerFunc{echo, cors.New(base)}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggoFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/debtease/go-debtease-backend/docs"
	"github.com/debtease/go-debtease-backend/internal/config"
	"github.com/debtease/go-debtease-backend/internal/http/handlers"
	"github.com/debtease/go-debtease-backend/internal/http/middleware"
	"github.com/debtease/go-debtease-backend/internal/repo"
	"github.com/debtease/go-debtease-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. The optional notifier is pinged when insight tasks are enqueued so
// an idle worker picks them up before its next poll.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Rate limiter (per user/IP, bypass on idempotent replay)
//  8. CORS and security headers
//
// Session auth and the payment idempotency validator run inside the API
// group, after the session token has been resolved to a user.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, notifier services.TaskNotifier) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: true, // cookie-based sessions need credentials
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggoFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	authSvc := services.NewAuthService(db, cfg.SessionTTL)
	debtSvc := services.NewDebtService(db)
	queueSvc := services.NewQueueService(db, cfg.Queue.MaxAttempts)
	queueSvc.Notifier = notifier
	insightSvc := services.NewInsightService(db, debtSvc, queueSvc, cfg.CacheTTL)
	paySvc := services.NewPaymentService(db, debtSvc)
	planSvc := services.NewPlanService(db)
	notifSvc := services.NewNotificationService(db)
	credSvc := services.NewCredentialService(db, cfg.CredentialSecret, cfg.CredentialTTL)

	h := handlers.New(authSvc, debtSvc, paySvc, planSvc, notifSvc, credSvc, insightSvc)
	h.IdempotencyTTL = cfg.IdempotencyTTL

	sessionAuth := middleware.SessionAuth(middleware.AuthenticatorFunc(
		func(c *gin.Context, token string) (string, error) {
			return authSvc.Authenticate(c.Request.Context(), token)
		}))

	// Payment idempotency: detect replays after auth has resolved the user.
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, uid, debtID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, uid, debtID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Auth (register/login are unauthenticated)
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)

		// Credential verification is public by design: any holder of a token
		// may check it.
		api.POST("/credentials/verify", h.VerifyCredential)

		authed := api.Group("", sessionAuth)
		{
			authed.GET("/auth/me", h.Me)

			// Debts
			authed.POST("/debts", h.CreateDebt)
			authed.GET("/debts", h.ListDebts)
			authed.GET("/debts/:id", h.GetDebt)
			authed.PATCH("/debts/:id", h.UpdateDebt)
			authed.DELETE("/debts/:id", h.DeleteDebt)

			// Payments
			authed.POST("/debts/:id/payments", idem, h.RecordPayment)
			authed.GET("/debts/:id/payments", h.ListDebtPayments)
			authed.GET("/payments", h.ListPayments)
			authed.GET("/payments/:id", h.GetPayment)
			authed.PUT("/payments/:id/status", h.UpdatePaymentStatus)

			// Repayment plans
			authed.POST("/plans", h.CreatePlan)
			authed.GET("/plans", h.ListPlans)
			authed.GET("/plans/:id", h.GetPlan)
			authed.PATCH("/plans/:id", h.UpdatePlan)

			// Notifications
			authed.GET("/notifications", h.ListNotifications)
			authed.PUT("/notifications/:id/read", h.MarkNotificationRead)

			// Credentials
			authed.POST("/credentials", h.IssueCredential)
			authed.GET("/credentials", h.ListCredentials)
			authed.GET("/credentials/:id", h.GetCredential)
			authed.DELETE("/credentials/:id", h.RevokeCredential)

			// AI insights
			authed.GET("/ai/insights", h.GetInsights)
			authed.POST("/ai/insights", h.RegenerateInsights)
			authed.GET("/ai/insights/status", h.InsightsStatus)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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

package handler

import (
	"coin-tip-ledger/internal/adapter/http/middleware"
	"coin-tip-ledger/internal/adapter/metrics"
	"coin-tip-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Registry        ports.CoinRegistry
	Reconcile       ports.ReconcileService
	TokenSvc        ports.TokenService
	RateLimiter     middleware.RateLimitChecker // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	AuditSvc        ports.AuditService  // nil = audit logging disabled
	MetricsGatherer prometheus.Gatherer // nil = no /metrics
	Mode            string              // gin mode, defaults to release
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsGatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.MetricsGatherer)))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	ledgerHandler := NewLedgerHandler(deps.Registry)
	v1.GET("/coins", rl("reads"), ledgerHandler.ListCoins)

	coins := v1.Group("/coins/:coin")
	{
		coins.GET("/users/:user/balance", rl("reads"), ledgerHandler.GetBalance)
		coins.GET("/users/:user/received", rl("reads"), ledgerHandler.GetReceived)
		coins.POST("/users/:user/addresses", rl("addresses"), ledgerHandler.NewAddress)
		coins.POST("/tips", rl("tips"), ledgerHandler.SendTip)
		coins.POST("/withdrawals", rl("withdrawals"), ledgerHandler.Withdraw)
		coins.GET("/addresses/:address/validate", rl("reads"), ledgerHandler.ValidateAddress)
	}

	if deps.Reconcile != nil {
		reconcileHandler := NewReconcileHandler(deps.Registry, deps.Reconcile)
		coins.GET("/withdrawals/unreconciled", rl("reconcile"), reconcileHandler.ListUnreconciled)

		withdrawals := v1.Group("/withdrawals/:id")
		{
			withdrawals.POST("/replay", rl("reconcile"), reconcileHandler.Replay)
			withdrawals.POST("/fail", rl("reconcile"), reconcileHandler.MarkFailed)
		}
	}

	return r
}

package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/infra/config"
	"github.com/David567rs/LoginAna/internal/infra/security"
	"github.com/David567rs/LoginAna/internal/transport/http/handlers"
	"github.com/David567rs/LoginAna/internal/transport/http/middleware"
	"github.com/David567rs/LoginAna/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Auth        *usecase.AuthService
	Tokens      *usecase.TokenService
	JWTManager  *security.JWTManager
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	// Readiness probes keyed by dependency name, e.g. "postgres" or "redis".
	Readiness map[string]func(context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.TraceID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	r.Use(middleware.CORS(cfg.App.CORSOrigins))

	healthOptions := make([]handlers.HealthOption, 0, len(deps.Readiness))
	for name, check := range deps.Readiness {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck(name, check))
	}
	health := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.JWTManager != nil {
		r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.JWTManager).Keys)
	}

	if deps.Auth == nil {
		return r
	}

	limits := limitBuilder{limiter: deps.RateLimiter, cfg: cfg.RateLimit}

	authHandler := handlers.NewAuthHandler(deps.Auth)
	verificationHandler := handlers.NewVerificationHandler(deps.Auth, cfg.Verification.ClientURL, !cfg.App.IsProduction())
	passwordHandler := handlers.NewPasswordHandler(deps.Auth)
	diagnostics := handlers.NewDiagnosticsHandler(deps.Auth)

	auth := r.Group("/auth")
	{
		auth.POST("/register", limits.rule("auth_register", cfg.RateLimit.RegisterMaxAttempts), authHandler.Register)
		auth.POST("/login", limits.rule("auth_login", cfg.RateLimit.LoginMaxAttempts), authHandler.Login)
		auth.POST("/2fa/verify", limits.rule("auth_2fa_verify", cfg.RateLimit.ChallengeMaxAttempts), authHandler.VerifyTwoFactor)

		auth.GET("/verify-email", verificationHandler.VerifyEmail)
		auth.POST("/verify-sms", limits.rule("auth_verify_sms", cfg.RateLimit.ChallengeMaxAttempts), verificationHandler.VerifySMS)
		auth.POST("/resend-email", limits.rule("auth_resend", cfg.RateLimit.ChallengeMaxAttempts), verificationHandler.ResendEmail)
		auth.POST("/resend-sms", limits.rule("auth_resend", cfg.RateLimit.ChallengeMaxAttempts), verificationHandler.ResendSMS)

		password := auth.Group("/password")
		password.Use(limits.rule("auth_password", cfg.RateLimit.PasswordResetMaxAttempts))
		password.POST("/forgot", passwordHandler.Forgot)
		password.POST("/verify", passwordHandler.VerifyCode)
		password.POST("/reset", passwordHandler.Reset)

		auth.GET("/ping", diagnostics.Ping)
		if deps.Tokens != nil {
			auth.GET("/me", middleware.RequireSession(deps.Tokens), authHandler.Me)
		}
		if !cfg.App.IsProduction() {
			auth.GET("/debug-user", diagnostics.DebugUser)
		}
	}

	return r
}

type limitBuilder struct {
	limiter *middleware.RateLimiter
	cfg     config.RateLimitSettings
}

func (b limitBuilder) rule(name string, limit int) gin.HandlerFunc {
	window := b.cfg.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	return b.limiter.Limit(middleware.ClientIPRule(name, limit, window))
}

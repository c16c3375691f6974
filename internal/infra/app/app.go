package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/config"
	"github.com/David567rs/LoginAna/internal/infra/database"
	kafkainfra "github.com/David567rs/LoginAna/internal/infra/kafka"
	"github.com/David567rs/LoginAna/internal/infra/notify"
	redisinfra "github.com/David567rs/LoginAna/internal/infra/redis"
	"github.com/David567rs/LoginAna/internal/infra/security"
	"github.com/David567rs/LoginAna/internal/infra/telemetry"
	memoryrepo "github.com/David567rs/LoginAna/internal/repository/memory"
	postgresrepo "github.com/David567rs/LoginAna/internal/repository/postgres"
	redisrepo "github.com/David567rs/LoginAna/internal/repository/redis"
	transportgrpc "github.com/David567rs/LoginAna/internal/transport/grpc"
	grpcinterceptors "github.com/David567rs/LoginAna/internal/transport/grpc/interceptors"
	"github.com/David567rs/LoginAna/internal/transport/http/middleware"
	"github.com/David567rs/LoginAna/internal/transport/http/routes"
	"github.com/David567rs/LoginAna/internal/usecase"
)

const readinessInterval = 15 * time.Second

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	grpcServer *transportgrpc.Server
	grpcAddr   string
	janitor    *memoryrepo.ChallengeStore
	closers    []func(context.Context) error
}

// New wires every component from cfg. Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (_ *Application, err error) {
	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, tracer.Shutdown)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := telemetry.NewEngineMetrics(registry)

	readiness := make(map[string]func(context.Context) error)

	users, err := a.userRepository(ctx, readiness)
	if err != nil {
		return nil, err
	}

	var redisClient *redisinfra.Client
	if cfg.Storage.Challenges == config.StorageRedis {
		redisClient, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
		addProbe(readiness, "redis", redisClient)
	}

	var (
		challengeStore port.ChallengeStore
		rateLimitStore port.RateLimitStore
	)
	if redisClient != nil {
		challengeStore = redisrepo.NewChallengeStore(redisClient.Client(), cfg.Redis.ChallengePrefix)
		rateLimitStore = redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.RateLimitPrefix,
			TTL:       2 * max(cfg.RateLimit.WindowDuration, time.Minute),
		})
	} else {
		memoryStore := memoryrepo.NewChallengeStore()
		a.janitor = memoryStore
		challengeStore = memoryStore
		rateLimitStore = memoryrepo.NewRateLimitStore()
	}

	events, err := a.eventPublisher()
	if err != nil {
		return nil, err
	}

	jwtManager, err := newJWTManager(cfg.JWT, log)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init argon2: %w", err)
	}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:        cfg.Password.MinLength,
		MinStrengthScore: cfg.Password.MinStrengthScore,
	})

	challenges := usecase.NewChallengeEngine(challengeStore, log,
		usecase.WithChallengeEvents(events),
		usecase.WithChallengeMetrics(engineMetrics),
		usecase.WithDefaultChallengeTTL(cfg.Challenge.LoginTTL),
		usecase.WithChallengeRetention(cfg.Challenge.Retention),
	)
	verification := usecase.NewVerificationService(users, events, log).
		WithTTLs(cfg.Verification.EmailTTL, cfg.Verification.PhoneTTL)
	tokens := usecase.NewTokenService(jwtManager, cfg.JWT.SessionTTL, cfg.JWT.ResetTTL)

	authService, err := usecase.NewAuthService(usecase.AuthDependencies{
		Users:        users,
		Hasher:       hasher,
		Policy:       policy,
		Challenges:   challenges,
		Verification: verification,
		Tokens:       tokens,
		Email:        notify.BuildEmailChain(cfg.Notify, log),
		SMS:          notify.BuildSMSChain(cfg.Notify, log),
		Events:       events,
		Metrics:      engineMetrics,
	}, usecase.AuthSettings{
		LoginChallengeTTL: cfg.Challenge.LoginTTL,
		ResetChallengeTTL: cfg.Challenge.ResetTTL,
		DeliveryTimeout:   cfg.Notify.DeliveryTimeout,
		ClientURL:         cfg.Verification.ClientURL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Auth:        authService,
		Tokens:      tokens,
		JWTManager:  jwtManager,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		Gatherer:    registry,
		Readiness:   readiness,
	})

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
		if err != nil {
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Logger:  log,
			Metrics: grpcMetrics,
			Tracing: grpcinterceptors.NewServerTracing(grpcinterceptors.TracingOptions{
				TracerProvider: tracer.TracerProvider(),
			}),
			Probes: readiness,
		})
		a.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	return a, nil
}

func (a *Application) userRepository(ctx context.Context, readiness map[string]func(context.Context) error) (port.UserRepository, error) {
	if a.cfg.Storage.Users != config.StoragePostgres {
		a.logger.Warn("users are kept in memory and lost on restart")
		return memoryrepo.NewUserRepository(), nil
	}

	if a.cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(a.cfg.Postgres.DSN(), "up"); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.logger.Info("database migrations applied")
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	addProbe(readiness, "postgres", pool)

	return postgresrepo.NewUserRepository(pool.Pool), nil
}

func addProbe(readiness map[string]func(context.Context) error, name string, dep port.HealthChecker) {
	readiness[name] = dep.HealthCheck
}

func (a *Application) eventPublisher() (port.EventPublisher, error) {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, domain events go to the log")
		return kafkainfra.NewLogPublisher(a.logger), nil
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		if a.cfg.App.IsProduction() {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		a.logger.Warn("kafka unavailable, domain events go to the log", zap.Error(err))
		return kafkainfra.NewLogPublisher(a.logger), nil
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })

	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger), nil
}

func newJWTManager(cfg config.JWTSettings, log *zap.Logger) (*security.JWTManager, error) {
	if strings.EqualFold(cfg.SigningMethod, "RS256") {
		provider, err := security.NewFileKeyProvider(cfg.KeyDirectory)
		if err != nil {
			return nil, fmt.Errorf("init key provider: %w", err)
		}
		return security.NewRSAManager(provider, cfg.Issuer)
	}

	secret := cfg.Secret
	if strings.TrimSpace(secret) == "" {
		// Production refuses an empty secret during config validation.
		generated, err := security.GenerateAlphanumericToken(48)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		log.Warn("jwt.secret not set, using an ephemeral secret; sessions will not survive a restart")
		secret = generated
	}
	return security.NewHMACManager([]byte(secret), cfg.Issuer)
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	if a.janitor != nil {
		a.janitor.StartJanitor(ctx, a.cfg.Challenge.JanitorInterval, a.logger)
	}

	errCh := make(chan error, 2)

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		go a.grpcServer.WatchReadiness(ctx, readinessInterval)
		go func() {
			a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("users_storage", a.cfg.Storage.Users),
		zap.String("challenge_storage", a.cfg.Storage.Challenges),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}
	a.logger.Info("auth API stopped")
	return runErr
}

// close releases resources in reverse order of acquisition.
func (a *Application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("release resource", zap.Error(err))
		}
	}
	a.closers = nil
}

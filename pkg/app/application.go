package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/backoff"
	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/internal/middleware"
	"github.com/osvaldoandrade/budgetauth/internal/providers"
	"github.com/osvaldoandrade/budgetauth/internal/repository"
	"github.com/osvaldoandrade/budgetauth/internal/services"
	"github.com/osvaldoandrade/budgetauth/internal/tracing"
	"github.com/osvaldoandrade/budgetauth/pkg/config"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
	_ "github.com/osvaldoandrade/budgetauth/pkg/persistence/memory"   // Register in-memory directory (dev/tests)
	_ "github.com/osvaldoandrade/budgetauth/pkg/persistence/postgres" // Register postgres directory
	_ "github.com/osvaldoandrade/budgetauth/pkg/persistence/redis"    // Register redis directory
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

type Application struct {
	Config   *config.Config
	Engine   *gin.Engine
	Logger   *slog.Logger
	LogLevel *slog.LevelVar

	Codec        *token.Codec
	Directory    persistence.Directory
	Revocations  services.RevocationService
	Builder      services.AuthContextService
	Sessions     services.SessionService
	Invitations  services.InvitationService
	Verification services.VerificationService

	// Connector is nil when revocations are held in memory.
	Connector       *providers.RedisConnector
	TracingShutdown func(context.Context) error

	kv        repository.KV
	now       func() time.Time
	logOutput io.Writer
	cleanup   services.RevocationCleanupService
	cancel    context.CancelFunc
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithDirectory replaces the configured directory provider.
func WithDirectory(dir persistence.Directory) ApplicationOption {
	return func(app *Application) error {
		app.Directory = dir
		return nil
	}
}

// WithKV replaces the revocation store backend.
func WithKV(kv repository.KV) ApplicationOption {
	return func(app *Application) error {
		app.kv = kv
		return nil
	}
}

func WithClock(now func() time.Time) ApplicationOption {
	return func(app *Application) error {
		if now == nil {
			return errors.New("nil clock")
		}
		app.now = now
		return nil
	}
}

func WithLogOutput(w io.Writer) ApplicationOption {
	return func(app *Application) error {
		app.logOutput = w
		return nil
	}
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "budgetauth", "env", cfg.Env), level
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	app := &Application{Config: cfg, now: time.Now, logOutput: os.Stdout}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	logger, level := newLogger(cfg, app.logOutput)
	slog.SetDefault(logger)
	app.Logger, app.LogLevel = logger, level

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	codec, err := token.NewCodec(token.Config{
		AccessSecret:         cfg.JWTAccessSecret,
		RefreshSecret:        cfg.JWTRefreshSecret,
		AccessTTL:            cfg.AccessTokenTTL,
		RefreshTTL:           cfg.RefreshTokenTTL,
		InvitationTTL:        cfg.InvitationTokenTTL,
		EmailVerificationTTL: cfg.EmailVerificationTokenTTL,
		PasswordResetTTL:     cfg.PasswordResetTokenTTL,
	}, token.WithClock(app.now), token.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	app.Codec = codec

	if app.kv == nil {
		if cfg.UsesMemoryStore() {
			logger.Warn("revocations held in process memory; not shared across instances")
			app.kv = repository.NewMemoryKV(app.now)
		} else {
			connector, err := providers.NewRedisConnector(providers.ConnectorConfig{
				URL:                cfg.RedisURL,
				ConnectTimeout:     time.Duration(cfg.RedisConnectTimeoutSeconds) * time.Second,
				MaxConnectAttempts: cfg.RedisMaxConnectAttempts,
				Backoff: backoff.Policy{
					Strategy: backoff.ParseStrategy(cfg.RedisBackoffPolicy),
					Base:     time.Duration(cfg.RedisBackoffBaseMillis) * time.Millisecond,
					Max:      time.Duration(cfg.RedisBackoffMaxMillis) * time.Millisecond,
				},
			}, logger)
			if err != nil {
				return nil, err
			}
			app.Connector = connector
			app.kv = repository.NewRedisKV(connector)
		}
	}

	if app.Directory == nil {
		pc, err := cfg.Directory.Provider()
		if err != nil {
			return nil, err
		}
		dir, err := persistence.NewDirectory(pc, persistence.PluginConfig{Logger: logger})
		if err != nil {
			return nil, err
		}
		app.Directory = dir
	}

	checkTimeout := time.Duration(cfg.RevocationCheckTimeoutMillis) * time.Millisecond
	app.Revocations = services.NewRevocationService(app.kv, codec, logger, app.now, checkTimeout)
	app.Builder = services.NewAuthContextService(app.Revocations, codec, app.Directory, logger)
	app.Sessions = services.NewSessionService(codec, app.Revocations, app.Directory, logger)
	app.Invitations = services.NewInvitationService(codec, app.Revocations, app.Directory, logger)
	app.Verification = services.NewVerificationService(codec, app.Revocations, app.Directory, logger)
	app.cleanup = services.NewRevocationCleanupService(app.Revocations, logger, cfg.RevocationCleanupIntervalSeconds)

	metrics.RegisterRevocationCollector(app.Revocations)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.AuthContextMiddleware(app.Builder),
	)
	app.Engine = engine

	return app, nil
}

// Start connects the revocation store and launches background work. A store
// that refuses or times out is fatal: the service must not come up unable to
// enforce revocations. Start is a no-op after the first successful call.
func (app *Application) Start(ctx context.Context) error {
	if app.cancel != nil {
		return nil
	}
	if app.Connector != nil {
		if _, err := app.Connector.Client(ctx); err != nil {
			return fmt.Errorf("connect revocation store: %w", err)
		}
	}
	ctx, app.cancel = context.WithCancel(ctx)
	go app.cleanup.Start(ctx)
	return nil
}

// Close stops background work and releases the store connections.
func (app *Application) Close(ctx context.Context) error {
	if app.cancel != nil {
		app.cancel()
	}
	var errs []error
	if app.Connector != nil {
		errs = append(errs, app.Connector.Close())
	}
	if app.Directory != nil {
		errs = append(errs, app.Directory.Close())
	}
	if app.TracingShutdown != nil {
		errs = append(errs, app.TracingShutdown(ctx))
	}
	return errors.Join(errs...)
}

func (app *Application) pingStore(ctx context.Context) error {
	return app.kv.Ping(ctx)
}

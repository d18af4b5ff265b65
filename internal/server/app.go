// Package server initializes and runs the main application server.
// It opens the credential store, loads the signing keys, builds the rate
// limiter and metrics, and serves the HTTP API until a stop signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/cryptox"
	"github.com/dmitrijs2005/gophreview/internal/logging"
	"github.com/dmitrijs2005/gophreview/internal/server/auth"
	"github.com/dmitrijs2005/gophreview/internal/server/config"
	"github.com/dmitrijs2005/gophreview/internal/server/httpapi"
	"github.com/dmitrijs2005/gophreview/internal/server/metrics"
	"github.com/dmitrijs2005/gophreview/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophreview/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophreview/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName      = "gophreview"
	limiterIdleTTL   = 10 * time.Minute
	redisPingTimeout = 3 * time.Second
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	store        *repomanager.Manager
	metrics      *metrics.Metrics
	limiter      ratelimit.Limiter
	closeLimiter func() error
	// sessions is nil when the signing keys could not be loaded.
	sessions *services.SessionService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel, serviceName)

	store, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	logger.Info(ctx, "credential store ready", "backend", store.Backend())

	app := &App{
		config:  c,
		logger:  logger,
		store:   store,
		metrics: metrics.New(),
	}

	app.limiter, app.closeLimiter = buildLimiter(ctx, c, logger)

	keys, err := loadKeys(ctx, c)
	if err != nil {
		logger.Error(ctx, "signing keys unavailable, authentication disabled", "error", err)
		return app, nil
	}

	hasher := cryptox.NewPasswordHasher(cryptox.DefaultPasswordParams(),
		cryptox.WithDurationObserver(app.metrics.ObservePasswordHash))
	app.sessions = services.NewSessionService(
		store.Users(),
		hasher,
		auth.NewCodec(keys),
		c.AccessTokenValidityDuration,
		c.RefreshTokenValidityDuration,
		services.WithLogger(logger.With("module", "sessions")),
		services.WithRecorder(app.metrics),
	)

	return app, nil
}

func loadKeys(ctx context.Context, c *config.Config) (*auth.KeyPair, error) {
	var getter auth.ObjectGetter
	if auth.IsS3Location(c.PrivateKeyFile) || auth.IsS3Location(c.PublicKeyFile) {
		client, err := auth.NewS3Client(ctx, auth.S3Settings{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		getter = client
	}
	return auth.LoadKeyPair(ctx, c.PrivateKeyFile, c.PublicKeyFile, getter)
}

// buildLimiter prefers redis so that every instance shares one budget, and
// falls back to process memory when redis is not configured or unreachable.
func buildLimiter(ctx context.Context, c *config.Config, logger logging.Logger) (ratelimit.Limiter, func() error) {
	memory := func() (ratelimit.Limiter, func() error) {
		return ratelimit.NewMemory(c.SignInRatePerMinute, c.SignInBurst, limiterIdleTTL), func() error { return nil }
	}

	if c.RedisAddr == "" {
		return memory()
	}

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn(ctx, "redis rate limiter unavailable, falling back to memory", "error", err)
		return memory()
	}

	return ratelimit.NewRedis(client, c.SignInRatePerMinute, time.Minute, ""), client.Close
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Router builds the HTTP handler for the current state of the app.
func (app *App) Router() *gin.Engine {
	opts := httpapi.Options{
		Logger:      app.logger,
		Limiter:     app.limiter,
		Metrics:     app.metrics,
		MetricsPath: app.config.MetricsPath,
		Ready:       app.store.Ping,
	}
	if app.sessions != nil {
		opts.Sessions = app.sessions
	}
	return httpapi.NewRouter(opts)
}

// Run serves until ctx is cancelled or a stop signal arrives, then releases
// the store and the limiter.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	srv := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.Router(), app.config.ShutdownTimeout)
	runErr := srv.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "http server stopped", "error", runErr)
	}

	if err := app.closeLimiter(); err != nil {
		app.logger.Warn(ctx, "closing rate limiter", "error", err)
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := app.store.Close(closeCtx); err != nil {
		app.logger.Warn(ctx, "closing credential store", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}

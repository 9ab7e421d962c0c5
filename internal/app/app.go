package app

import (
	"context"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/httpserver"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/redis"
	"github.com/MrSnakeDoc/marks/internal/session"
	"github.com/MrSnakeDoc/marks/internal/store/memory"
	"github.com/MrSnakeDoc/marks/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/marks/internal/store/redis"
	"github.com/MrSnakeDoc/marks/internal/utils"
	"github.com/MrSnakeDoc/marks/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	sessions    *redisstore.SessionStore
	storeCloser io.Closer
	registry    *session.Registry
}

// New connects every backend and builds the server. Startup order is
// Redis, then the store, then HTTP.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.Connect(ctx, redisOptions(cfg), loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store, storeCloser, err := OpenStore(ctx, cfg, loggerClient)
	if err != nil {
		utils.CloseLogged(redisClient, "redis", loggerClient)
		return nil, err
	}

	service := bookmarks.NewService(store, loggerClient)
	registry := session.NewRegistry(service, cfg.SessionIdleTTL, loggerClient)
	sessions := redisstore.NewSessionStore(redisClient, cfg.SessionTTL)

	info := version.Get()
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      info.Version,
		Commit:       info.Commit,
		BuildDate:    info.BuildDate,
		GoVersion:    info.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RateBurst:    cfg.RateBurst,
		RatePerMin:   cfg.RatePerMin,

		CookieName:        cfg.CookieName,
		CookieSecure:      cfg.CookieSecure,
		SessionTTL:        cfg.SessionTTL,
		PostLoginRedirect: cfg.PostLoginRedirect,

		Registry:    registry,
		Sessions:    sessions,
		Store:       store,
		StoreDriver: cfg.StoreDriver,
	}

	if cfg.GoogleEnabled() {
		d.Google = auth.NewGoogle(auth.GoogleOptions{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		loggerClient.Info("google login enabled", logger.String("redirect_url", cfg.GoogleRedirectURL))
	} else {
		loggerClient.Info("google login not configured, /auth/login disabled")
	}

	if cfg.BearerEnabled() {
		d.Tokens = auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		loggerClient.Info("bearer tokens enabled")
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		sessions:    sessions,
		storeCloser: storeCloser,
		registry:    registry,
	}, nil
}

// OpenStore opens the configured bookmark store. The closer is nil for the
// in-memory store.
func OpenStore(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (bookmarks.Store, io.Closer, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		loggerClient.Warn("using the in-memory store, bookmarks are lost on restart")
		return memory.NewStore(), nil, nil
	}

	pg, err := postgres.Open(cfg.DatabaseURL, postgres.DefaultOptions(), loggerClient)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("postgres unavailable: %w", err)
	}
	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		loggerClient.Info("bookmarks table migrated")
	}

	loggerClient.Info("postgres store ready")
	return pg, pg, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting Marks v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.Get().String())

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Controllers hold Pub/Sub subscriptions, close them before Redis
	a.registry.Close()
	utils.CloseLogged(a.sessions, "session events", a.logger)
	if a.storeCloser != nil {
		utils.CloseLogged(a.storeCloser, "postgres", a.logger)
	}
	utils.CloseLogged(a.redisClient, "redis", a.logger)

	if runErr == nil {
		a.logger.Info("✅ Marks stopped cleanly")
	}
	return runErr
}

func redisOptions(cfg *config.Config) redis.ConnectOptions {
	return redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		TLS:            cfg.RedisTLS,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}

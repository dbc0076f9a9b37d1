package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/httpserver"
	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/logger"
	"github.com/satchelhq/satchel/internal/notify"
	"github.com/satchelhq/satchel/internal/redis"
	"github.com/satchelhq/satchel/internal/store/sqlite"
	"github.com/satchelhq/satchel/internal/version"
)

// providerName identifies the configured OAuth provider in user rows.
const providerName = "github"

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       *sqlite.Store
	redisClient *goredis.Client
	bridge      *notify.Bridge
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDialTimeout,
		ReadTimeout:    cfg.RedisReadTimeout,
		WriteTimeout:   cfg.RedisWriteTimeout,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		loggerClient.Errorf("Failed to open database at %s: %v", cfg.DBPath, err)
		os.Exit(1)
	}
	loggerClient.Info("database ready", logger.String("path", cfg.DBPath))

	tokens := auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.AccessTTL)
	sessions := auth.NewStore(redisClient, cfg.SessionTTL)
	provider := auth.NewProvider(auth.ProviderOptions{
		Name:         providerName,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		AuthURL:      cfg.OAuthAuthURL,
		TokenURL:     cfg.OAuthTokenURL,
		UserInfoURL:  cfg.OAuthUserInfoURL,
		RedirectURL:  cfg.PublicURL + "/auth/callback",
		Scopes:       cfg.OAuthScopes,
	})

	hub := notify.NewHub(loggerClient.Named("hub"))
	bridge := notify.NewBridge(redisClient, hub, loggerClient.Named("bridge"))

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		Store:             store,
		RedisClient:       redisClient,
		Tokens:            tokens,
		Sessions:          sessions,
		Provider:          provider,
		Hub:               hub,
		Publisher:         bridge,
		PublicURL:         cfg.PublicURL,
		AuthRateBurst:     cfg.AuthRateBurst,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		store:       store,
		redisClient: redisClient,
		bridge:      bridge,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting satcheld v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("satcheld %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the event bridge so changes made on other instances reach
	// sessions held here.
	if err := a.bridge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bridge: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.bridge.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ satcheld stopped cleanly")
	return nil
}

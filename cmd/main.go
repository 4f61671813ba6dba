package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/cache"
	"github.com/smartcafe/storefront/internal/catalog"
	"github.com/smartcafe/storefront/internal/config"
	h "github.com/smartcafe/storefront/internal/http"
	"github.com/smartcafe/storefront/internal/logger"
	"github.com/smartcafe/storefront/internal/order"
	"github.com/smartcafe/storefront/internal/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("CAFE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "storefront"})

	client := backend.NewClient(backend.Options{
		BaseURL:                 cfg.Backend.BaseURL,
		Timeout:                 cfg.Backend.Timeout,
		BreakerMaxRequests:      cfg.Backend.Breaker.MaxRequests,
		BreakerInterval:         cfg.Backend.Breaker.Interval,
		BreakerTimeout:          cfg.Backend.Breaker.Timeout,
		BreakerFailureThreshold: cfg.Backend.Breaker.FailureThreshold,
	}, log)

	ctx := context.Background()
	carts, sessions, closeStorage, err := openStorage(ctx, cfg.Storage, cfg.Session.TTL, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage setup failed")
	}
	defer closeStorage()

	handler, err := h.NewRouter(h.RouterConfig{
		CookieName:         cfg.Session.CookieName,
		CookieSecure:       cfg.Session.Secure,
		CookieTTL:          cfg.Session.TTL,
		RequestTimeout:     cfg.Server.RequestTimeout,
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
	}, h.Deps{
		Log:      log,
		Catalog:  catalog.New(client, log),
		Carts:    carts,
		Orders:   order.NewService(client, log),
		Boards:   order.NewBoards(),
		Sessions: session.NewManager(sessions, client, log).WithExpirySkew(cfg.Session.ExpirySkew),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("router setup failed")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("backend", cfg.Backend.BaseURL).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

// openStorage builds the cart cache and session storage for the configured
// driver. The returned func releases whatever was opened.
func openStorage(ctx context.Context, cfg config.StorageConfig, sessionTTL time.Duration, log zerolog.Logger) (cache.CartCache, session.Storage, func(), error) {
	switch cfg.Driver {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis ping succeeded")
		return cache.NewRedisCache(redisClient, cfg.CartTTL),
			session.NewRedisStorage(redisClient, sessionTTL),
			func() { redisClient.Close() },
			nil

	case "sqlite":
		store, err := session.NewSQLiteStorage(cfg.SQLitePath, sessionTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		purgeCtx, stopPurge := context.WithCancel(ctx)
		go session.NewPurger(store, cfg.PurgeInterval, log).Run(purgeCtx)
		log.Info().Str("path", cfg.SQLitePath).Msg("sessions stored in sqlite, carts in memory")
		return cache.NewMemoryCache(), store, func() {
			stopPurge()
			store.Close()
		}, nil

	default:
		log.Warn().Msg("memory storage: carts and sessions are lost on restart")
		return cache.NewMemoryCache(), session.NewMemoryStorage(), func() {}, nil
	}
}

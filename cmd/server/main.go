package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"transcriptcleaner/internal/app"
	"transcriptcleaner/internal/config"
	"transcriptcleaner/internal/server"
	"transcriptcleaner/internal/userlock"
	"transcriptcleaner/internal/util"
	"transcriptcleaner/pkg/ai"
	"transcriptcleaner/pkg/storage"
	"transcriptcleaner/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	defaultLimit, err := decimal.NewFromString(cfg.DefaultUsageLimit)
	if err != nil {
		log.Fatalf("failed to parse default usage limit: %v", err)
	}

	util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	sessions, err := store.NewJWTSessionStore(cfg.SessionSecret, sessionTTL, store.NewRedisTokenRevoker(rdb))
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}
	locker, err := userlock.NewLocker(rdb, 30*time.Second)
	if err != nil {
		log.Fatalf("failed to init user locker: %v", err)
	}

	var files storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		files, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	} else {
		slog.Warn("minio endpoint not configured, raw uploads are kept in memory only")
		files = storage.NewMemoryObjectStore()
	}

	appCore, err := app.New(app.Config{
		Store:             dataStore,
		Sessions:          sessions,
		Files:             files,
		Corrector:         ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey),
		Locker:            locker,
		DefaultUsageLimit: defaultLimit,
		DefaultModel:      cfg.DefaultModel,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                       appCore,
		Redis:                     rdb,
		AuthRateLimitPerMinute:    cfg.AuthRateLimitPerMinute,
		ProcessRateLimitPerMinute: cfg.ProcessRateLimitPerMinute,
		TrustedProxyCIDRs:         cfg.TrustedProxyCIDRs,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
}

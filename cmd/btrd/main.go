package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/TsubakiDev/btr/api/httpapi"
	"github.com/TsubakiDev/btr/internal/captcha"
	"github.com/TsubakiDev/btr/internal/config"
	"github.com/TsubakiDev/btr/internal/executor"
	"github.com/TsubakiDev/btr/internal/logging"
	"github.com/TsubakiDev/btr/internal/manager"
	"github.com/TsubakiDev/btr/internal/observability"
	"github.com/TsubakiDev/btr/internal/registry"
	"github.com/TsubakiDev/btr/internal/session"
	"github.com/TsubakiDev/btr/internal/trade"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	observability.RegisterMetrics()

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.OTelConfig{
		ServiceName: firstNonEmpty(cfg.OTELServiceName, "btrd"),
		Endpoint:    cfg.OTELExporterOTLPEndpoint,
		Env:         cfg.Env,
	})
	if err != nil {
		logger.Fatal("otel init failed", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(cfg.RegistryCapacity, cfg.RegistryRetention)
	tradeClient := trade.NewHTTPClient(cfg.TradeBaseURL, cfg.TradeTimeout)

	mgr := manager.New(ctx, reg, tradeClient, logger, executor.Options{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		Deadline:    cfg.GrabDeadline,
	})

	pushCfg, err := config.LoadPush(cfg.PushConfigPath)
	if err != nil {
		logger.Fatal("push config load failed", zap.Error(err))
	}
	mgr.SetPushConfig(pushCfg)
	go func() {
		if err := config.WatchPush(ctx, cfg.PushConfigPath, logger, mgr.SetPushConfig); err != nil && ctx.Err() == nil {
			logger.Warn("push config watcher stopped", zap.Error(err))
		}
	}()

	go mgr.RunSweeper(ctx, time.Minute)

	sessions := map[int64]*session.Handle{}
	if cfg.AccountUID != 0 {
		sessions[cfg.AccountUID] = session.NewHandle(cfg.AccountUID, session.Credentials{
			Cookie:    cfg.AccountCookie,
			UserAgent: cfg.AccountUserAgent,
		}, nil)
		logger.Info("account session registered", zap.Int64("uid", cfg.AccountUID))
	}

	server := httpapi.NewServer(httpapi.Config{Port: cfg.HTTPPort}, logger, mgr, sessions, captcha.Unattended())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	mgr.Wait()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

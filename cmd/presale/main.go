// Package main запускает HTTP-сервер пресейла PierogiCoin.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pierogicoin/presale-service/internal/chain"
	"github.com/pierogicoin/presale-service/internal/config"
	"github.com/pierogicoin/presale-service/internal/handler"
	"github.com/pierogicoin/presale-service/internal/middleware"
	"github.com/pierogicoin/presale-service/internal/monitor"
	"github.com/pierogicoin/presale-service/internal/pricing"
	"github.com/pierogicoin/presale-service/internal/rates"
	"github.com/pierogicoin/presale-service/internal/repository"
	"github.com/pierogicoin/presale-service/internal/service"
	"github.com/pierogicoin/presale-service/internal/worker"
)

func main() {
	// .env опционален: в проде конфигурация приходит из окружения.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	chainClient, err := chain.New(cfg.SolanaRPCURL, cfg.TokenMint, cfg.TreasuryPrivateKey, logger)
	if err != nil {
		sugar.Fatalw("chain client initialization error", "error", err.Error())
	}

	rateSource := rates.NewClient(cfg.PriceFeedURL, cfg.PriceFeedAPIKey, rates.NewCache(rates.DefaultTTL))

	var registrar monitor.Registrar = monitor.Nop{}
	if cfg.MonitorWebhookURL != "" {
		registrar = monitor.NewClient(cfg.MonitorWebhookURL, cfg.MonitorWebhookAPIKey)
	}

	svc, err := service.NewService(repo, rateSource, chainClient, registrar,
		pricing.DefaultStages, cfg.TreasuryAddress, cfg.TokenDecimals, logger)
	if err != nil {
		sugar.Fatalw("service initialization error", "error", err.Error())
	}
	defer svc.Close()

	w := worker.NewWorker(repo, chainClient, logger)

	webhookAuth := middleware.NewBearerAuth(cfg.WebhookSecret)
	workerAuth := middleware.NewBearerAuth(cfg.WorkerSecret)
	h := handler.NewHandler(svc, w, logger, webhookAuth, workerAuth)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting presale server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

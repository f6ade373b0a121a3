// Package worker реализует пакетную рассылку токенов по очереди доставки.
// Воркер не планирует себя сам: каждый прогон запускается внешним триггером.
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/pierogicoin/presale-service/internal/chain"
	"github.com/pierogicoin/presale-service/internal/model"
)

const (
	defaultBatchSize   = 20
	defaultMaxAttempts = 4
	defaultBackoffBase = 500 * time.Millisecond
	backoffJitterMax   = 250 * time.Millisecond
)

// Repository описывает операции очереди доставки, используемые воркером.
type Repository interface {
	GetJobsForDelivery(ctx context.Context, limit int) ([]model.DeliveryJob, error)
	MarkJobSending(ctx context.Context, jobID int64) error
	MarkJobSent(ctx context.Context, jobID int64, purchaseID, signature string) error
	MarkJobFailed(ctx context.Context, jobID int64, lastError string) error
}

// TokenSender описывает отправку токенов в сеть.
type TokenSender interface {
	EnsureSenderAccount(ctx context.Context) error
	SendTokens(ctx context.Context, recipient string, amountSmallest int64) (string, error)
}

// Worker обрабатывает очередь доставки токенов ограниченными пачками.
type Worker struct {
	repo   Repository
	sender TokenSender
	logger *zap.Logger

	batchSize   int
	maxAttempts int
	backoffBase time.Duration
}

// NewWorker создаёт воркер рассылки с параметрами по умолчанию:
// до 20 заданий за прогон, до 4 попыток отправки на задание.
func NewWorker(repo Repository, sender TokenSender, logger *zap.Logger) *Worker {
	return &Worker{
		repo:        repo,
		sender:      sender,
		logger:      logger,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
}

// RunBatch обрабатывает одну пачку заданий. Ошибка отдельного задания не
// прерывает пачку: итог возвращается сводкой processed/ok/fail.
func (w *Worker) RunBatch(ctx context.Context) (model.BatchSummary, error) {
	var summary model.BatchSummary

	// Токен-аккаунт отправителя разрешается один раз на прогон.
	if err := w.sender.EnsureSenderAccount(ctx); err != nil {
		return summary, fmt.Errorf("ensure sender account: %w", err)
	}

	jobs, err := w.repo.GetJobsForDelivery(ctx, w.batchSize)
	if err != nil {
		return summary, fmt.Errorf("fetch delivery jobs: %w", err)
	}

	for _, job := range jobs {
		summary.Processed++

		if err := w.deliver(ctx, job); err != nil {
			summary.Fail++
			w.logger.Warn("token delivery failed",
				zap.Int64("job", job.ID),
				zap.String("purchase", job.PurchaseID),
				zap.Error(err))

			if markErr := w.repo.MarkJobFailed(ctx, job.ID, err.Error()); markErr != nil {
				w.logger.Error("mark job failed error", zap.Int64("job", job.ID), zap.Error(markErr))
			}
			continue
		}

		summary.OK++
	}

	w.logger.Info("distribution batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("ok", summary.OK),
		zap.Int("fail", summary.Fail))

	return summary, nil
}

func (w *Worker) deliver(ctx context.Context, job model.DeliveryJob) error {
	if err := w.repo.MarkJobSending(ctx, job.ID); err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}

	var signature string
	err := retry.Do(ctx, w.retryBackoff(), func(ctx context.Context) error {
		sig, err := w.sender.SendTokens(ctx, job.Recipient, job.AmountSmallest)
		if err != nil {
			// Повторяем только известные временные сбои сети.
			if chain.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		signature = sig
		return nil
	})
	if err != nil {
		return fmt.Errorf("send tokens: %w", err)
	}

	if err := w.repo.MarkJobSent(ctx, job.ID, job.PurchaseID, signature); err != nil {
		// Токены уже ушли в сеть — расхождение статуса требует вмешательства оператора.
		return fmt.Errorf("tokens sent as %s but status update failed: %w", signature, err)
	}

	w.logger.Info("tokens delivered",
		zap.Int64("job", job.ID),
		zap.String("purchase", job.PurchaseID),
		zap.String("signature", signature))

	return nil
}

// retryBackoff строит линейный бэкофф base*attempt со случайным джиттером,
// чтобы ретраи пачки не били в RPC-узел синхронно.
func (w *Worker) retryBackoff() retry.Backoff {
	attempt := 0
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		jitter := time.Duration(rand.Int63n(int64(backoffJitterMax)))
		return w.backoffBase*time.Duration(attempt) + jitter, false
	})
	return retry.WithMaxRetries(uint64(w.maxAttempts-1), b)
}

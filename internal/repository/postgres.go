// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pierogicoin/presale-service/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrPurchaseExists возвращается при попытке создать покупку с уже существующим идентификатором.
var (
	ErrPurchaseExists = errors.New("purchase already exists")
	// ErrPurchaseNotFound возвращается, если покупка не найдена.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrPurchaseTerminal возвращается при попытке изменить покупку в терминальном статусе.
	ErrPurchaseTerminal = errors.New("purchase is in terminal status")
	// ErrJobNotFound возвращается, если задание на отправку токенов не найдено.
	ErrJobNotFound = errors.New("delivery job not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Ретраи полезны для Serialization Failure или Deadlocks.
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreatePurchase сохраняет новую покупку в статусе pending_payment.
// Проверка анти-спама и вставка намеренно не объединены в одну транзакцию.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p *model.Purchase) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO purchases
		 (id, buyer_wallet, prg_delivery_address, usd_cents, crypto_type, crypto_amount,
		  tokens_to_credit, stage_name, referrer_address, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.BuyerWallet, p.DeliveryAddress, p.USDCents, string(p.Currency), p.CryptoAmount,
		p.TokensToCredit, p.StageName, nullIfEmpty(p.ReferrerAddress), string(p.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrPurchaseExists, p.ID)
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

// GetPurchase возвращает покупку по идентификатору.
func (r *PostgresRepository) GetPurchase(ctx context.Context, id string) (*model.Purchase, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, buyer_wallet, prg_delivery_address, usd_cents, crypto_type, crypto_amount,
		        tokens_to_credit, stage_name, COALESCE(referrer_address, ''), status,
		        COALESCE(payment_signature, ''), COALESCE(delivery_signature, ''),
		        COALESCE(error_detail, ''), created_at, updated_at
		 FROM purchases WHERE id = $1`,
		id,
	)

	var p model.Purchase
	var currency, status string
	err := row.Scan(&p.ID, &p.BuyerWallet, &p.DeliveryAddress, &p.USDCents, &currency, &p.CryptoAmount,
		&p.TokensToCredit, &p.StageName, &p.ReferrerAddress, &status,
		&p.PaymentSignature, &p.DeliverySignature, &p.ErrorDetail, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}

	p.Currency = model.PaymentCurrency(currency)
	p.Status = model.PurchaseStatus(status)

	return &p, nil
}

// HasRecentPurchase сообщает, создавал ли покупатель запись за последний интервал window.
func (r *PostgresRepository) HasRecentPurchase(ctx context.Context, buyerWallet string, window time.Duration) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM purchases
		   WHERE buyer_wallet = $1 AND created_at > now() - $2::interval
		 )`,
		buyerWallet, fmt.Sprintf("%d seconds", int(window.Seconds())),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent purchase: %w", err)
	}
	return exists, nil
}

// SumRaisedUSDCents возвращает накопленную сумму подтверждённых покупок в центах.
func (r *PostgresRepository) SumRaisedUSDCents(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(usd_cents), 0)
		 FROM purchases
		 WHERE status IN ($1, $2)`,
		string(model.PurchaseStatusConfirmed), string(model.PurchaseStatusCompleted),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum raised usd: %w", err)
	}
	return total, nil
}

// ConfirmPurchase переводит покупку в статус confirmed, сохраняет подпись оплаты
// и в той же транзакции ставит задание на отправку токенов. Повторный вызов для
// уже подтверждённой покупки идемпотентен.
func (r *PostgresRepository) ConfirmPurchase(ctx context.Context, id, signature string, amountSmallest int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var deliveryAddress string
	err = tx.QueryRow(ctx,
		`UPDATE purchases
		 SET status = $2, payment_signature = $3, updated_at = now()
		 WHERE id = $1 AND status = $4
		 RETURNING prg_delivery_address`,
		id, string(model.PurchaseStatusConfirmed), signature, string(model.PurchaseStatusPendingPayment),
	).Scan(&deliveryAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Переход не сработал: либо записи нет, либо статус уже ушёл вперёд.
			return r.classifyConfirmConflict(ctx, id)
		}
		return fmt.Errorf("confirm purchase: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO pending_token_sends (purchase_id, buyer_wallet, amount_smallest, status)
		 VALUES ($1, $2, $3, $4)`,
		id, deliveryAddress, amountSmallest, string(model.JobStatusQueued),
	)
	if err != nil {
		return fmt.Errorf("enqueue delivery job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (r *PostgresRepository) classifyConfirmConflict(ctx context.Context, id string) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM purchases WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPurchaseNotFound
		}
		return fmt.Errorf("get purchase status: %w", err)
	}

	switch model.PurchaseStatus(status) {
	case model.PurchaseStatusConfirmed, model.PurchaseStatusCompleted:
		// Уже подтверждена — вторая доставка подписи не ошибка.
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrPurchaseTerminal, status)
	}
}

// FailPurchaseOnChain переводит покупку в терминальный статус failed_on_chain
// и сохраняет текст ошибки сети.
func (r *PostgresRepository) FailPurchaseOnChain(ctx context.Context, id, detail string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE purchases
		 SET status = $2, error_detail = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, string(model.PurchaseStatusFailedOnChain), detail, string(model.PurchaseStatusPendingPayment),
	)
	if err != nil {
		return fmt.Errorf("fail purchase: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, `SELECT status FROM purchases WHERE id = $1`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("get purchase status: %w", err)
		}
		if model.PurchaseStatus(status) == model.PurchaseStatusFailedOnChain {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrPurchaseTerminal, status)
	}

	return nil
}

// GetJobsForDelivery возвращает задания, ожидающие отправки токенов:
// новые и упавшие в прошлых прогонах, самые давно обновлявшиеся первыми.
func (r *PostgresRepository) GetJobsForDelivery(ctx context.Context, limit int) ([]model.DeliveryJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, purchase_id, buyer_wallet, amount_smallest, status, attempts,
		        COALESCE(last_error, ''), updated_at
		 FROM pending_token_sends
		 WHERE status IN ($1, $2)
		 ORDER BY updated_at
		 LIMIT $3`,
		string(model.JobStatusQueued), string(model.JobStatusFailed), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select delivery jobs: %w", err)
	}
	defer rows.Close()

	var res []model.DeliveryJob
	for rows.Next() {
		var j model.DeliveryJob
		var status string
		if err := rows.Scan(&j.ID, &j.PurchaseID, &j.Recipient, &j.AmountSmallest, &status,
			&j.Attempts, &j.LastError, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery job: %w", err)
		}
		j.Status = model.JobStatus(status)
		res = append(res, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkJobSending помечает задание как отправляемое и увеличивает счётчик попыток.
func (r *PostgresRepository) MarkJobSending(ctx context.Context, jobID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE pending_token_sends
		 SET status = $2, attempts = attempts + 1, updated_at = now()
		 WHERE id = $1`,
		jobID, string(model.JobStatusSending),
	)
	if err != nil {
		return fmt.Errorf("mark job sending: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkJobSent помечает задание выполненным и в той же транзакции переводит
// покупку в статус completed с подписью транзакции доставки.
func (r *PostgresRepository) MarkJobSent(ctx context.Context, jobID int64, purchaseID, signature string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE pending_token_sends SET status = $2, last_error = NULL, updated_at = now() WHERE id = $1`,
		jobID, string(model.JobStatusSent),
	)
	if err != nil {
		return fmt.Errorf("mark job sent: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE purchases
		 SET status = $2, delivery_signature = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		purchaseID, string(model.PurchaseStatusCompleted), signature, string(model.PurchaseStatusConfirmed),
	)
	if err != nil {
		return fmt.Errorf("complete purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// MarkJobFailed помечает задание упавшим и сохраняет последнюю ошибку.
// Задание остаётся доступным для следующего прогона воркера.
func (r *PostgresRepository) MarkJobFailed(ctx context.Context, jobID int64, lastError string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE pending_token_sends SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		jobID, string(model.JobStatusFailed), lastError,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetTotals возвращает агрегированную статистику пресейла по подтверждённым покупкам.
func (r *PostgresRepository) GetTotals(ctx context.Context) (*model.PresaleTotals, error) {
	var (
		usdCents int64
		tokens   int64
		count    int64
	)

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COALESCE(SUM(usd_cents), 0), COALESCE(SUM(tokens_to_credit), 0), COUNT(*)
			 FROM purchases
			 WHERE status IN ($1, $2)`,
			string(model.PurchaseStatusConfirmed), string(model.PurchaseStatusCompleted),
		).Scan(&usdCents, &tokens, &count)
	})
	if err != nil {
		return nil, fmt.Errorf("sum totals: %w", err)
	}

	return &model.PresaleTotals{
		USDRaised:        float64(usdCents) / 100,
		SoldTokens:       tokens,
		TransactionCount: count,
	}, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

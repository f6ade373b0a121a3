// Package service реализует бизнес-логику пресейла PierogiCoin.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/pierogicoin/presale-service/internal/chain"
	"github.com/pierogicoin/presale-service/internal/model"
	"github.com/pierogicoin/presale-service/internal/monitor"
	"github.com/pierogicoin/presale-service/internal/pricing"
	"github.com/pierogicoin/presale-service/internal/validation"
)

// throttleWindow — минимальный интервал между покупками с одного адреса.
const throttleWindow = 30 * time.Second

// registrarTimeout ограничивает фоновую регистрацию адреса в мониторинге.
const registrarTimeout = 5 * time.Second

// maxPurchaseUSD ограничивает размер одной покупки. Начисление хранится в
// минимальных единицах токена, и даже при максимальном бонусе сумма в этих
// пределах не выходит за int64.
const maxPurchaseUSD = 100_000

// Запасные значения статистики на случай недоступности БД: витрина прогресса
// предпочитает правдоподобное число ошибке.
const (
	fallbackUSDRaised        = 1_000_000
	fallbackSoldTokens       = 27_500_000_000
	fallbackTransactionCount = 4200
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreatePurchase(ctx context.Context, p *model.Purchase) error
	GetPurchase(ctx context.Context, id string) (*model.Purchase, error)
	HasRecentPurchase(ctx context.Context, buyerWallet string, window time.Duration) (bool, error)
	SumRaisedUSDCents(ctx context.Context) (int64, error)
	ConfirmPurchase(ctx context.Context, id, signature string, amountSmallest int64) error
	FailPurchaseOnChain(ctx context.Context, id, detail string) error
	GetTotals(ctx context.Context) (*model.PresaleTotals, error)
}

// RateSource описывает источник курсов криптовалют к доллару.
type RateSource interface {
	USDPerUnit(ctx context.Context, symbol string) (float64, error)
}

// ChainReader описывает проверку статуса транзакций в сети.
type ChainReader interface {
	TransactionStatus(ctx context.Context, signature string) (*chain.TxStatus, error)
}

// Service содержит бизнес-логику пресейла PierogiCoin.
type Service struct {
	repo      Repository
	rates     RateSource
	chain     ChainReader
	registrar monitor.Registrar

	stages          []pricing.Stage
	treasuryAddress string
	tokenDecimals   int

	logger *zap.Logger
}

// NewService создаёт сервис пресейла. Таблица ступеней валидируется один раз здесь.
func NewService(repo Repository, rates RateSource, chainReader ChainReader, registrar monitor.Registrar,
	stages []pricing.Stage, treasuryAddress string, tokenDecimals int, logger *zap.Logger) (*Service, error) {

	if err := pricing.ValidateStages(stages); err != nil {
		return nil, fmt.Errorf("stage table: %w", err)
	}

	if registrar == nil {
		registrar = monitor.Nop{}
	}

	return &Service{
		repo:            repo,
		rates:           rates,
		chain:           chainReader,
		registrar:       registrar,
		stages:          stages,
		treasuryAddress: treasuryAddress,
		tokenDecimals:   tokenDecimals,
		logger:          logger,
	}, nil
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// PurchaseRequest описывает входящий запрос на покупку токенов.
type PurchaseRequest struct {
	BuyerAddress    string
	DeliveryAddress string
	AmountUSD       float64
	Currency        model.PaymentCurrency
	ReferrerAddress string
}

// IntakeResult содержит ответ на принятый запрос покупки.
type IntakeResult struct {
	PurchaseID      string
	TreasuryAddress string
	USDPerCrypto    float64
}

// InitiatePurchase валидирует запрос, рассчитывает количество токенов по
// текущей ступени и сохраняет покупку в статусе pending_payment.
// TokensToCredit фиксируется здесь и больше не пересчитывается.
func (s *Service) InitiatePurchase(ctx context.Context, req PurchaseRequest) (*IntakeResult, error) {
	var bad []string
	if req.BuyerAddress == "" {
		bad = append(bad, "buyerAddress")
	}
	if req.DeliveryAddress == "" {
		bad = append(bad, "prgDeliveryAddress")
	}
	if req.AmountUSD < 1 || req.AmountUSD > maxPurchaseUSD {
		bad = append(bad, "amountUSD")
	}
	if !req.Currency.IsValid() {
		bad = append(bad, "paymentCryptoCurrency")
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	if !validation.IsValidWalletAddress(req.BuyerAddress) {
		return nil, fmt.Errorf("%w: buyer", ErrInvalidAddress)
	}
	if !validation.IsValidWalletAddress(req.DeliveryAddress) {
		return nil, fmt.Errorf("%w: delivery", ErrInvalidAddress)
	}
	if !validation.IsValidWalletAddress(s.treasuryAddress) {
		return nil, fmt.Errorf("%w: treasury", ErrInvalidAddress)
	}

	// Кривой адрес реферера не валит запрос — бонус просто не начисляется.
	referrer := req.ReferrerAddress
	if referrer != "" && !validation.IsValidWalletAddress(referrer) {
		s.logger.Debug("dropping malformed referrer address", zap.String("referrer", referrer))
		referrer = ""
	}

	rate, err := s.rates.USDPerUnit(ctx, string(req.Currency))
	if err != nil {
		return nil, fmt.Errorf("%w: price feed: %v", ErrExternalService, err)
	}

	raisedCents, err := s.repo.SumRaisedUSDCents(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum raised: %w", err)
	}

	stage, open := pricing.StageForCumulativeUSD(s.stages, raisedCents)
	if !open {
		return nil, ErrPresaleClosed
	}

	usdCents := pricing.USDToCents(req.AmountUSD)

	bonusBps := stage.BonusBps + pricing.InvestmentBonusBps(usdCents)
	if referrer != "" {
		bonusBps += pricing.ReferralBonusBps
	}

	tokens := pricing.ComputeTokens(usdCents, pricing.BaseRatePerUSD, bonusBps)

	recent, err := s.repo.HasRecentPurchase(ctx, req.BuyerAddress, throttleWindow)
	if err != nil {
		return nil, fmt.Errorf("throttle check: %w", err)
	}
	if recent {
		return nil, ErrRateLimited
	}

	p := &model.Purchase{
		ID:              uuid.NewString(),
		BuyerWallet:     req.BuyerAddress,
		DeliveryAddress: req.DeliveryAddress,
		USDCents:        usdCents,
		Currency:        req.Currency,
		CryptoAmount:    req.AmountUSD / rate,
		TokensToCredit:  tokens,
		StageName:       stage.Name,
		ReferrerAddress: referrer,
		Status:          model.PurchaseStatusPendingPayment,
	}

	if err := s.repo.CreatePurchase(ctx, p); err != nil {
		return nil, err
	}

	// Регистрация в мониторинге не критична для покупки: ошибки глотаем с логом.
	go func(buyer string) {
		regCtx, cancel := context.WithTimeout(context.Background(), registrarTimeout)
		defer cancel()

		if err := s.registrar.RegisterAddress(regCtx, buyer); err != nil {
			s.logger.Warn("register address for monitoring failed",
				zap.String("buyer", buyer), zap.Error(err))
		}
	}(req.BuyerAddress)

	return &IntakeResult{
		PurchaseID:      p.ID,
		TreasuryAddress: s.treasuryAddress,
		USDPerCrypto:    rate,
	}, nil
}

// ConfirmPayment проверяет транзакцию оплаты в сети и переводит покупку в
// статус confirmed, ставя токены в очередь доставки. Для доверенного вебхука
// транзакция, ещё не видимая в сети, считается успешной; клиентская подпись
// без видимой транзакции отклоняется.
func (s *Service) ConfirmPayment(ctx context.Context, purchaseID, signature string, trusted bool) error {
	p, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return err
	}

	if p.Status == model.PurchaseStatusConfirmed || p.Status == model.PurchaseStatusCompleted {
		// Повторное подтверждение идемпотентно.
		return nil
	}
	if !model.CanTransition(p.Status, model.PurchaseStatusConfirmed) {
		return fmt.Errorf("%w: %s", ErrOnChainFailure, p.ErrorDetail)
	}

	st, err := s.chain.TransactionStatus(ctx, signature)
	if err != nil {
		return fmt.Errorf("%w: chain rpc: %v", ErrExternalService, err)
	}

	if st.Found && st.Err != "" {
		if failErr := s.repo.FailPurchaseOnChain(ctx, purchaseID, st.Err); failErr != nil {
			return failErr
		}
		s.logger.Info("payment failed on-chain",
			zap.String("purchase", purchaseID), zap.String("detail", st.Err))
		return fmt.Errorf("%w: %s", ErrOnChainFailure, st.Err)
	}

	if !st.Found && !trusted {
		return ErrTransactionNotFound
	}

	// Переполнение int64 не должно превратиться в отрицательную сумму
	// в очереди доставки.
	scale := pow10(s.tokenDecimals)
	if p.TokensToCredit > math.MaxInt64/scale {
		return fmt.Errorf("tokens to credit %d exceed int64 at %d decimals",
			p.TokensToCredit, s.tokenDecimals)
	}
	amountSmallest := p.TokensToCredit * scale

	if err := s.repo.ConfirmPurchase(ctx, purchaseID, signature, amountSmallest); err != nil {
		return err
	}

	s.logger.Info("payment confirmed",
		zap.String("purchase", purchaseID), zap.Bool("trusted", trusted))

	return nil
}

// Totals возвращает статистику пресейла. При ошибке БД отдаёт запасные
// константы: это информационная витрина, доступность важнее точности.
func (s *Service) Totals(ctx context.Context) *model.PresaleTotals {
	totals, err := s.repo.GetTotals(ctx)
	if err != nil {
		s.logger.Warn("presale totals query failed, serving fallback", zap.Error(err))
		return &model.PresaleTotals{
			USDRaised:        fallbackUSDRaised,
			SoldTokens:       fallbackSoldTokens,
			TransactionCount: fallbackTransactionCount,
		}
	}
	return totals
}

func pow10(n int) int64 {
	res := int64(1)
	for i := 0; i < n; i++ {
		res *= 10
	}
	return res
}

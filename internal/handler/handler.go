// Package handler содержит HTTP-обработчики API пресейла PierogiCoin.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pierogicoin/presale-service/internal/middleware"
	"github.com/pierogicoin/presale-service/internal/model"
	"github.com/pierogicoin/presale-service/internal/repository"
	"github.com/pierogicoin/presale-service/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	InitiatePurchase(ctx context.Context, req service.PurchaseRequest) (*service.IntakeResult, error)
	ConfirmPayment(ctx context.Context, purchaseID, signature string, trusted bool) error
	Totals(ctx context.Context) *model.PresaleTotals
}

// BatchRunner определяет контракт воркера рассылки токенов.
type BatchRunner interface {
	RunBatch(ctx context.Context) (model.BatchSummary, error)
}

// Handler реализует HTTP-обработчики API пресейла.
type Handler struct {
	service Service
	worker  BatchRunner
	logger  *zap.Logger

	webhookAuth *middleware.BearerAuth
	workerAuth  *middleware.BearerAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, worker BatchRunner, logger *zap.Logger,
	webhookAuth, workerAuth *middleware.BearerAuth) *Handler {
	return &Handler{
		service:     s,
		worker:      worker,
		logger:      logger,
		webhookAuth: webhookAuth,
		workerAuth:  workerAuth,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// writeError переводит ошибку бизнес-логики в HTTP-статус и JSON-пейлоад.
// Внутренние подробности внешних сбоев наружу не отдаются.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error()})
	case errors.Is(err, service.ErrInvalidAddress):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrPresaleClosed):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "presale is closed"})
	case errors.Is(err, service.ErrRateLimited):
		h.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many purchase attempts, try again later"})
	case errors.Is(err, repository.ErrPurchaseNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "purchase not found"})
	case errors.Is(err, service.ErrTransactionNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "payment transaction not found yet"})
	case errors.Is(err, service.ErrOnChainFailure):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "payment transaction failed on-chain"})
	case errors.Is(err, service.ErrExternalService):
		h.logger.Error("external dependency error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "service temporarily unavailable"})
	default:
		h.logger.Error("internal error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type purchaseRequest struct {
	BuyerAddress          string  `json:"buyerAddress"`
	AmountUSD             float64 `json:"amountUSD"`
	PaymentCryptoCurrency string  `json:"paymentCryptoCurrency"`
	PRGDeliveryAddress    string  `json:"prgDeliveryAddress"`
	ReferrerAddress       string  `json:"referrerAddress,omitempty"`
}

type purchaseResponse struct {
	Success          bool    `json:"success"`
	TransactionID    string  `json:"transactionId"`
	RecipientAddress string  `json:"recipientAddress"`
	USDPerCrypto     float64 `json:"usdPerCrypto"`
}

// InitiatePurchase принимает запрос на покупку токенов, рассчитывает цену
// и возвращает адрес казначейства для оплаты.
func (h *Handler) InitiatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	res, err := h.service.InitiatePurchase(r.Context(), service.PurchaseRequest{
		BuyerAddress:    req.BuyerAddress,
		DeliveryAddress: req.PRGDeliveryAddress,
		AmountUSD:       req.AmountUSD,
		Currency:        model.PaymentCurrency(req.PaymentCryptoCurrency),
		ReferrerAddress: req.ReferrerAddress,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, purchaseResponse{
		Success:          true,
		TransactionID:    res.PurchaseID,
		RecipientAddress: res.TreasuryAddress,
		USDPerCrypto:     res.USDPerCrypto,
	})
}

type confirmRequest struct {
	TransactionID string `json:"transactionId"`
	Signature     string `json:"signature"`
}

type confirmResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, trusted bool) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	if req.TransactionID == "" || req.Signature == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "transactionId and signature are required"})
		return
	}

	if err := h.service.ConfirmPayment(r.Context(), req.TransactionID, req.Signature, trusted); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, confirmResponse{Success: true, Message: "payment confirmed"})
}

// ConfirmPayment обрабатывает подпись транзакции, присланную клиентом покупателя.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, false)
}

// WebhookConfirm обрабатывает уведомление внешнего индексатора о платеже.
// Вызывается под bearer-секретом вебхука.
func (h *Handler) WebhookConfirm(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, true)
}

// Distribute запускает один прогон воркера рассылки токенов.
// Вызывается внешним планировщиком под bearer-секретом воркера.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	summary, err := h.worker.RunBatch(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// Stats возвращает агрегированную статистику пресейла. Всегда отвечает 200:
// при сбое БД сервис подставляет запасные значения.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Totals(r.Context()))
}

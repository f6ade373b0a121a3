// Package model содержит доменные сущности сервиса пресейла PierogiCoin.
package model

import "time"

// PaymentCurrency описывает криптовалюту, которой оплачивается покупка.
type PaymentCurrency string

const (
	CurrencySOL  PaymentCurrency = "SOL"
	CurrencyUSDC PaymentCurrency = "USDC"
)

// IsValid сообщает, поддерживается ли валюта оплаты.
func (c PaymentCurrency) IsValid() bool {
	return c == CurrencySOL || c == CurrencyUSDC
}

// PurchaseStatus описывает статус обработки покупки.
type PurchaseStatus string

const (
	// PurchaseStatusPendingPayment — запись создана, оплата ещё не поступила.
	PurchaseStatusPendingPayment PurchaseStatus = "pending_payment"
	// PurchaseStatusConfirmed — оплата подтверждена в сети, токены поставлены в очередь.
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	// PurchaseStatusFailedOnChain — транзакция оплаты завершилась ошибкой в сети. Терминальный статус.
	PurchaseStatusFailedOnChain PurchaseStatus = "failed_on_chain"
	// PurchaseStatusCompleted — токены доставлены покупателю. Терминальный статус.
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

// CanTransition проверяет допустимость перехода статуса покупки.
// Статус движется только вперёд: pending_payment -> confirmed -> completed,
// либо pending_payment -> failed_on_chain. Обратных переходов нет.
func CanTransition(from, to PurchaseStatus) bool {
	switch from {
	case PurchaseStatusPendingPayment:
		return to == PurchaseStatusConfirmed || to == PurchaseStatusFailedOnChain
	case PurchaseStatusConfirmed:
		return to == PurchaseStatusCompleted
	default:
		return false
	}
}

// IsTerminal сообщает, является ли статус покупки терминальным.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusFailedOnChain || s == PurchaseStatusCompleted
}

// Purchase описывает одну попытку покупки токенов на пресейле.
// TokensToCredit фиксируется при создании записи и никогда не пересчитывается.
type Purchase struct {
	ID                string
	BuyerWallet       string
	DeliveryAddress   string
	USDCents          int64
	Currency          PaymentCurrency
	CryptoAmount      float64
	TokensToCredit    int64
	StageName         string
	ReferrerAddress   string
	Status            PurchaseStatus
	PaymentSignature  string
	DeliverySignature string
	ErrorDetail       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// JobStatus описывает статус задания на отправку токенов.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusSending JobStatus = "sending"
	JobStatusSent    JobStatus = "sent"
	JobStatusFailed  JobStatus = "failed"
)

// DeliveryJob описывает элемент очереди доставки токенов: токены начислены,
// но ещё не отправлены в сеть. Мутируется только воркером рассылки.
type DeliveryJob struct {
	ID             int64
	PurchaseID     string
	Recipient      string
	AmountSmallest int64
	Status         JobStatus
	Attempts       int
	LastError      string
	UpdatedAt      time.Time
}

// PresaleTotals содержит агрегированную статистику пресейла для витрины прогресса.
type PresaleTotals struct {
	USDRaised        float64 `json:"usdRaised"`
	SoldTokens       int64   `json:"soldTokens"`
	TransactionCount int64   `json:"transactionCount"`
}

// BatchSummary содержит итог одного прогона воркера рассылки токенов.
type BatchSummary struct {
	Processed int `json:"processed"`
	OK        int `json:"ok"`
	Fail      int `json:"fail"`
}

package service

import (
	"errors"
	"strings"
)

// ErrInvalidAddress возвращается при синтаксически некорректном адресе кошелька.
var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrPresaleClosed возвращается, когда накопленная сумма вышла за последнюю ступень.
	ErrPresaleClosed = errors.New("presale is closed")
	// ErrRateLimited возвращается при повторной покупке с того же адреса в пределах окна анти-спама.
	ErrRateLimited = errors.New("too many purchase attempts")
	// ErrExternalService возвращается при недоступности прайс-фида или RPC-узла сети.
	ErrExternalService = errors.New("external service unavailable")
	// ErrOnChainFailure возвращается, если транзакция оплаты завершилась ошибкой в сети.
	ErrOnChainFailure = errors.New("payment transaction failed on-chain")
	// ErrTransactionNotFound возвращается, когда транзакция оплаты ещё не видна в сети.
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

// ValidationError описывает некорректный запрос с перечнем нарушенных полей.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

package chain

import (
	"context"
	"errors"
	"strings"
)

// Известные классы временных ошибок RPC-узла. Всё, что не попало в список,
// считается постоянной ошибкой и не ретраится.
var transientMarkers = []string{
	"could not find account",
	"blockhash not found",
	"block height exceeded",
	"node is behind",
	"timed out",
	"timeout",
	"connection reset by peer",
	"connection refused",
	"too many requests",
}

// IsTransient сообщает, относится ли ошибка сети к известным временным классам,
// для которых имеет смысл повторная попытка отправки.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// Package validation содержит функции валидации входных данных.
package validation

import "github.com/gagliardetto/solana-go"

// IsValidWalletAddress проверяет синтаксическую корректность адреса кошелька
// Solana: base58-строка, декодирующаяся в 32 байта. Существование аккаунта
// в сети не проверяется.
func IsValidWalletAddress(address string) bool {
	if address == "" {
		return false
	}

	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false
	}

	return !pk.IsZero()
}

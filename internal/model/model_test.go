package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PurchaseStatus
		to   PurchaseStatus
		want bool
	}{
		{
			name: "pending to confirmed",
			from: PurchaseStatusPendingPayment,
			to:   PurchaseStatusConfirmed,
			want: true,
		},
		{
			name: "pending to failed on chain",
			from: PurchaseStatusPendingPayment,
			to:   PurchaseStatusFailedOnChain,
			want: true,
		},
		{
			name: "confirmed to completed",
			from: PurchaseStatusConfirmed,
			to:   PurchaseStatusCompleted,
			want: true,
		},
		{
			name: "confirmed back to pending",
			from: PurchaseStatusConfirmed,
			to:   PurchaseStatusPendingPayment,
			want: false,
		},
		{
			name: "completed is terminal",
			from: PurchaseStatusCompleted,
			to:   PurchaseStatusConfirmed,
			want: false,
		},
		{
			name: "failed on chain is terminal",
			from: PurchaseStatusFailedOnChain,
			to:   PurchaseStatusConfirmed,
			want: false,
		},
		{
			name: "pending straight to completed",
			from: PurchaseStatusPendingPayment,
			to:   PurchaseStatusCompleted,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPurchaseStatusIsTerminal(t *testing.T) {
	if PurchaseStatusPendingPayment.IsTerminal() {
		t.Fatalf("pending_payment must not be terminal")
	}
	if PurchaseStatusConfirmed.IsTerminal() {
		t.Fatalf("confirmed must not be terminal")
	}
	if !PurchaseStatusCompleted.IsTerminal() {
		t.Fatalf("completed must be terminal")
	}
	if !PurchaseStatusFailedOnChain.IsTerminal() {
		t.Fatalf("failed_on_chain must be terminal")
	}
}

func TestPaymentCurrencyIsValid(t *testing.T) {
	if !CurrencySOL.IsValid() || !CurrencyUSDC.IsValid() {
		t.Fatalf("SOL and USDC must be valid payment currencies")
	}
	if PaymentCurrency("CARD").IsValid() {
		t.Fatalf("CARD must not be a valid on-chain payment currency")
	}
	if PaymentCurrency("").IsValid() {
		t.Fatalf("empty currency must not be valid")
	}
}

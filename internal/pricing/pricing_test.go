package pricing

import "testing"

var testStages = []Stage{
	{Name: "Stage1", StartUSDCents: 0, EndUSDCents: 1_000_000, BonusBps: 1500},
	{Name: "Stage2", StartUSDCents: 1_000_000, EndUSDCents: 2_500_000, BonusBps: 1000},
}

func TestValidateStages(t *testing.T) {
	if err := ValidateStages(testStages); err != nil {
		t.Fatalf("valid table rejected: %v", err)
	}
	if err := ValidateStages(DefaultStages); err != nil {
		t.Fatalf("default table rejected: %v", err)
	}

	if err := ValidateStages(nil); err == nil {
		t.Fatalf("empty table must be rejected")
	}

	gap := []Stage{
		{Name: "A", StartUSDCents: 0, EndUSDCents: 100, BonusBps: 0},
		{Name: "B", StartUSDCents: 200, EndUSDCents: 300, BonusBps: 0},
	}
	if err := ValidateStages(gap); err == nil {
		t.Fatalf("table with gap must be rejected")
	}

	inverted := []Stage{
		{Name: "A", StartUSDCents: 100, EndUSDCents: 100, BonusBps: 0},
	}
	if err := ValidateStages(inverted); err == nil {
		t.Fatalf("empty interval must be rejected")
	}
}

func TestStageForCumulativeUSD(t *testing.T) {
	tests := []struct {
		name      string
		cumCents  int64
		wantStage string
		wantOK    bool
	}{
		{
			name:      "start of first stage",
			cumCents:  0,
			wantStage: "Stage1",
			wantOK:    true,
		},
		{
			name:      "just below boundary",
			cumCents:  999_999, // $9999.99
			wantStage: "Stage1",
			wantOK:    true,
		},
		{
			name:      "boundary belongs to next stage",
			cumCents:  1_000_000, // $10000 ровно
			wantStage: "Stage2",
			wantOK:    true,
		},
		{
			name:     "past the final stage",
			cumCents: 2_500_000,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := StageForCumulativeUSD(testStages, tt.cumCents)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && s.Name != tt.wantStage {
				t.Fatalf("stage = %q, want %q", s.Name, tt.wantStage)
			}
		})
	}
}

func TestInvestmentBonusBps(t *testing.T) {
	tests := []struct {
		name     string
		usdCents int64
		want     int64
	}{
		{name: "below first tier", usdCents: 9_999, want: 0},
		{name: "exactly 100 usd", usdCents: 10_000, want: 500},
		{name: "mid tier", usdCents: 25_000, want: 500},
		{name: "just below 500 usd", usdCents: 49_999, want: 500},
		{name: "exactly 500 usd", usdCents: 50_000, want: 1200},
		{name: "exactly 1000 usd", usdCents: 100_000, want: 2000},
		{name: "exactly 2500 usd", usdCents: 250_000, want: 3000},
		{name: "above top tier", usdCents: 1_000_000, want: 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InvestmentBonusBps(tt.usdCents); got != tt.want {
				t.Fatalf("InvestmentBonusBps(%d) = %d, want %d", tt.usdCents, got, tt.want)
			}
		})
	}
}

func TestComputeTokens(t *testing.T) {
	// Сквозной пример: $1000, бонус ступени 15% + инвестиционный 20% = 35%.
	usdCents := int64(100_000)
	bonusBps := int64(1500) + InvestmentBonusBps(usdCents)
	if bonusBps != 3500 {
		t.Fatalf("total bonus = %d bps, want 3500", bonusBps)
	}

	got := ComputeTokens(usdCents, BaseRatePerUSD, bonusBps)
	if got != 33_750_000 {
		t.Fatalf("ComputeTokens = %d, want 33750000", got)
	}

	base := ComputeTokens(usdCents, BaseRatePerUSD, 0)
	if base != 25_000_000 {
		t.Fatalf("base tokens = %d, want 25000000", base)
	}
}

func TestComputeTokensMonotonic(t *testing.T) {
	prev := int64(-1)
	for cents := int64(100); cents <= 1_000_000; cents += 7919 {
		got := ComputeTokens(cents, BaseRatePerUSD, 3500)
		if got < prev {
			t.Fatalf("ComputeTokens not monotonic: f(%d) = %d < %d", cents, got, prev)
		}
		prev = got
	}
}

func TestUSDToCents(t *testing.T) {
	if got := USDToCents(499.999); got != 49999 {
		t.Fatalf("USDToCents(499.999) = %d, want 49999", got)
	}
	if got := USDToCents(500); got != 50000 {
		t.Fatalf("USDToCents(500) = %d, want 50000", got)
	}
	if got := USDToCents(1); got != 100 {
		t.Fatalf("USDToCents(1) = %d, want 100", got)
	}

	// 4.35 в double равно 4.34999..., эпсилон не должен ронять цент.
	if got := USDToCents(4.35); got != 435 {
		t.Fatalf("USDToCents(4.35) = %d, want 435", got)
	}
	if got := USDToCents(0.07); got != 7 {
		t.Fatalf("USDToCents(0.07) = %d, want 7", got)
	}
}

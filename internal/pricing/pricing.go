// Package pricing содержит чистые правила ценообразования пресейла PierogiCoin.
// Все денежные величины целочисленные: доллары в центах, бонусы в базисных
// пунктах, токены в целых PRG — плавающая арифметика в расчёте причитающихся
// токенов не используется.
package pricing

import (
	"fmt"
	"math"
)

// BaseRatePerUSD — базовый курс пресейла: количество PRG за один доллар.
const BaseRatePerUSD = 25000

// ReferralBonusBps — фиксированный реферальный бонус покупателя (2%).
const ReferralBonusBps = 200

// Stage описывает ценовую ступень пресейла: полуинтервал [StartUSDCents, EndUSDCents)
// по накопленной сумме продаж и бонус ступени в базисных пунктах.
type Stage struct {
	Name          string
	StartUSDCents int64
	EndUSDCents   int64
	BonusBps      int64
}

// DefaultStages — таблица ступеней пресейла PierogiCoin. Читается только при старте.
var DefaultStages = []Stage{
	{Name: "Pierogi Ruskie", StartUSDCents: 0, EndUSDCents: 10_000_000, BonusBps: 2000},
	{Name: "Pierogi z Kapusta", StartUSDCents: 10_000_000, EndUSDCents: 25_000_000, BonusBps: 1500},
	{Name: "Pierogi z Miesem", StartUSDCents: 25_000_000, EndUSDCents: 50_000_000, BonusBps: 1000},
	{Name: "Pierogi na Slodko", StartUSDCents: 50_000_000, EndUSDCents: 75_000_000, BonusBps: 500},
	{Name: "Ostatni Pieróg", StartUSDCents: 75_000_000, EndUSDCents: 100_000_000, BonusBps: 0},
}

// ValidateStages проверяет, что таблица ступеней упорядочена и непрерывна:
// конец ступени n совпадает с началом ступени n+1. Вызывается один раз при
// загрузке конфигурации, а не на каждый запрос.
func ValidateStages(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("stage table is empty")
	}

	for i, s := range stages {
		if s.EndUSDCents <= s.StartUSDCents {
			return fmt.Errorf("stage %q: end %d <= start %d", s.Name, s.EndUSDCents, s.StartUSDCents)
		}
		if s.BonusBps < 0 {
			return fmt.Errorf("stage %q: negative bonus %d", s.Name, s.BonusBps)
		}
		if i > 0 && stages[i-1].EndUSDCents != s.StartUSDCents {
			return fmt.Errorf("stage %q: gap after %q (%d != %d)",
				s.Name, stages[i-1].Name, stages[i-1].EndUSDCents, s.StartUSDCents)
		}
	}

	return nil
}

// StageForCumulativeUSD находит ступень, полуинтервал которой содержит
// накопленную сумму продаж. Второе значение false означает, что пресейл
// закрыт: сумма вышла за конец последней ступени.
func StageForCumulativeUSD(stages []Stage, cumulativeUSDCents int64) (Stage, bool) {
	for _, s := range stages {
		if cumulativeUSDCents >= s.StartUSDCents && cumulativeUSDCents < s.EndUSDCents {
			return s, true
		}
	}
	return Stage{}, false
}

// bonusTier описывает ступень бонуса за размер инвестиции.
type bonusTier struct {
	minUSDCents int64
	bps         int64
}

// Пороги проверяются сверху вниз, срабатывает первый подходящий (">=", не ">").
var investmentTiers = []bonusTier{
	{minUSDCents: 250_000, bps: 3000},
	{minUSDCents: 100_000, bps: 2000},
	{minUSDCents: 50_000, bps: 1200},
	{minUSDCents: 10_000, bps: 500},
}

// InvestmentBonusBps возвращает бонус за размер инвестиции в базисных пунктах.
func InvestmentBonusBps(usdCents int64) int64 {
	for _, t := range investmentTiers {
		if usdCents >= t.minUSDCents {
			return t.bps
		}
	}
	return 0
}

// ComputeTokens вычисляет итоговое количество PRG для покупки:
// base = floor(usd * rate), bonus = floor(base * bps / 10000).
// Вызывающая сторона гарантирует неотрицательные аргументы.
func ComputeTokens(usdCents, ratePerUSD, totalBonusBps int64) int64 {
	base := usdCents * ratePerUSD / 100
	bonus := base * totalBonusBps / 10000
	return base + bonus
}

// USDToCents переводит сумму запроса в центы с отбрасыванием дробной части
// цента. Эпсилон компенсирует двоичное представление сумм вида 4.35
// (4.35*100 == 434.999...), не влияя на отбрасывание реальных долей цента.
func USDToCents(usd float64) int64 {
	return int64(math.Floor(usd*100 + 1e-9))
}

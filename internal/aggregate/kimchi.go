package aggregate

import (
	"math"
	"sort"

	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/num"
)

// KimchiRow is one coin's Bithumb-vs-Binance premium observation.
type KimchiRow struct {
	Coin         string  `json:"coin"`
	BithumbKRW   float64 `json:"bithumbKrw"`
	BithumbUSD   float64 `json:"bithumbUsd"`
	BinanceUSD   float64 `json:"binanceUsd"`
	PremiumPct   float64 `json:"premiumPct"`
	Volume24hKRW float64 `json:"volume24hKrw"`
	Volume24hUSD float64 `json:"volume24hUsd"`
	Change24hPct float64 `json:"change24hPct"`
}

// KimchiRows derives premium rows for every tracked coin present in both
// sources. Coins missing either price are silently omitted; rows are
// sorted by absolute premium, largest first.
func KimchiRows(bithumb map[string]market.BithumbTicker, global map[string]float64, fxRate float64) []KimchiRow {
	if fxRate <= 0 || len(bithumb) == 0 || len(global) == 0 {
		return nil
	}

	rows := make([]KimchiRow, 0, len(market.Tracked))
	for _, sym := range market.Tracked {
		bt, ok := bithumb[sym.Coin]
		if !ok || bt.PriceKRW <= 0 {
			continue
		}
		binanceUSD, ok := global[sym.Coin]
		if !ok || binanceUSD <= 0 {
			continue
		}

		bithumbUSD := bt.PriceKRW / fxRate
		premium := (bithumbUSD - binanceUSD) / binanceUSD * 100
		if math.IsNaN(premium) || math.IsInf(premium, 0) {
			continue
		}

		rows = append(rows, KimchiRow{
			Coin:         sym.Coin,
			BithumbKRW:   bt.PriceKRW,
			BithumbUSD:   num.Round2(bithumbUSD),
			BinanceUSD:   binanceUSD,
			PremiumPct:   num.Round2(premium),
			Volume24hKRW: bt.Volume24hKRW,
			Volume24hUSD: num.Round2(bt.Volume24hKRW / fxRate),
			Change24hPct: num.Round2(bt.Change24hPct),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return math.Abs(rows[i].PremiumPct) > math.Abs(rows[j].PremiumPct)
	})
	return rows
}

// AvgPremium returns the mean premium across rows, 2 dp.
func AvgPremium(rows []KimchiRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += r.PremiumPct
	}
	return num.Round2(sum / float64(len(rows)))
}

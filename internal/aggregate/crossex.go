package aggregate

import (
	"strings"

	"github.com/crossfin/crossfin/internal/num"
)

// Domestic-spread action thresholds.
const (
	arbitrageSpreadPct = 0.5
	monitorSpreadPct   = 0.2
)

// VenueQuote is one Korean venue's view of a coin for the comparison.
type VenueQuote struct {
	PriceKRW     float64 `json:"priceKrw"`
	Volume24hKRW float64 `json:"volume24hKrw"`
	Change24hPct float64 `json:"change24hPct"`
	// Kimchi premium of this venue against the global USD price, 2 dp.
	PremiumPct float64 `json:"premiumPct"`
}

// CoinComparison is the per-coin cross-exchange result.
type CoinComparison struct {
	Coin             string                `json:"coin"`
	Venues           map[string]VenueQuote `json:"venues"`
	BinanceUSD       float64               `json:"binanceUsd"`
	AvgPremiumPct    float64               `json:"avgPremiumPct"`
	BestBuyExchange  string                `json:"bestBuyExchange"`
	BestSellExchange string                `json:"bestSellExchange"`
	SpreadPct        float64               `json:"spreadPct"`
	Action           string                `json:"action"` // ARBITRAGE, MONITOR, HOLD
}

// CrossExchangeSummary aggregates the comparison across coins.
type CrossExchangeSummary struct {
	CoinCount               int     `json:"coinCount"`
	ArbitrageCandidateCount int     `json:"arbitrageCandidateCount"`
	KrwUsdRate              float64 `json:"krwUsdRate"`
}

// CompareCoin builds one coin's comparison from whatever venues reported a
// price. Venues without data are simply absent.
func CompareCoin(coin string, venues map[string]VenueQuote, binanceUSD, fxRate float64) CoinComparison {
	cmp := CoinComparison{
		Coin:       strings.ToUpper(coin),
		Venues:     make(map[string]VenueQuote, len(venues)),
		BinanceUSD: binanceUSD,
		Action:     "HOLD",
	}

	premiumSum := 0.0
	premiumCount := 0
	lowVenue, highVenue := "", ""
	lowPrice, highPrice := 0.0, 0.0

	for venue, q := range venues {
		if q.PriceKRW <= 0 {
			continue
		}
		if binanceUSD > 0 && fxRate > 0 {
			q.PremiumPct = num.Round2((q.PriceKRW/fxRate - binanceUSD) / binanceUSD * 100)
			premiumSum += q.PremiumPct
			premiumCount++
		}
		cmp.Venues[venue] = q

		if lowVenue == "" || q.PriceKRW < lowPrice {
			lowVenue, lowPrice = venue, q.PriceKRW
		}
		if highVenue == "" || q.PriceKRW > highPrice {
			highVenue, highPrice = venue, q.PriceKRW
		}
	}

	if premiumCount > 0 {
		cmp.AvgPremiumPct = num.Round2(premiumSum / float64(premiumCount))
	}
	if lowVenue != "" && highVenue != "" && lowPrice > 0 {
		cmp.BestBuyExchange = lowVenue
		cmp.BestSellExchange = highVenue
		cmp.SpreadPct = num.Round2((highPrice - lowPrice) / lowPrice * 100)
		switch {
		case cmp.SpreadPct > arbitrageSpreadPct:
			cmp.Action = "ARBITRAGE"
		case cmp.SpreadPct > monitorSpreadPct:
			cmp.Action = "MONITOR"
		}
	}
	return cmp
}

// Summarize counts arbitrage candidates across comparisons.
func Summarize(comparisons []CoinComparison, fxRate float64) CrossExchangeSummary {
	s := CrossExchangeSummary{CoinCount: len(comparisons), KrwUsdRate: num.Round2(fxRate)}
	for _, c := range comparisons {
		if c.Action == "ARBITRAGE" {
			s.ArbitrageCandidateCount++
		}
	}
	return s
}
